package bot

import (
	"errors"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-tracker/internal/model"
	"task-tracker/internal/workload"
)

const (
	btnSkip           = "⏭️ Skip"
	btnConfirm        = "✅ Confirm"
	btnCancel         = "↩️ Cancel"
	btnCancelDialog   = "⏪ Cancel input"
	iconDefault       = "🟢"
	iconDue           = "⏳"
	iconOverdue       = "⚠️"
	menuLabelNewTask  = "➕ New task"
	menuLabelTasks    = "📋 Tasks"
	menuLabelWorkload = "📊 Workload"
	menuLabelHelp     = "ℹ️ Help"

	dateLayout = "2006-01-02"
	chartWidth = 16

	callbackDateLayout = "20060102"
	// Telegram caps message text at 4096 UTF-16 code units.
	maxMessageUnits = 4096
	// a month between reports
	maxIntervalHours = 720
)

var errUsage = errors.New("bad arguments")

func helpText(manager bool) string {
	var b strings.Builder
	b.WriteString("/newtask – create a task step by step\n")
	b.WriteString("/tasks – your open tasks\n")
	b.WriteString("/task &lt;id&gt; – task card with roadmap and work logs\n")
	b.WriteString("/status &lt;id&gt; &lt;status&gt; – change status\n")
	b.WriteString("/log &lt;id&gt; &lt;hours&gt; [text] – log spent time\n")
	b.WriteString("/step &lt;id&gt; [hours] &lt;text&gt; – add a roadmap step\n")
	b.WriteString("/stepdone &lt;id&gt; &lt;n&gt; – complete roadmap step n\n")
	b.WriteString("/workload [strategy] [from] [to] – daily hours chart\n")
	b.WriteString("/report – summary right now\n")
	b.WriteString("/delete &lt;id&gt; – delete a task\n")
	b.WriteString("/cancel – abort the current dialog\n")
	if manager {
		b.WriteString("\n<b>Manager</b>\n")
		b.WriteString("/team – every task on the board\n")
		b.WriteString("/interval &lt;hours&gt; – report cadence\n")
	}
	return b.String()
}

func statusNames() []string {
	return []string{
		string(model.StatusNotStarted),
		string(model.StatusInProgress),
		string(model.StatusPaused),
		string(model.StatusDone),
		string(model.StatusCancelled),
	}
}

func statusLabel(s model.Status) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func statusIcon(s model.Status) string {
	switch s {
	case model.StatusInProgress:
		return "▶️"
	case model.StatusPaused:
		return "⏸"
	case model.StatusDone:
		return "✅"
	case model.StatusCancelled:
		return "✖️"
	default:
		return "🆕"
	}
}

func priorityIcon(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "🔴"
	case model.PriorityLow:
		return "⚪"
	default:
		return "🟡"
	}
}

func dueIcon(task model.Task, now time.Time) string {
	today := workload.Date(now)
	due := workload.Date(task.DueDate)
	switch {
	case !task.Status.IsOpen():
		return statusIcon(task.Status)
	case due.Before(today):
		return iconOverdue
	case !due.After(today.AddDate(0, 0, 2)):
		return iconDue
	default:
		return iconDefault
	}
}

func formatTask(task model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s %s\n", dueIcon(task, now), task.ID, priorityIcon(task.Priority), escape(normalizeTitle(task.Title))))
	today := workload.Date(now)
	due := workload.Date(task.DueDate)
	if due.Before(today) {
		b.WriteString(fmt.Sprintf("   ⏰ Due %s · <b>overdue</b>\n", due.Format(dateLayout)))
	} else {
		daysLeft := int(due.Sub(today).Hours()/24) + 1
		b.WriteString(fmt.Sprintf("   ⏰ Due %s · %d d left\n", due.Format(dateLayout), daysLeft))
	}
	b.WriteString(fmt.Sprintf("   ⌛ %.2f/%.2fh · %s\n", task.SpentHours, task.PlannedHours, statusLabel(task.Status)))
	b.WriteByte('\n')
	return b.String()
}

func formatTaskList(tasks []model.Task, now time.Time) (string, [][]tgbotapi.InlineKeyboardButton) {
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	builder.WriteString("Tap a button to mark a task as done.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(formatTask(task, now))
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 24)), fmt.Sprintf("%s%d", cbDonePrefix, task.ID)),
		))
	}
	return strings.TrimSpace(builder.String()), buttons
}

func formatTaskDetail(task model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>#%d</b> %s\n", dueIcon(task, now), task.ID, escape(normalizeTitle(task.Title))))
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("📝 %s\n", escape(task.Description)))
	}
	b.WriteString(fmt.Sprintf("• <b>Status:</b> %s %s\n", statusIcon(task.Status), statusLabel(task.Status)))
	b.WriteString(fmt.Sprintf("• <b>Priority:</b> %s %s · <b>size</b> %d\n", priorityIcon(task.Priority), task.Priority, task.Size))
	b.WriteString(fmt.Sprintf("• <b>Dates:</b> %s → %s\n", task.StartDate.Format(dateLayout), task.DueDate.Format(dateLayout)))
	b.WriteString(fmt.Sprintf("• <b>Hours:</b> %.2f spent of %.2f, %.2f left\n", task.SpentHours, task.PlannedHours, task.RemainingHours()))
	if task.Assignee.ID != 0 {
		b.WriteString(fmt.Sprintf("• <b>Owner:</b> %s\n", escape(task.Assignee.DisplayName())))
	}
	if len(task.Partners) > 0 {
		b.WriteString(fmt.Sprintf("• <b>Partners:</b> %s\n", joinNames(task.Partners)))
	}
	if len(task.Informees) > 0 {
		b.WriteString(fmt.Sprintf("• <b>Informed:</b> %s\n", joinNames(task.Informees)))
	}
	if len(task.Roadmap) > 0 {
		b.WriteString("\n🧭 <b>Roadmap</b>\n")
		for _, item := range task.Roadmap {
			mark := "▫️"
			if item.IsCompleted {
				mark = "☑️"
			}
			line := fmt.Sprintf("%s %d. %s", mark, item.Position, escape(item.Description))
			if item.EstimatedHours != nil {
				line += fmt.Sprintf(" (%.1fh)", *item.EstimatedHours)
			}
			b.WriteString(line + "\n")
		}
	}
	if len(task.WorkLogs) > 0 {
		b.WriteString("\n⏱ <b>Recent work</b>\n")
		for i, entry := range task.WorkLogs {
			if i == 5 {
				b.WriteString(fmt.Sprintf("… and %d more\n", len(task.WorkLogs)-i))
				break
			}
			line := fmt.Sprintf("%s %.2fh %s", entry.Date.Format(dateLayout), entry.Hours, escape(entry.User.DisplayName()))
			if entry.Description != "" {
				line += " · " + escape(entry.Description)
			}
			b.WriteString(line + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func formatTeamBoard(tasks []model.Task, now time.Time) string {
	type bucket struct {
		name  string
		tasks []model.Task
	}
	var order []uint
	groups := make(map[uint]*bucket)
	for _, task := range tasks {
		if !task.Status.IsOpen() {
			continue
		}
		g, ok := groups[task.AssigneeID]
		if !ok {
			g = &bucket{name: task.Assignee.DisplayName()}
			groups[task.AssigneeID] = g
			order = append(order, task.AssigneeID)
		}
		g.tasks = append(g.tasks, task)
	}
	if len(order) == 0 {
		return "Nobody has open tasks."
	}

	var b strings.Builder
	b.WriteString("👥 <b>Team board</b>\n\n")
	for _, id := range order {
		g := groups[id]
		var remaining float64
		for _, task := range g.tasks {
			remaining += task.RemainingHours()
		}
		b.WriteString(fmt.Sprintf("<b>%s</b> · %d open · %.2fh left\n", escape(g.name), len(g.tasks), remaining))
		for _, task := range g.tasks {
			b.WriteString(fmt.Sprintf("  %s #%d %s (%s, due %s)\n", dueIcon(task, now), task.ID, escape(shortTitle(task.Title, 32)),
				statusLabel(task.Status), task.DueDate.Format(dateLayout)))
		}
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// renderChart draws the series as a monospace bar chart. Long windows are
// split so that every message stays within maxMessageUnits; the header opens
// the first part and the total closes the last.
func renderChart(series workload.Series, strategy workload.Strategy) []string {
	var peak float64
	for _, v := range series.Data {
		peak = math.Max(peak, v)
	}

	header := fmt.Sprintf("📊 <b>Workload</b> · <i>%s</i>\n", strategy)
	footer := fmt.Sprintf("\nTotal: <b>%.2fh</b>, peak %.2fh", series.Total(), peak)
	reserve := len("</pre>") + utf16Len(footer)

	var (
		parts []string
		b     strings.Builder
	)
	b.WriteString(header + "<pre>")
	size, lines := utf16Len(header)+len("<pre>"), 0
	for i, label := range series.Labels {
		v := series.Data[i]
		cells := 0
		if peak > 0 {
			cells = int(math.Round(v / peak * chartWidth))
		}
		if v > 0 && cells == 0 {
			cells = 1
		}
		bar := strings.Repeat("█", cells) + strings.Repeat("·", chartWidth-cells)
		line := fmt.Sprintf("%s %s %5.2f\n", label, bar, v)
		n := utf16Len(line)
		if lines > 0 && size+n+reserve > maxMessageUnits {
			b.WriteString("</pre>")
			parts = append(parts, b.String())
			b.Reset()
			b.WriteString("<pre>")
			size, lines = len("<pre>"), 0
		}
		b.WriteString(line)
		size += n
		lines++
	}
	b.WriteString("</pre>" + footer)
	return append(parts, b.String())
}

// utf16Len measures s the way Telegram counts message length.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// workloadCallback packs the chart state into callback data:
// "wl:<strategy>:<from>:<to>" with compact dates, empty when unset.
func workloadCallback(strategy workload.Strategy, from, to time.Time) string {
	return cbWorkloadPrefix + strategy.String() + ":" + compactDate(from) + ":" + compactDate(to)
}

func compactDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(callbackDateLayout)
}

// parseWorkloadCallback reverses workloadCallback. A bare "wl:<strategy>"
// from an older keyboard keeps the default window.
func parseWorkloadCallback(data string) (workloadArgs, error) {
	fields := strings.Split(strings.TrimPrefix(data, cbWorkloadPrefix), ":")
	if len(fields) != 1 && len(fields) != 3 {
		return workloadArgs{}, errUsage
	}
	args := workloadArgs{strategy: fields[0]}
	if len(fields) == 1 {
		return args, nil
	}
	for i, dst := range []*time.Time{&args.from, &args.to} {
		raw := fields[i+1]
		if raw == "" {
			continue
		}
		t, err := time.Parse(callbackDateLayout, raw)
		if err != nil {
			return workloadArgs{}, errUsage
		}
		*dst = t
	}
	return args, nil
}

func workloadKeyboard(current workload.Strategy, from, to time.Time) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, s := range workload.Strategies {
		label := s.String()
		if s == current {
			label = "• " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, workloadCallback(s, from, to)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row[:2], row[2:])
}

type logArgs struct {
	taskID uint
	hours  float64
	text   string
}

// parseLogArgs reads "<id> <hours> [text]".
func parseLogArgs(raw string) (logArgs, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return logArgs{}, errUsage
	}
	id, err := parseID(fields[0])
	if err != nil {
		return logArgs{}, err
	}
	hours, err := parseHours(fields[1])
	if err != nil {
		return logArgs{}, err
	}
	return logArgs{taskID: id, hours: hours, text: strings.Join(fields[2:], " ")}, nil
}

type stepArgs struct {
	taskID uint
	hours  *float64
	text   string
}

// parseStepArgs reads "<id> [hours] <text>".
func parseStepArgs(raw string) (stepArgs, error) {
	fields := strings.Fields(raw)
	if len(fields) < 2 {
		return stepArgs{}, errUsage
	}
	id, err := parseID(fields[0])
	if err != nil {
		return stepArgs{}, err
	}
	args := stepArgs{taskID: id}
	rest := fields[1:]
	if hours, err := parseHours(rest[0]); err == nil && len(rest) > 1 {
		args.hours = &hours
		rest = rest[1:]
	}
	args.text = strings.Join(rest, " ")
	return args, nil
}

type workloadArgs struct {
	strategy string
	from     time.Time
	to       time.Time
}

// parseWorkloadArgs accepts an optional strategy name followed by up to two dates.
func parseWorkloadArgs(raw string) (workloadArgs, error) {
	var args workloadArgs
	for _, field := range strings.Fields(raw) {
		if t, err := time.Parse(dateLayout, field); err == nil {
			switch {
			case args.from.IsZero():
				args.from = t
			case args.to.IsZero():
				args.to = t
			default:
				return workloadArgs{}, errUsage
			}
			continue
		}
		if args.strategy != "" || !args.from.IsZero() {
			return workloadArgs{}, errUsage
		}
		args.strategy = field
	}
	return args, nil
}

// parseIntervalHours reads the /interval argument as whole hours.
func parseIntervalHours(raw string) (time.Duration, error) {
	hours, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || hours < 1 || hours > maxIntervalHours {
		return 0, errUsage
	}
	return time.Duration(hours) * time.Hour, nil
}

func parseTaskID(data, prefix string) (uint, error) {
	return parseID(strings.TrimPrefix(data, prefix))
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

// parseHours accepts both "1.5" and "1,5".
func parseHours(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errUsage
	}
	return v, nil
}

func parseDate(raw string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "today":
		return dateOnly(now), nil
	case "tomorrow":
		return dateOnly(now).AddDate(0, 0, 1), nil
	}
	return time.Parse(dateLayout, strings.TrimSpace(raw))
}

func dateOnly(t time.Time) time.Time {
	return workload.Date(t)
}

func parsePriorityInput(raw string) (model.Priority, bool) {
	return model.ParsePriority(strings.TrimLeftFunc(raw, func(r rune) bool { return !unicode.IsLetter(r) }))
}

func splitUsernames(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}

func joinNames(users []model.User) string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, escape(u.DisplayName()))
	}
	return strings.Join(names, ", ")
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelWorkload),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(priorityIcon(model.PriorityHigh)+" high"),
			tgbotapi.NewKeyboardButton(priorityIcon(model.PriorityMedium)+" medium"),
			tgbotapi.NewKeyboardButton(priorityIcon(model.PriorityLow)+" low"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func sizeKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var row []tgbotapi.KeyboardButton
	for size := model.MinSize; size <= model.MaxSize; size++ {
		row = append(row, tgbotapi.NewKeyboardButton(strconv.Itoa(size)))
	}
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(row...),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel input"
}
