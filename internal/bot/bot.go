package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"task-tracker/internal/config"
	"task-tracker/internal/model"
	"task-tracker/internal/repository"
	"task-tracker/internal/service"
	"task-tracker/internal/workload"
)

const (
	cbDonePrefix     = "done:"
	cbDeletePrefix   = "delete:"
	cbWorkloadPrefix = "wl:"
)

type confirmationAction int

const (
	actionComplete confirmationAction = iota
	actionDelete
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api         *tgbotapi.BotAPI
	log         zerolog.Logger
	userRepo    *repository.UserRepository
	taskSvc     *service.TaskService
	workloadSvc *service.WorkloadService
	reminderSvc *service.ReminderService

	mu            sync.Mutex
	config        config.Config
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest

	onReschedule func(config.Config) error
}

func New(
	cfg config.Config,
	log zerolog.Logger,
	userRepo *repository.UserRepository,
	taskSvc *service.TaskService,
	workloadSvc *service.WorkloadService,
	reminderSvc *service.ReminderService,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:           api,
		log:           log,
		userRepo:      userRepo,
		taskSvc:       taskSvc,
		workloadSvc:   workloadSvc,
		reminderSvc:   reminderSvc,
		config:        cfg,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// ApplyConfig swaps in a reloaded configuration.
func (b *Bot) ApplyConfig(cfg config.Config) {
	b.mu.Lock()
	b.config = cfg
	b.mu.Unlock()
}

// OnReschedule registers the hook /interval calls after changing the report cadence.
func (b *Bot) OnReschedule(fn func(config.Config) error) {
	b.mu.Lock()
	b.onReschedule = fn
	b.mu.Unlock()
}

func (b *Bot) currentConfig() config.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.config
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Int64("user", update.Message.Chat.ID).Msg("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		b.log.Info().Int64("user", msg.From.ID).Str("command", msg.Command()).Str("args", msg.CommandArguments()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not understand that. Use /newtask to add a task or /help for the command list.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "tasks":
		return b.handleListTasks(ctx, msg)
	case "task":
		return b.handleTaskDetail(ctx, msg)
	case "status":
		return b.handleStatus(ctx, msg)
	case "log":
		return b.handleLog(ctx, msg)
	case "step":
		return b.handleStep(ctx, msg)
	case "stepdone":
		return b.handleStepDone(ctx, msg)
	case "workload":
		return b.handleWorkload(ctx, msg)
	case "team":
		return b.handleTeam(ctx, msg)
	case "delete":
		return b.handleDelete(ctx, msg)
	case "interval":
		return b.handleInterval(msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("👋 Hi, %s!\n<b>I track your tasks and spread their remaining effort over the calendar.</b>\n\n%s",
		escape(user.DisplayName()), helpText(user.IsManager()))
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Commands</b>\n"+helpText(b.currentConfig().IsManager(msg.From.ID)))
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	text, err := b.reminderSvc.DailySummary(ctx, *user, time.Now())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Could not build the report: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleListTasks(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	return b.sendTaskList(ctx, msg.Chat.ID, user)
}

func (b *Bot) handleTaskDetail(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give a task ID: /task 12")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Done", fmt.Sprintf("%s%d", cbDonePrefix, task.ID)),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
	))
	return b.sendWithReplyMarkup(msg.Chat.ID, formatTaskDetail(*task, time.Now()), markup)
}

func (b *Bot) handleStatus(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /status &lt;id&gt; &lt;"+strings.Join(statusNames(), "|")+"&gt;")
	}
	taskID, err := parseID(fields[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "Task ID must be a number.")
	}
	status, ok := model.ParseStatus(fields[1])
	if !ok {
		return b.sendText(msg.Chat.ID, "Unknown status. Use one of: "+strings.Join(statusNames(), ", "))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.UpdateStatus(ctx, user, taskID, status)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	b.log.Info().Uint("task", task.ID).Uint("user", user.ID).Str("status", string(status)).Msg("task status changed")
	return b.sendText(msg.Chat.ID, fmt.Sprintf("%s Task «%s» is now <b>%s</b>.", statusIcon(task.Status), escape(task.Title), statusLabel(task.Status)))
}

func (b *Bot) handleLog(ctx context.Context, msg *tgbotapi.Message) error {
	args, err := parseLogArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /log &lt;id&gt; &lt;hours&gt; [what you did], e.g. /log 12 1.5 code review")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.LogWork(ctx, user, args.taskID, args.hours, time.Now(), args.text)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	b.log.Info().Uint("task", task.ID).Uint("user", user.ID).Float64("hours", args.hours).Msg("work logged")
	return b.sendText(msg.Chat.ID, fmt.Sprintf("⏱ Logged %.2fh on «%s». Spent %.2f of %.2fh.",
		args.hours, escape(task.Title), task.SpentHours, task.PlannedHours))
}

func (b *Bot) handleStep(ctx context.Context, msg *tgbotapi.Message) error {
	args, err := parseStepArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /step &lt;id&gt; [hours] &lt;description&gt;, e.g. /step 12 2 write migration")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	item, err := b.taskSvc.AddRoadmapStep(ctx, user, args.taskID, args.text, args.hours)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("🧭 Step %d added: %s", item.Position, escape(item.Description)))
}

func (b *Bot) handleStepDone(ctx context.Context, msg *tgbotapi.Message) error {
	fields := strings.Fields(msg.CommandArguments())
	if len(fields) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /stepdone &lt;id&gt; &lt;step number&gt;")
	}
	taskID, err := parseID(fields[0])
	if err != nil {
		return b.sendText(msg.Chat.ID, "Task ID must be a number.")
	}
	position, err := strconv.Atoi(fields[1])
	if err != nil || position < 1 {
		return b.sendText(msg.Chat.ID, "Step number must be a positive number.")
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	progress, err := b.taskSvc.CompleteRoadmapStep(ctx, user, taskID, position)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Step %d done: %s\nRoadmap: %d/%d",
		progress.Item.Position, escape(progress.Item.Description), progress.Done, progress.Total))
}

func (b *Bot) handleWorkload(ctx context.Context, msg *tgbotapi.Message) error {
	args, err := parseWorkloadArgs(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /workload [strategy] [from YYYY-MM-DD] [to YYYY-MM-DD]\nStrategies: "+strings.Join(strategyNames(), ", "))
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	series, strategy, err := b.workloadSvc.Compute(ctx, *user, args.strategy, args.from, args.to)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendChart(msg.Chat.ID, renderChart(series, strategy), workloadKeyboard(strategy, args.from, args.to))
}

// sendChart sends the chart parts in order with the keyboard on the last one.
func (b *Bot) sendChart(chatID int64, parts []string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		if i == len(parts)-1 {
			msg.ReplyMarkup = keyboard
		}
		if _, err := b.api.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleTeam(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	tasks, err := b.taskSvc.ListAll(ctx, user)
	if err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	if len(tasks) == 0 {
		return b.sendText(msg.Chat.ID, "There are no tasks yet.")
	}
	return b.sendText(msg.Chat.ID, formatTeamBoard(tasks, time.Now()))
}

func (b *Bot) handleDelete(ctx context.Context, msg *tgbotapi.Message) error {
	taskID, err := parseID(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, "Give a task ID: /delete 12")
	}
	return b.askConfirmation(ctx, msg.Chat.ID, msg.From, taskID, actionDelete)
}

func (b *Bot) handleInterval(msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	cfg := b.currentConfig()
	if args == "" {
		current := fmt.Sprintf("every %d hours", int(cfg.ReportInterval.Hours()))
		if cfg.ReportTime != "" {
			current = "daily at " + cfg.ReportTime
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Reports are sent %s. Managers can change it: /interval 4", current))
	}
	if !cfg.IsManager(msg.From.ID) {
		return b.sendText(msg.Chat.ID, errorText(service.ErrForbidden))
	}
	interval, err := parseIntervalHours(args)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("Interval must be a whole number of hours from 1 to %d, e.g. /interval 6", maxIntervalHours))
	}
	if err := b.setReportInterval(interval); err != nil {
		return b.sendText(msg.Chat.ID, errorText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("Reports will be sent every %d hours.", int(interval.Hours())))
}

// setReportInterval reschedules reports and keeps the new interval only if
// the scheduler accepted it.
func (b *Bot) setReportInterval(interval time.Duration) error {
	b.mu.Lock()
	updated, reschedule := b.config, b.onReschedule
	b.mu.Unlock()
	updated.ReportInterval = interval
	updated.ReportTime = ""
	if reschedule != nil {
		if err := reschedule(updated); err != nil {
			return err
		}
	}
	b.mu.Lock()
	b.config.ReportInterval = updated.ReportInterval
	b.config.ReportTime = updated.ReportTime
	b.mu.Unlock()
	return nil
}

// SendDailyReports sends a summary to every known user.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.reminderSvc.DailySummary(ctx, user, now)
		if err != nil {
			b.log.Warn().Err(err).Int64("user", user.TelegramID).Msg("build summary")
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			b.log.Warn().Err(err).Int64("user", user.TelegramID).Msg("send summary")
		}
	}
	return nil
}

// SendText lets other components push HTML messages through the bot.
func (b *Bot) SendText(chatID int64, text string) error {
	return b.sendText(chatID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}

	data := cb.Data
	chatID := cb.Message.Chat.ID
	b.log.Info().Int64("user", cb.From.ID).Str("data", data).Msg("callback")

	switch {
	case strings.HasPrefix(data, cbDonePrefix):
		taskID, err := parseTaskID(data, cbDonePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, actionComplete)
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err := parseTaskID(data, cbDeletePrefix)
		if err != nil {
			return nil
		}
		return b.askConfirmation(ctx, chatID, cb.From, taskID, actionDelete)
	case strings.HasPrefix(data, cbWorkloadPrefix):
		args, err := parseWorkloadCallback(data)
		if err != nil {
			return nil
		}
		return b.refreshWorkload(ctx, cb, args)
	default:
		return nil
	}
}

// refreshWorkload redraws the chart under the pressed button for the same
// window. A chart that no longer fits one message is sent anew.
func (b *Bot) refreshWorkload(ctx context.Context, cb *tgbotapi.CallbackQuery, args workloadArgs) error {
	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	series, chosen, err := b.workloadSvc.Compute(ctx, *user, args.strategy, args.from, args.to)
	if err != nil {
		return b.sendText(cb.Message.Chat.ID, errorText(err))
	}
	parts := renderChart(series, chosen)
	keyboard := workloadKeyboard(chosen, args.from, args.to)
	if len(parts) > 1 {
		return b.sendChart(cb.Message.Chat.ID, parts, keyboard)
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID, parts[0], keyboard)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(edit)
	return err
}

func (b *Bot) askConfirmation(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint, action confirmationAction) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.GetTask(ctx, user, taskID)
	if err != nil {
		return b.sendText(chatID, errorText(err))
	}

	var text string
	switch action {
	case actionDelete:
		text = fmt.Sprintf("Delete task «%s» (#%d)?", escape(task.Title), task.ID)
	default:
		if task.Status == model.StatusDone {
			return b.sendText(chatID, "The task is already done.")
		}
		text = fmt.Sprintf("Mark task «%s» (#%d) as done?", escape(task.Title), task.ID)
	}
	b.setConfirmation(from.ID, confirmationRequest{taskID: task.ID, action: action})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if req.action == actionDelete {
			return b.deleteTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
		}
		return b.completeTaskAndRefresh(ctx, msg.Chat.ID, msg.From, req.taskID)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Confirm or cancel.", confirmKeyboard())
	}
}

func (b *Bot) completeTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.UpdateStatus(ctx, user, taskID, model.StatusDone)
	if err != nil {
		return b.sendTextWithRemove(chatID, errorText(err))
	}
	b.log.Info().Uint("task", task.ID).Uint("user", user.ID).Msg("task completed")
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("✅ Task «%s» done.", escape(task.Title))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) deleteTaskAndRefresh(ctx context.Context, chatID int64, from *tgbotapi.User, taskID uint) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}
	task, err := b.taskSvc.DeleteTask(ctx, user, taskID)
	if err != nil {
		return b.sendTextWithRemove(chatID, errorText(err))
	}
	b.log.Info().Uint("task", task.ID).Uint("user", user.ID).Msg("task deleted")
	if err := b.sendTextWithRemove(chatID, fmt.Sprintf("🗑 Task «%s» deleted.", escape(task.Title))); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListForUser(ctx, user)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}

	var open []model.Task
	for _, task := range tasks {
		if task.Status.IsOpen() {
			open = append(open, task)
		}
	}
	if len(open) == 0 {
		return b.sendText(chatID, "You have no open tasks. Add one with /newtask.")
	}

	text, buttons := formatTaskList(open, time.Now())
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleListTasks(ctx, msg)
	case strings.ToLower(menuLabelWorkload):
		return true, b.handleWorkload(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	role := model.RoleEmployee
	if b.currentConfig().IsManager(from.ID) {
		role = model.RoleManager
	}
	return b.userRepo.UpsertFromTelegram(ctx, repository.TelegramProfile{
		TelegramID: from.ID,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
		Username:   from.UserName,
		Role:       role,
	})
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(chatID)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 Main menu")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

// errorText maps service errors onto user-facing text.
func errorText(err error) string {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "Not found."
	case errors.Is(err, service.ErrForbidden):
		return "🚫 You are not allowed to do that."
	case errors.Is(err, service.ErrInvalidInput):
		return "⚠️ " + escape(strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": "))
	default:
		return fmt.Sprintf("Error: %s", escape(err.Error()))
	}
}

func strategyNames() []string {
	names := make([]string, 0, len(workload.Strategies))
	for _, s := range workload.Strategies {
		names = append(names, s.String())
	}
	return names
}
