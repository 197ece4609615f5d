package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-tracker/internal/model"
	"task-tracker/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDescription
	stagePriority
	stageSize
	stageStartDate
	stageDueDate
	stagePlannedHours
	stageAssignee
	stagePartners
	stageInformees
)

type conversationState struct {
	stage   conversationStage
	manager bool
	input   service.TaskInput
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}
	b.log.Info().Int64("user", msg.From.ID).Msg("start new task conversation")
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle, manager: user.IsManager()})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Creating a new task.\n<b>Step 1:</b> what is it called?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	b.log.Debug().Int64("user", msg.From.ID).Int("stage", int(state.stage)).Msg("conversation step")

	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The title cannot be empty.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ Add a short description (or press «Skip»).", skipKeyboard())
	case stageDescription:
		if !isSkipInput(text) {
			state.input.Description = text
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, "🚦 Priority?", priorityKeyboard())
	case stagePriority:
		priority, ok := parsePriorityInput(text)
		if !ok {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Pick high, medium or low.", priorityKeyboard())
		}
		state.input.Priority = priority
		state.stage = stageSize
		return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("📦 Size from %d (tiny) to %d (huge)?", model.MinSize, model.MaxSize), sizeKeyboard())
	case stageSize:
		size, err := strconv.Atoi(text)
		if err != nil || size < model.MinSize || size > model.MaxSize {
			return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("Size must be a number from %d to %d.", model.MinSize, model.MaxSize), sizeKeyboard())
		}
		state.input.Size = size
		state.stage = stageStartDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "📅 Start date as <code>2026-11-30</code> («Skip» means today).", skipKeyboard())
	case stageStartDate:
		start := time.Now()
		if !isSkipInput(text) {
			parsed, err := parseDate(text, time.Now())
			if err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that date. Use <code>2026-11-30</code> or «Skip».", skipKeyboard())
			}
			start = parsed
		}
		state.input.StartDate = start
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ Due date as <code>2026-11-30</code>?", cancelKeyboard())
	case stageDueDate:
		due, err := parseDate(text, time.Now())
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that date. Use <code>2026-11-30</code>.", cancelKeyboard())
		}
		if due.Before(dateOnly(state.input.StartDate)) {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The due date cannot be before the start date.", cancelKeyboard())
		}
		state.input.DueDate = due
		state.stage = stagePlannedHours
		return b.sendWithReplyMarkup(msg.Chat.ID, "⌛ How many hours do you plan for it?", cancelKeyboard())
	case stagePlannedHours:
		hours, err := parseHours(text)
		if err != nil || hours < 0 {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Hours must be a number, e.g. <code>6.5</code>.", cancelKeyboard())
		}
		state.input.PlannedHours = hours
		if state.manager {
			state.stage = stageAssignee
			return b.sendWithReplyMarkup(msg.Chat.ID, "👤 Who owns it? Send a @username («Skip» assigns it to you).", skipKeyboard())
		}
		state.stage = stagePartners
		return b.sendWithReplyMarkup(msg.Chat.ID, "🤝 Partners? Send @usernames separated by spaces (or «Skip»).", skipKeyboard())
	case stageAssignee:
		if !isSkipInput(text) {
			state.input.Assignee = text
		}
		state.stage = stagePartners
		return b.sendWithReplyMarkup(msg.Chat.ID, "🤝 Partners? Send @usernames separated by spaces (or «Skip»).", skipKeyboard())
	case stagePartners:
		if !isSkipInput(text) {
			state.input.Partners = splitUsernames(text)
		}
		state.stage = stageInformees
		return b.sendWithReplyMarkup(msg.Chat.ID, "📣 Who should only be kept informed? (or «Skip»)", skipKeyboard())
	case stageInformees:
		if !isSkipInput(text) {
			state.input.Informees = splitUsernames(text)
		}
		err := b.finishTaskCreation(ctx, msg.From, state.input, msg.Chat.ID)
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "The dialog was reset. Try again with /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, from *tgbotapi.User, input service.TaskInput, chatID int64) error {
	user, err := b.ensureUser(ctx, from)
	if err != nil {
		return err
	}

	task, err := b.taskSvc.CreateTask(ctx, user, input)
	if err != nil {
		return b.sendText(chatID, "Could not save the task. "+errorText(err))
	}

	b.log.Info().Uint("task", task.ID).Uint("user", user.ID).Uint("assignee", task.AssigneeID).Msg("task created")

	msg := tgbotapi.NewMessage(chatID, "✅ <b>Task saved</b>\n"+formatTaskDetail(*task, time.Now()))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, user)
}
