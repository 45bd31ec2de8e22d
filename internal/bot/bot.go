package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"clearfocus/internal/model"
	"clearfocus/internal/repository"
	"clearfocus/internal/service"
)

const (
	cbTouchPrefix   = "touch:"
	cbDonePrefix    = "done:"
	cbUndoPrefix    = "undo:"
	cbArchivePrefix = "archive:"
	cbConfirmPrefix = "confirm:"
	cbCancelPrefix  = "cancel:"
)

const (
	menuLabelFocus   = "🎯 Focus"
	menuLabelRefocus = "🔄 Refocus"
	menuLabelTasks   = "📋 Tasks"
	menuLabelHelp    = "ℹ️ Help"
)

const helpText = "ℹ️ <b>How it works</b>\n" +
	"Send me anything on your mind, one thing per line. I turn it into tasks and pick what matters today.\n\n" +
	"• /dump &lt;text&gt; — capture a brain dump (plain messages work too)\n" +
	"• /focus — today's focus\n" +
	"• /refocus — process new dumps and pick again\n" +
	"• /tasks — open tasks\n" +
	"• /help — this message"

// telegramAPI is the part of tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deps are the services the bot dispatches chat actions to.
type Deps struct {
	Users    *repository.UserRepository
	Intake   *service.IntakeService
	Focus    *service.FocusService
	Tasks    *service.TaskService
	Activity *service.ActivityService
	Digest   *service.DigestService
	Calendar *service.Calendar
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api  telegramAPI
	deps Deps
	log  *zap.Logger

	mu sync.Mutex
	// pending archive confirmations: telegram user id -> task id
	confirmations map[int64]string
}

// New constructs a Telegram bot instance.
func New(token string, deps Deps, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info("bot authorized", zap.String("account", api.Self.UserName))
	return newBot(api, deps, log), nil
}

func newBot(api telegramAPI, deps Deps, log *zap.Logger) *Bot {
	return &Bot{
		api:           api,
		deps:          deps,
		log:           log.Named("bot"),
		confirmations: make(map[int64]string),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Warn("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Warn("handle message", zap.Error(err))
			}
		}
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	user, err := b.ensureUser(ctx, msg.From)
	if err != nil {
		return err
	}

	if msg.IsCommand() {
		b.log.Debug("command", zap.Int64("telegram_id", msg.From.ID), zap.String("command", msg.Command()))
		return b.handleCommand(ctx, msg, user)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelFocus:
		return b.sendFocus(ctx, msg.Chat.ID, user)
	case menuLabelRefocus:
		return b.refocus(ctx, msg.Chat.ID, user)
	case menuLabelTasks:
		return b.sendTaskList(ctx, msg.Chat.ID, user)
	case menuLabelHelp:
		return b.sendText(msg.Chat.ID, helpText)
	}
	return b.captureDump(ctx, msg.Chat.ID, user, msg.Text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *model.User) error {
	switch msg.Command() {
	case "start":
		name := strings.TrimSpace(msg.From.FirstName)
		if name == "" {
			name = "there"
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("👋 Hi, %s!\n\n%s", html.EscapeString(name), helpText))
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "dump":
		text := strings.TrimSpace(msg.CommandArguments())
		if text == "" {
			return b.sendText(msg.Chat.ID, "Write the dump after the command: <code>/dump call the bank; buy milk</code>")
		}
		return b.captureDump(ctx, msg.Chat.ID, user, text)
	case "focus":
		return b.sendFocus(ctx, msg.Chat.ID, user)
	case "refocus":
		return b.refocus(ctx, msg.Chat.ID, user)
	case "tasks":
		return b.sendTaskList(ctx, msg.Chat.ID, user)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) captureDump(ctx context.Context, chatID int64, user *model.User, text string) error {
	dump, err := b.deps.Intake.Submit(ctx, user.ID, text)
	if errors.Is(err, service.ErrInvalidInput) {
		return b.sendText(chatID, "Nothing to capture. "+html.EscapeString(err.Error()))
	}
	if err != nil {
		return b.failed(chatID, "submit dump", err)
	}
	b.log.Info("dump captured", zap.Uint("user_id", user.ID), zap.String("dump_id", dump.ID))
	return b.sendText(chatID, "📥 Got it. I'll sort it out; send /refocus to see it in today's focus now.")
}

func (b *Bot) sendFocus(ctx context.Context, chatID int64, user *model.User) error {
	view, err := b.deps.Focus.Today(ctx, user.ID)
	if err != nil {
		return b.failed(chatID, "load focus", err)
	}
	return b.sendView(chatID, view)
}

func (b *Bot) refocus(ctx context.Context, chatID int64, user *model.User) error {
	view, err := b.deps.Focus.Refocus(ctx, user.ID)
	if err != nil {
		return b.failed(chatID, "refocus", err)
	}
	return b.sendView(chatID, view)
}

func (b *Bot) sendView(chatID int64, view *service.FocusView) error {
	text := service.FormatFocus(view, b.deps.Calendar.Today())
	if view == nil {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, focusKeyboard(view))
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.deps.Tasks.ListOpen(ctx, user.ID)
	if err != nil {
		return b.failed(chatID, "list tasks", err)
	}
	text := service.FormatTaskList(tasks, b.deps.Calendar.Today())
	if len(tasks) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, taskListKeyboard(tasks))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	user, err := b.ensureUser(ctx, cb.From)
	if err != nil {
		return err
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data
	b.log.Debug("callback", zap.Int64("telegram_id", cb.From.ID), zap.String("data", data))

	switch {
	case strings.HasPrefix(data, cbTouchPrefix):
		return b.applyActivity(ctx, cb, user, strings.TrimPrefix(data, cbTouchPrefix), string(model.ActivityTouched), "👀 Noted")
	case strings.HasPrefix(data, cbDonePrefix):
		return b.applyActivity(ctx, cb, user, strings.TrimPrefix(data, cbDonePrefix), string(model.ActivityDone), "✅ Done")
	case strings.HasPrefix(data, cbUndoPrefix):
		return b.applyActivity(ctx, cb, user, strings.TrimPrefix(data, cbUndoPrefix), service.ActivityUndo, "↩️ Reopened")
	case strings.HasPrefix(data, cbArchivePrefix):
		b.ack(cb, "")
		return b.askArchiveConfirmation(ctx, chatID, cb.From.ID, user, strings.TrimPrefix(data, cbArchivePrefix))
	case strings.HasPrefix(data, cbConfirmPrefix):
		b.ack(cb, "")
		return b.archiveConfirmed(ctx, chatID, cb.From.ID, user, strings.TrimPrefix(data, cbConfirmPrefix))
	case strings.HasPrefix(data, cbCancelPrefix):
		b.clearConfirmation(cb.From.ID)
		b.ack(cb, "Kept")
		return nil
	default:
		b.ack(cb, "")
		return nil
	}
}

func (b *Bot) applyActivity(ctx context.Context, cb *tgbotapi.CallbackQuery, user *model.User, taskID, kind, done string) error {
	err := b.deps.Activity.Apply(ctx, user.ID, taskID, kind)
	if errors.Is(err, service.ErrNotFound) {
		b.ack(cb, "That task is gone")
		return nil
	}
	if err != nil {
		b.ack(cb, "")
		return b.failed(cb.Message.Chat.ID, "apply activity", err)
	}
	b.ack(cb, done)
	return b.sendFocus(ctx, cb.Message.Chat.ID, user)
}

func (b *Bot) askArchiveConfirmation(ctx context.Context, chatID, telegramID int64, user *model.User, taskID string) error {
	task, err := b.deps.Tasks.Get(ctx, user.ID, taskID)
	if errors.Is(err, service.ErrNotFound) {
		return b.sendText(chatID, "That task is gone.")
	}
	if err != nil {
		return b.failed(chatID, "get task", err)
	}
	b.setConfirmation(telegramID, task.ID)
	text := fmt.Sprintf("Archive «%s»? It will disappear from focus and lists.", html.EscapeString(task.CanonicalText))
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard(task.ID))
}

func (b *Bot) archiveConfirmed(ctx context.Context, chatID, telegramID int64, user *model.User, taskID string) error {
	if !b.takeConfirmation(telegramID, taskID) {
		return b.sendText(chatID, "Nothing to confirm. Press 🗑 on a task first.")
	}
	err := b.deps.Tasks.Archive(ctx, user.ID, taskID)
	if errors.Is(err, service.ErrNotFound) {
		return b.sendText(chatID, "That task is gone.")
	}
	if err != nil {
		return b.failed(chatID, "archive task", err)
	}
	b.log.Info("task archived", zap.Uint("user_id", user.ID), zap.String("task_id", taskID))
	return b.sendText(chatID, "🗑 Archived.")
}

// SendDailyFocus pushes today's focus to every user linked to a chat.
func (b *Bot) SendDailyFocus(ctx context.Context) error {
	users, err := b.deps.Users.ListTelegramLinked(ctx)
	if err != nil {
		return err
	}
	sent := 0
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if user.TelegramID == nil {
			continue
		}
		text, err := b.deps.Digest.DailySummary(ctx, user)
		if err != nil {
			b.log.Warn("build daily focus", zap.Uint("user_id", user.ID), zap.Error(err))
			continue
		}
		if err := b.sendText(*user.TelegramID, text); err != nil {
			b.log.Warn("send daily focus", zap.Uint("user_id", user.ID), zap.Error(err))
			continue
		}
		sent++
	}
	b.log.Info("daily focus sent", zap.Int("users", len(users)), zap.Int("sent", sent))
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.deps.Users.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.UserName)
}

// failed logs the cause and tells the user something went wrong.
func (b *Bot) failed(chatID int64, op string, err error) error {
	b.log.Error(op, zap.Int64("chat_id", chatID), zap.Error(err))
	return b.sendText(chatID, "Something went wrong, try again in a minute.")
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Debug("callback ack", zap.Error(err))
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	return b.sendWithReplyMarkup(chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) setConfirmation(telegramID int64, taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[telegramID] = taskID
}

// takeConfirmation consumes a pending confirmation if it matches taskID.
func (b *Bot) takeConfirmation(telegramID int64, taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending, ok := b.confirmations[telegramID]
	if !ok || pending != taskID {
		return false
	}
	delete(b.confirmations, telegramID)
	return true
}

func (b *Bot) clearConfirmation(telegramID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, telegramID)
}
