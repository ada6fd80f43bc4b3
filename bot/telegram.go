package bot

import (
	"context"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// telegramSender adapts the engine's transport contract onto the
// Telegram Bot API.
type telegramSender struct {
	api *tgbotapi.BotAPI
}

func (t *telegramSender) Send(chatID int64, text string, kb *Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb != nil {
		if kb.Remove {
			msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		} else {
			msg.ReplyMarkup = replyMarkup(kb)
		}
	}
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, errors.Wrap(err, "sending message")
	}
	return sent.MessageID, nil
}

// Edit can only rewrite text in place; reply keyboards are not editable
// on the host, so prompts carrying one fall back to a fresh send.
func (t *telegramSender) Edit(chatID int64, messageID int, text string, kb *Keyboard) error {
	if kb != nil && !kb.Remove && len(kb.Rows) > 0 {
		return errors.New("reply keyboards cannot be edited in place")
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := t.api.Send(edit)
	return errors.Wrap(err, "editing message")
}

func (t *telegramSender) SendInline(chatID int64, text string, buttons [][]InlineButton) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = inlineMarkup(buttons)
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, errors.Wrap(err, "sending inline message")
	}
	return sent.MessageID, nil
}

func (t *telegramSender) EditInlineKeyboard(chatID int64, messageID int, buttons [][]InlineButton) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, inlineMarkup(buttons))
	_, err := t.api.Send(edit)
	return errors.Wrap(err, "editing inline keyboard")
}

func (t *telegramSender) AnswerCallback(callbackID, text string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, text))
	return errors.Wrap(err, "answering callback")
}

// SendText delivers a plain message to a user's private chat. For
// private chats the chat id equals the user id.
func (t *telegramSender) SendText(userID int64, text string) error {
	_, err := t.api.Send(tgbotapi.NewMessage(userID, text))
	return errors.Wrap(err, "sending text")
}

func replyMarkup(kb *Keyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(b))
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	markup.OneTimeKeyboard = kb.OneTime
	return markup
}

func inlineMarkup(buttons [][]InlineButton) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			out = append(out, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, out)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// NewTelegramSender connects to the Bot API with the given token.
func NewTelegramSender(token string) (Sender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to bot api")
	}
	return &telegramSender{api: api}, nil
}

// Run starts long polling and drives the engine until ctx is done. It
// restores persisted reminders, runs the hourly housekeeping loops and
// cancels all pending timers on shutdown.
func Run(ctx context.Context, engine *Engine, sender Sender, logger *slog.Logger) error {
	ts, ok := sender.(*telegramSender)
	if !ok {
		return errors.New("sender is not a telegram sender")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := engine.Reminders().Restore(time.Now()); err != nil {
		logger.Error("restoring reminders", "error", err)
	}
	go engine.Reminders().Housekeep(ctx, time.Hour)
	go sessionCleanupLoop(ctx, engine, logger)

	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Запустити бота"},
		tgbotapi.BotCommand{Command: "route", Description: "Побудувати маршрут"},
		tgbotapi.BotCommand{Command: "schedule", Description: "Розклад станції"},
		tgbotapi.BotCommand{Command: "stations", Description: "Список станцій"},
		tgbotapi.BotCommand{Command: "about", Description: "Про бота"},
		tgbotapi.BotCommand{Command: "lang", Description: "Змінити мову / Change language"},
	)
	if _, err := ts.api.Request(commands); err != nil {
		logger.Error("setting bot commands", "error", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := ts.api.GetUpdatesChan(cfg)

	logger.Info("bot started", "username", ts.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			ts.api.StopReceivingUpdates()
			engine.Reminders().Shutdown()
			logger.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				engine.Reminders().Shutdown()
				return nil
			}
			dispatch(engine, update)
		}
	}
}

func dispatch(engine *Engine, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		engine.HandleMessage(Message{
			ChatID: update.Message.Chat.ID,
			UserID: update.Message.From.ID,
			Text:   update.Message.Text,
		})
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		engine.HandleCallback(Callback{
			ID:        update.CallbackQuery.ID,
			ChatID:    update.CallbackQuery.Message.Chat.ID,
			UserID:    update.CallbackQuery.From.ID,
			MessageID: update.CallbackQuery.Message.MessageID,
			Data:      update.CallbackQuery.Data,
		})
	}
}

func sessionCleanupLoop(ctx context.Context, engine *Engine, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := engine.store.CleanupStaleSessions(SessionTTL)
			if err != nil {
				logger.Error("cleaning stale sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("stale sessions removed", "count", n)
			}
		}
	}
}
