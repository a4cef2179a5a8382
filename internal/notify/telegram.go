package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramSink delivers alerts to a Telegram chat.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSink authenticates the bot once up front.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramSink{bot: bot, chatID: chatID}, nil
}

// Send implements Sink.
func (t *TelegramSink) Send(_ context.Context, message string) error {
	msg := tgbotapi.NewMessage(t.chatID, message)
	_, err := t.bot.Send(msg)
	return err
}

// LogSink writes alerts to the logger; the default sink when no
// Telegram credentials are configured.
type LogSink struct {
	Log *zap.Logger
}

// Send implements Sink.
func (l LogSink) Send(_ context.Context, message string) error {
	l.Log.Info("alert", zap.String("message", message))
	return nil
}
