package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramSender is the part of the bot API the notifier needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts booking reports to a chat. Diagnostics are logged, not sent.
type Telegram struct {
	api    TelegramSender
	chatID int64
	logger *zerolog.Logger
}

// NewTelegram authorizes the bot token and targets chatID.
func NewTelegram(token string, chatID int64, logger *zerolog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return NewTelegramWithSender(api, chatID, logger), nil
}

// NewTelegramWithSender allows injecting a mocked sender for tests.
func NewTelegramWithSender(api TelegramSender, chatID int64, logger *zerolog.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, logger: logger}
}

func (t *Telegram) ReportSuccess(ctx context.Context, message string) {
	t.send(ctx, "✅ "+message)
}

func (t *Telegram) ReportFailure(ctx context.Context, message string) {
	t.send(ctx, "❌ "+message)
}

func (t *Telegram) LogDiagnostic(ctx context.Context, err error) {
	logger(ctx, t.logger).Debug().Err(err).Int64("chat_id", t.chatID).Msg("diagnostic not forwarded to telegram")
}

func (t *Telegram) send(ctx context.Context, text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		logger(ctx, t.logger).Error().Err(err).Int64("chat_id", t.chatID).Msg("failed to send telegram report")
	}
}
