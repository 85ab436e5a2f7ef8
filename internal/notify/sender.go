package notify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender delivers a text message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// SendError is a delivery failure reported by the messaging API.
type SendError struct {
	Code       int
	Message    string
	RetryAfter int // seconds, set on 429
}

func (e *SendError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// AsSendError unwraps a SendError from err.
func AsSendError(err error) (*SendError, bool) {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr, true
	}
	return nil, false
}

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender sends plain-text messages through the Bot API.
type TelegramSender struct {
	tg telegramClient
}

// NewTelegramSender authenticates with the Bot API using token.
func NewTelegramSender(token string) (*TelegramSender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}
	return &TelegramSender{tg: api}, nil
}

// NewTelegramSenderWithClient allows injecting a mocked Telegram client for tests.
func NewTelegramSenderWithClient(tg telegramClient) *TelegramSender {
	return &TelegramSender{tg: tg}
}

// Send implements Sender.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := s.tg.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return &SendError{Code: apiErr.Code, Message: apiErr.Message, RetryAfter: apiErr.RetryAfter}
		}
		return err
	}
	return nil
}
