package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends messages through a Telegram bot. The identity is the chat
// ID the user started the bot from.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

// NewTelegram creates the bot client and verifies the token with getMe.
func NewTelegram(token string) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbotapi.APIEndpoint)
}

// NewTelegramWithEndpoint is NewTelegram against a custom Bot API endpoint
// (self-hosted Bot API server, tests).
func NewTelegramWithEndpoint(token, endpoint string) (*Telegram, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{bot: bot}, nil
}

// Send delivers text to the chat. The Bot API client has no context support,
// so the call runs in a goroutine and ctx only bounds how long we wait.
func (t *Telegram) Send(ctx context.Context, identity, text string) error {
	chatID, err := strconv.ParseInt(identity, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", identity, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(tgbotapi.NewMessage(chatID, text))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}
