// Package transport delivers outbound texts to a user identity.
//
// A Send that returns nil is a confirmed delivery; the check-in service only
// consumes the daily cooldown after one.
package transport

import (
	"context"
	"fmt"
	"log/slog"
)

// Sender delivers a text to an identity.
type Sender interface {
	Send(ctx context.Context, identity, text string) error
}

// LogSender only logs messages. Used in development and by replay runs when
// no real transport is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(ctx context.Context, identity, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if identity == "" {
		return fmt.Errorf("no recipient")
	}
	s.logger.Info("Message send (log transport)", "identity", identity, "body", text)
	return nil
}
