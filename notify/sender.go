package notify

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDeliveryFailure wraps transport errors returned by a Sender.
var ErrDeliveryFailure = errors.New("notification delivery failed")

// Sender delivers an HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to, subject, htmlBody string) error

func (f SenderFunc) Send(ctx context.Context, to, subject, htmlBody string) error {
	return f(ctx, to, subject, htmlBody)
}

// LogSender writes messages to a logger instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

// NewLogSender returns a LogSender on logger, or slog.Default when nil.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{Logger: logger}
}

func (s *LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	s.Logger.InfoContext(ctx, "email not delivered (log sender)",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	s.Logger.DebugContext(ctx, "email body", slog.String("body", htmlBody))
	return nil
}
