package notification

import (
	"context"

	"medcore/pkg/logger"
)

// LogSender writes events to the log. It is the default sender when no
// delivery channel is configured.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, ev Event) error {
	logger.Info(ctx, "notification",
		"event_type", ev.Type,
		"document_id", ev.DocumentID,
		"number", ev.Number,
		"kind", ev.Kind,
		"total", ev.Total.String(),
	)
	return nil
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, ev Event) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
