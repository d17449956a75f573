package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes messages to the logger. Useful for dry runs.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	l.logger.Info("notification", zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.String("body", msg.Body))
	return nil
}
