package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogSender logs messages instead of sending them. Used when no SMTP host is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message at info level.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (log only)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.TextBody))
	return nil
}
