package mail

import (
	"context"

	"go.uber.org/zap"
)

// LogSender records messages instead of delivering them. Used when no SMTP
// server is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("mail not delivered, no SMTP server configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("template", string(msg.Template)))
	s.logger.Debug("mail body", zap.String("text", msg.Text))
	return nil
}
