package mail

import (
	"context"

	"go.uber.org/zap"

	"authgate/backend/internal/logging"
)

// LogTransport writes messages to the logger instead of sending them. Used when no SMTP host is
// configured. The body, which carries the verification link, is logged at debug only.
type LogTransport struct {
	logger *zap.Logger
}

// NewLogTransport returns a LogTransport. nil uses the global logger.
func NewLogTransport(logger *zap.Logger) *LogTransport {
	return &LogTransport{logger: logging.OrGlobal(logger)}
}

func (t *LogTransport) Send(_ context.Context, msg Message) error {
	t.logger.Info("mail transport disabled; message not sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	t.logger.Debug("mail body", zap.String("to", msg.To), zap.String("text", msg.Text))
	return nil
}
