package notifier

import (
	"context"

	"go.uber.org/zap"
)

// NoopNotifier logs instead of sending. Used when no SMTP host is configured
// so the rest of the system behaves as in production.
type NoopNotifier struct {
	logger *zap.Logger
}

func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.Info("Email delivery skipped (no SMTP configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
