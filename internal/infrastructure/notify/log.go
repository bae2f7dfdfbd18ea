// Package notify holds notifiers that do not talk to a chat platform.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes every message to the structured log. Used when no chat transport
// is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) Send(ctx context.Context, userID, text string) error {
	n.logger.Info("notification", zap.String("user_id", userID), zap.String("text", text))
	return ctx.Err()
}
