package notify

import (
	"context"

	"github.com/leoconnect/backend/internal/model"
	"go.uber.org/zap"
)

// LogPushDispatcher records deliveries in the log instead of contacting a
// push provider. It stands in until a real provider integration exists.
type LogPushDispatcher struct {
	logger *zap.Logger
}

// NewLogPushDispatcher constructs the logging dispatcher.
func NewLogPushDispatcher(logger *zap.Logger) *LogPushDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPushDispatcher{logger: logger}
}

// Deliver logs the would-be push and reports success.
func (d *LogPushDispatcher) Deliver(_ context.Context, token model.PushToken, title, body string) error {
	d.logger.Info("push delivery",
		zap.String("user", token.UserID),
		zap.String("deviceType", token.DeviceType),
		zap.String("title", title),
		zap.String("body", body),
	)
	return nil
}
