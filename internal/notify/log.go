package notify

import (
	"context"

	"go.uber.org/zap"
)

type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("notification_id", n.ID),
		zap.String("order_id", n.OrderID),
		zap.Bool("degraded", n.Degraded),
	}
	switch n.Level {
	case LevelError:
		l.log.Error(n.Message, fields...)
	case LevelWarning:
		l.log.Warn(n.Message, fields...)
	default:
		l.log.Info(n.Message, fields...)
	}
}
