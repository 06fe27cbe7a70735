package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogNotifier writes messages to the log instead of sending them. Links are
// only included when revealLinks is set, which is meant for local
// development.
type LogNotifier struct {
	revealLinks bool
}

func NewLogNotifier(revealLinks bool) *LogNotifier {
	return &LogNotifier{revealLinks: revealLinks}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) error {
	fields := []zap.Field{
		zap.String("kind", string(msg.Kind)),
		zap.String("to", msg.To),
		zap.Time("expires_at", msg.ExpiresAt),
	}
	if n.revealLinks {
		fields = append(fields, zap.String("link", msg.Link))
	}
	zap.L().Info("notification", fields...)
	return nil
}
