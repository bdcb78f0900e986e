// Package notify delivers user facing notifications about export jobs and
// integrations. Delivery is fire-and-forget: a failing sink never affects the
// job that triggered it.
package notify

import (
	"context"
	"log/slog"

	"github.com/webitel/document-exporter/internal/model"
)

type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// Log writes notifications to the structured log.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log}
}

func (l *Log) Notify(ctx context.Context, n model.Notification) {
	level := slog.LevelInfo
	if n.Kind == model.NotifyError {
		level = slog.LevelWarn
	}
	l.log.Log(ctx, level, n.Title,
		slog.String("kind", string(n.Kind)),
		slog.String("message", n.Message),
		slog.String("job_id", n.JobID),
	)
}

// Multi fans a notification out to every sink.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n model.Notification) {
	for _, sink := range m {
		if sink != nil {
			sink.Notify(ctx, n)
		}
	}
}

// Func adapts a function to a Notifier.
type Func func(ctx context.Context, n model.Notification)

func (f Func) Notify(ctx context.Context, n model.Notification) { f(ctx, n) }
