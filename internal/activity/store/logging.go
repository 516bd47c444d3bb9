package store

import (
	"context"

	"github.com/serroba/online-compiler-go/internal/activity"
	"go.uber.org/zap"
)

// Logging is an activity.Store that only writes events to the log.
type Logging struct {
	logger *zap.Logger
}

// NewLogging creates a log-only activity store.
func NewLogging(logger *zap.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) SaveCompileExecuted(_ context.Context, event *activity.CompileExecutedEvent) error {
	l.logger.Info("compile executed",
		zap.String("userId", event.UserID),
		zap.String("language", event.Language),
		zap.String("status", event.Status),
		zap.Float64("executionTime", event.ExecutionTime),
		zap.Time("executedAt", event.ExecutedAt),
	)

	return nil
}

func (l *Logging) SaveSnippetChanged(_ context.Context, event *activity.SnippetChangedEvent) error {
	l.logger.Info("snippet changed",
		zap.String("userId", event.UserID),
		zap.String("action", event.Action),
		zap.Int("count", event.Count),
		zap.Time("changedAt", event.ChangedAt),
	)

	return nil
}

var _ activity.Store = (*Logging)(nil)
