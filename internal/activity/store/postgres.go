package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/online-compiler-go/internal/activity"
)

// Postgres persists activity events into the activity_events table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgreSQL-backed activity store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) SaveCompileExecuted(ctx context.Context, event *activity.CompileExecutedEvent) error {
	return p.insert(ctx, activity.TopicCompileExecuted, event.UserID, event.ClientIP, event.ExecutedAt, event)
}

func (p *Postgres) SaveSnippetChanged(ctx context.Context, event *activity.SnippetChangedEvent) error {
	return p.insert(ctx, activity.TopicSnippetChanged, event.UserID, event.ClientIP, event.ChangedAt, event)
}

func (p *Postgres) insert(
	ctx context.Context, eventType, userID, clientIP string, at time.Time, event any,
) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO activity_events (event_type, user_id, client_ip, payload, occurred_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
	`, eventType, userID, clientIP, payload, at)
	if err != nil {
		return fmt.Errorf("insert %s: %w", eventType, err)
	}

	return nil
}

var _ activity.Store = (*Postgres)(nil)
