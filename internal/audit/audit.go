// Package audit keeps a durable record of coordination run events so an
// operator can reconstruct a run's progress after the fact.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded run event.
type Event struct {
	ID         uuid.UUID `json:"id"`
	ProviderID string    `json:"provider_id"`
	RequestID  string    `json:"request_id"`
	Phase      string    `json:"phase"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// Recorder writes run events to Postgres.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a recorder.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// EnsureSchema creates the run_events table if it does not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_events (
			id UUID PRIMARY KEY,
			provider_id TEXT NOT NULL,
			request_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create run_events table: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS run_events_request_idx
		ON run_events (provider_id, request_id, created_at)`)
	if err != nil {
		return fmt.Errorf("create run_events index: %w", err)
	}
	return nil
}

// Record inserts one event.
func (r *Recorder) Record(ctx context.Context, ev Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_events (id, provider_id, request_id, phase, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.ProviderID, ev.RequestID, ev.Phase, ev.Message, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run event: %w", err)
	}
	return nil
}

// ListByRequest returns the most recent events for one request, newest
// first.
func (r *Recorder) ListByRequest(ctx context.Context, providerID, requestID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, provider_id, request_id, phase, message, created_at
		 FROM run_events
		 WHERE provider_id = $1 AND request_id = $2
		 ORDER BY created_at DESC
		 LIMIT $3`,
		providerID, requestID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query run events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.ProviderID, &ev.RequestID, &ev.Phase, &ev.Message, &ev.CreatedAt); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
