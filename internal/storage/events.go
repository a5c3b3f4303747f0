package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Ingest event statuses.
const (
	StatusInserted  = "inserted"
	StatusNoData    = "no_data"
	StatusFailed    = "failed"
	StatusDuplicate = "duplicate"
)

// eventTimeLayout is fixed width so created_at sorts chronologically as text.
const eventTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// IngestEvent is one audit row describing what happened to a log file.
type IngestEvent struct {
	ID        string
	Path      string
	SHA256    string
	Status    string
	ErrorKind string
	Message   string
	CreatedAt time.Time
}

// RecordEvent appends ev to ingest_events. A missing ID or CreatedAt is
// filled in.
func (d *DB) RecordEvent(ctx context.Context, ev IngestEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	_, err := sq.Insert("ingest_events").
		Columns("id", "path", "sha256", "status", "error_kind", "message", "created_at").
		Values(
			ev.ID,
			ev.Path,
			ev.SHA256,
			ev.Status,
			ev.ErrorKind,
			ev.Message,
			ev.CreatedAt.UTC().Format(eventTimeLayout),
		).
		RunWith(d.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to record ingest event for %s: %w", ev.Path, err)
	}
	return nil
}

// Events returns the most recent ingest events, newest first.
// An empty status matches all events.
func (d *DB) Events(ctx context.Context, status string, limit uint64) ([]IngestEvent, error) {
	query := sq.Select("id", "path", "sha256", "status", "error_kind", "message", "created_at").
		From("ingest_events").
		OrderBy("created_at DESC", "rowid DESC")
	if status != "" {
		query = query.Where(sq.Eq{"status": status})
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	rows, err := query.RunWith(d.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest events: %w", err)
	}
	defer rows.Close()

	var events []IngestEvent
	for rows.Next() {
		var ev IngestEvent
		var created string
		if err := rows.Scan(&ev.ID, &ev.Path, &ev.SHA256, &ev.Status, &ev.ErrorKind, &ev.Message, &created); err != nil {
			return nil, fmt.Errorf("failed to scan ingest event: %w", err)
		}
		ev.CreatedAt, err = time.Parse(eventTimeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ingest event time %q: %w", created, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query ingest events: %w", err)
	}
	return events, nil
}
