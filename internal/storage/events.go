package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EventProcessed reports whether the event with id was already handled.
func (r *SQLiteRepository) EventProcessed(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_events WHERE event_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup event: %w", err)
	}
	return true, nil
}

// MarkEventProcessed records id as handled. Marking twice is a no-op.
func (r *SQLiteRepository) MarkEventProcessed(ctx context.Context, id, userID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, user_id, processed_at) VALUES (?, ?, ?)
		 ON CONFLICT(event_id) DO NOTHING`,
		id, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

// CleanupProcessedEvents forgets events handled before cutoff and returns how
// many were removed.
func (r *SQLiteRepository) CleanupProcessedEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE processed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup processed events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup processed events: %w", err)
	}
	return n, nil
}
