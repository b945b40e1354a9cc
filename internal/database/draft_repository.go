package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const draftSchema = `
	CREATE TABLE IF NOT EXISTS booking_drafts (
		draft_key  TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_booking_drafts_updated_at ON booking_drafts (updated_at);
`

// DraftRepository stores persisted booking drafts in PostgreSQL
type DraftRepository struct {
	db DB
}

// NewDraftRepository creates a new draft repository
func NewDraftRepository(db DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// EnsureSchema creates the drafts table when it does not exist yet
func (r *DraftRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, draftSchema); err != nil {
		return fmt.Errorf("failed to create booking_drafts table: %w", err)
	}
	return nil
}

// Get returns the stored payload for key. A missing key is not an error.
func (r *DraftRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var payload string
	query := `SELECT payload FROM booking_drafts WHERE draft_key = $1`

	err := r.db.GetContext(ctx, &payload, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get draft: %w", err)
	}
	return payload, true, nil
}

// Set inserts or replaces the payload for key
func (r *DraftRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO booking_drafts (draft_key, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (draft_key) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Delete removes the payload for key. Deleting a missing key succeeds.
func (r *DraftRepository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM booking_drafts WHERE draft_key = $1`
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// PurgeOlderThan removes drafts not written since cutoff and returns how many went
func (r *DraftRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM booking_drafts WHERE updated_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge drafts: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// Ping checks the database is reachable
func (r *DraftRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
