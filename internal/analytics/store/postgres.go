// Package store persists analytics events. Properties are stored as JSONB;
// retention deletes run in bounded batches.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"onboardingportal/internal/analytics"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, event *analytics.Event) error {
	properties, err := json.Marshal(event.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	query := `
		INSERT INTO analytics_events (id, name, user_hash, properties, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.ExecContext(ctx, query,
		event.ID, event.Name, event.UserHash, properties, event.OccurredAt); err != nil {
		return fmt.Errorf("insert analytics event: %w", err)
	}
	return nil
}

// DeleteOlderThan removes one batch of expired events. The ctid subquery
// keeps the delete bounded without needing an index on anything but
// occurred_at.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM analytics_events
		WHERE ctid IN (
			SELECT ctid FROM analytics_events
			WHERE occurred_at < $1
			LIMIT $2
		)
	`
	result, err := s.db.ExecContext(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("prune analytics events: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune analytics events: %w", err)
	}
	return deleted, nil
}
