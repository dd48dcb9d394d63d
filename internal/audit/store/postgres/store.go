// Package postgres implements the audit store on the transactional outbox
// pattern. Rows are appended with published_at NULL and flipped by the
// Kafka relay once delivered.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"onboardingportal/internal/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	// Category is derived from the action at append time so the stored row
	// is self-describing even if the mapping changes later.
	category := event.Action.Category()

	query := `
		INSERT INTO audit_events (id, category, occurred_at, action, user_id, actor_id, resource, request_id, ip, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), string(category), event.Timestamp, string(event.Action),
		nullable(event.UserID), nullable(event.ActorID), nullable(event.Resource),
		nullable(event.RequestID), nullable(event.IP), nullable(event.Detail),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// List returns trail rows matching the query, newest first.
func (s *Store) List(ctx context.Context, q audit.Query) ([]audit.StoredEvent, error) {
	query := `
		SELECT id, category, occurred_at, action,
		       COALESCE(user_id, ''), COALESCE(actor_id, ''), COALESCE(resource, ''),
		       COALESCE(request_id, ''), COALESCE(ip, ''), COALESCE(detail, '')
		FROM audit_events
		WHERE ($1 = '' OR user_id = $1)
		  AND ($2 = '' OR action = $2)
		  AND ($3::timestamptz IS NULL OR occurred_at >= $3)
		  AND ($4::timestamptz IS NULL OR occurred_at < $4)
		ORDER BY occurred_at DESC
		LIMIT $5
	`
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, query,
		q.UserID, string(q.Action), nullTime(q.From), nullTime(q.To), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.StoredEvent
	for rows.Next() {
		var e audit.StoredEvent
		var category, action string
		if err := rows.Scan(&e.ID, &category, &e.Timestamp, &action,
			&e.UserID, &e.ActorID, &e.Resource, &e.RequestID, &e.IP, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Action = audit.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClaimUnpublished selects up to limit unpublished rows for the relay.
// The row locks only span the statement, so a concurrent relay may pick
// up the same rows; the topic is consumed at-least-once and MarkPublished
// settles the claim.
func (s *Store) ClaimUnpublished(ctx context.Context, limit int) ([]audit.StoredEvent, error) {
	query := `
		SELECT id, category, occurred_at, action,
		       COALESCE(user_id, ''), COALESCE(actor_id, ''), COALESCE(resource, ''),
		       COALESCE(request_id, ''), COALESCE(ip, ''), COALESCE(detail, '')
		FROM audit_events
		WHERE published_at IS NULL
		ORDER BY occurred_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim unpublished audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.StoredEvent
	for rows.Next() {
		var e audit.StoredEvent
		var category, action string
		if err := rows.Scan(&e.ID, &category, &e.Timestamp, &action,
			&e.UserID, &e.ActorID, &e.Resource, &e.RequestID, &e.IP, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Action = audit.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkPublished stamps rows as delivered to Kafka.
func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE audit_events SET published_at = NOW() WHERE id = ANY($1)`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
