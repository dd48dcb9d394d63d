// Package store persists gamification awards.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"onboardingportal/internal/gamification/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InsertAward records an award once. A repeat of the same
// (user, action, reference) is ignored and reported as not inserted.
func (s *PostgresStore) InsertAward(ctx context.Context, award *models.Award) (bool, error) {
	query := `
		INSERT INTO gamification_awards (id, user_id, action, reference, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, action, reference) DO NOTHING
	`
	result, err := s.db.ExecContext(ctx, query,
		award.ID, award.UserID, award.Action, award.Reference, award.Points, award.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert award: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert award: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SumPoints(ctx context.Context, userID string) (int, error) {
	query := `SELECT COALESCE(SUM(points), 0) FROM gamification_awards WHERE user_id = $1`
	var points int
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&points); err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return points, nil
}

func (s *PostgresStore) ListActions(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT DISTINCT action FROM gamification_awards
		WHERE user_id = $1
		ORDER BY action
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []string
	for rows.Next() {
		var action string
		if err := rows.Scan(&action); err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}
	return actions, rows.Err()
}
