// Package store persists MFA enrollments and recovery codes. Pure I/O;
// verification rules live in the mfa service.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"onboardingportal/internal/mfa"
)

// ErrNotFound is returned when a user has no enrollment.
var ErrNotFound = errors.New("mfa enrollment not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert replaces any existing enrollment for the user. Re-enrolling
// discards the previous secret and its recovery codes.
func (s *PostgresStore) Upsert(ctx context.Context, e *mfa.Enrollment) error {
	query := `
		INSERT INTO mfa_enrollments (user_id, secret_sealed, confirmed, last_counter, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			secret_sealed = EXCLUDED.secret_sealed,
			confirmed = EXCLUDED.confirmed,
			last_counter = EXCLUDED.last_counter,
			created_at = EXCLUDED.created_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		e.UserID, e.SecretSealed, e.Confirmed, e.LastCounter, e.CreatedAt); err != nil {
		return fmt.Errorf("upsert mfa enrollment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*mfa.Enrollment, error) {
	query := `
		SELECT user_id, secret_sealed, confirmed, last_counter, created_at
		FROM mfa_enrollments
		WHERE user_id = $1
	`
	var e mfa.Enrollment
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&e.UserID, &e.SecretSealed, &e.Confirmed, &e.LastCounter, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get mfa enrollment: %w", err)
	}
	return &e, nil
}

// SetConfirmed marks the enrollment active and records the counter that
// confirmed it.
func (s *PostgresStore) SetConfirmed(ctx context.Context, userID string, counter int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE mfa_enrollments SET confirmed = TRUE, last_counter = $2 WHERE user_id = $1`,
		userID, counter)
	if err != nil {
		return fmt.Errorf("confirm mfa enrollment: %w", err)
	}
	return requireAffected(result)
}

// SetLastCounter advances the replay guard.
func (s *PostgresStore) SetLastCounter(ctx context.Context, userID string, counter int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE mfa_enrollments SET last_counter = $2 WHERE user_id = $1`,
		userID, counter)
	if err != nil {
		return fmt.Errorf("update mfa counter: %w", err)
	}
	return requireAffected(result)
}

// Delete removes the enrollment and its recovery codes.
func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete mfa enrollment: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM mfa_recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete recovery codes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM mfa_enrollments WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete mfa enrollment: %w", err)
	}
	return tx.Commit()
}

// ReplaceRecoveryCodes swaps the full recovery code set.
func (s *PostgresStore) ReplaceRecoveryCodes(ctx context.Context, userID string, codes []mfa.RecoveryCode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace recovery codes: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM mfa_recovery_codes WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear recovery codes: %w", err)
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mfa_recovery_codes (id, user_id, code_hash, used) VALUES ($1, $2, $3, FALSE)`,
			code.ID, code.UserID, code.CodeHash); err != nil {
			return fmt.Errorf("insert recovery code: %w", err)
		}
	}
	return tx.Commit()
}

// UnusedRecoveryCodes lists codes still available for the user.
func (s *PostgresStore) UnusedRecoveryCodes(ctx context.Context, userID string) ([]mfa.RecoveryCode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, code_hash, used FROM mfa_recovery_codes WHERE user_id = $1 AND used = FALSE`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list recovery codes: %w", err)
	}
	defer rows.Close()
	var out []mfa.RecoveryCode
	for rows.Next() {
		var c mfa.RecoveryCode
		if err := rows.Scan(&c.ID, &c.UserID, &c.CodeHash, &c.Used); err != nil {
			return nil, fmt.Errorf("scan recovery code: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkRecoveryCodeUsed burns one code. Returns ErrNotFound if it was
// already used (single-use is enforced here, atomically).
func (s *PostgresStore) MarkRecoveryCodeUsed(ctx context.Context, codeID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE mfa_recovery_codes SET used = TRUE WHERE id = $1 AND used = FALSE`, codeID)
	if err != nil {
		return fmt.Errorf("mark recovery code used: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
