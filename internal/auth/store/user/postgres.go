// Package user persists user records. PHI columns arrive pre-sealed; this
// store is pure I/O.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"onboardingportal/internal/auth/models"
)

// ErrNotFound is returned when no user matches.
var ErrNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when the email blind index collides.
var ErrDuplicateEmail = errors.New("email already registered")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, record *models.UserRecord) error {
	query := `
		INSERT INTO users (id, email_sealed, email_hash, cpf_sealed, cpf_hash, phone_sealed, name_sealed, password_hash, role, mfa_enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.EmailSealed, record.EmailHash, record.CPFSealed, record.CPFHash,
		record.PhoneSealed, record.NameSealed, record.PasswordHash, record.Role,
		record.MFAEnabled, record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		// 23505 unique_violation on the email hash index.
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.UserRecord, error) {
	query := selectUser + ` WHERE id = $1`
	record, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) GetByEmailHash(ctx context.Context, emailHash string) (*models.UserRecord, error) {
	query := selectUser + ` WHERE email_hash = $1`
	record, err := scanUser(s.db.QueryRowContext(ctx, query, emailHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by email hash: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) EmailExists(ctx context.Context, emailHash string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email_hash = $1)`, emailHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SetMFAEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set mfa enabled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set mfa enabled: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const selectUser = `
	SELECT id, email_sealed, email_hash, cpf_sealed, cpf_hash, phone_sealed, name_sealed, password_hash, role, mfa_enabled, created_at
	FROM users
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.UserRecord, error) {
	var r models.UserRecord
	err := row.Scan(&r.ID, &r.EmailSealed, &r.EmailHash, &r.CPFSealed, &r.CPFHash,
		&r.PhoneSealed, &r.NameSealed, &r.PasswordHash, &r.Role, &r.MFAEnabled, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
