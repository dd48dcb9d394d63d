// Package store persists document metadata.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"onboardingportal/internal/documents/models"
)

var ErrNotFound = errors.New("document not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents
			(id, user_id, type, status, filename, mime_type, size_bytes, sha256, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.UserID, doc.Type, doc.Status, doc.Filename, doc.MimeType,
		doc.SizeBytes, doc.SHA256, doc.CreatedAt, doc.UpdatedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := selectDocument + ` WHERE id = $1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*models.Document, error) {
	query := selectDocument + ` WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Latest returns the most recent document of a type for a user, or nil
// when the user never uploaded one.
func (s *PostgresStore) Latest(ctx context.Context, userID string, docType models.DocumentType) (*models.Document, error) {
	query := selectDocument + ` WHERE user_id = $1 AND type = $2 ORDER BY created_at DESC LIMIT 1`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, userID, docType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents
		SET status = $1, reject_reason = $2, reviewed_by = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		doc.Status, nullString(doc.RejectReason), nullString(doc.ReviewedBy),
		doc.UpdatedAt, doc.ID)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const selectDocument = `
	SELECT id, user_id, type, status, filename, mime_type, size_bytes, sha256,
		reject_reason, reviewed_by, created_at, updated_at
	FROM documents
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var rejectReason, reviewedBy sql.NullString
	if err := row.Scan(&doc.ID, &doc.UserID, &doc.Type, &doc.Status,
		&doc.Filename, &doc.MimeType, &doc.SizeBytes, &doc.SHA256,
		&rejectReason, &reviewedBy, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	doc.RejectReason = rejectReason.String
	doc.ReviewedBy = reviewedBy.String
	return &doc, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
