// Package store persists questionnaire templates and responses.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"onboardingportal/internal/health/models"
)

var ErrNotFound = errors.New("health record not found")

// ErrStaleVersion means the caller's version no longer matches the row.
var ErrStaleVersion = errors.New("response version is stale")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateTemplate(ctx context.Context, template *models.Template) error {
	definition, err := json.Marshal(template.Sections)
	if err != nil {
		return fmt.Errorf("marshal template definition: %w", err)
	}
	query := `
		INSERT INTO questionnaire_templates (id, name, version, active, definition, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query,
		template.ID, template.Name, template.Version, template.Active,
		definition, template.CreatedAt); err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListActiveTemplates(ctx context.Context) ([]*models.Template, error) {
	query := `
		SELECT id, name, version, active, definition, created_at
		FROM questionnaire_templates
		WHERE active = TRUE
		ORDER BY name, version DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	return templates, rows.Err()
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	query := `
		SELECT id, name, version, active, definition, created_at
		FROM questionnaire_templates
		WHERE id = $1
	`
	template, err := scanTemplate(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return template, nil
}

func (s *PostgresStore) CreateResponse(ctx context.Context, response *models.Response) error {
	answers, err := json.Marshal(response.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	query := `
		INSERT INTO questionnaire_responses
			(id, user_id, template_id, status, version, answers, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := s.db.ExecContext(ctx, query,
		response.ID, response.UserID, response.TemplateID, response.Status,
		response.Version, answers, response.CreatedAt, response.UpdatedAt); err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	query := selectResponse + ` WHERE id = $1`
	response, err := scanResponse(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return response, nil
}

// FindDraft returns the user's open draft for a template, or nil when
// there is none.
func (s *PostgresStore) FindDraft(ctx context.Context, userID, templateID string) (*models.Response, error) {
	query := selectResponse + ` WHERE user_id = $1 AND template_id = $2 AND status = 'draft'`
	response, err := scanResponse(s.db.QueryRowContext(ctx, query, userID, templateID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return response, nil
}

// UpdateResponse writes the response guarded by expectedVersion. The row
// version advances to response.Version; a mismatch reports
// ErrStaleVersion without touching the row.
func (s *PostgresStore) UpdateResponse(ctx context.Context, response *models.Response, expectedVersion int) error {
	answers, err := json.Marshal(response.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	query := `
		UPDATE questionnaire_responses
		SET status = $1, version = $2, answers = $3, score = $4, band = $5,
			updated_at = $6, submitted_at = $7, reviewed_by = $8
		WHERE id = $9 AND version = $10
	`
	result, err := s.db.ExecContext(ctx, query,
		response.Status, response.Version, answers,
		nullFloat(response.Score), nullString(string(response.Band)),
		response.UpdatedAt, nullTime(response.SubmittedAt), nullString(response.ReviewedBy),
		response.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update response: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update response: %w", err)
	}
	if affected == 0 {
		return ErrStaleVersion
	}
	return nil
}

const selectResponse = `
	SELECT id, user_id, template_id, status, version, answers, score, band,
		created_at, updated_at, submitted_at, reviewed_by
	FROM questionnaire_responses
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var template models.Template
	var definition []byte
	if err := row.Scan(&template.ID, &template.Name, &template.Version,
		&template.Active, &definition, &template.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(definition, &template.Sections); err != nil {
		return nil, fmt.Errorf("decode template definition: %w", err)
	}
	return &template, nil
}

func scanResponse(row rowScanner) (*models.Response, error) {
	var response models.Response
	var answers []byte
	var score sql.NullFloat64
	var band, reviewedBy sql.NullString
	var submittedAt sql.NullTime
	if err := row.Scan(&response.ID, &response.UserID, &response.TemplateID,
		&response.Status, &response.Version, &answers, &score, &band,
		&response.CreatedAt, &response.UpdatedAt, &submittedAt, &reviewedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &response.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if score.Valid {
		response.Score = &score.Float64
	}
	if band.Valid {
		response.Band = models.RiskBand(band.String)
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		response.SubmittedAt = &t
	}
	response.ReviewedBy = reviewedBy.String
	return &response, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
