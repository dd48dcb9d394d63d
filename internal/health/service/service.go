// Package service owns the questionnaire lifecycle: drafts, answer
// patches, submission with scoring, and reviewer sign-off. Stores stay
// pure I/O.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"onboardingportal/internal/audit"
	"onboardingportal/internal/fieldcrypt"
	"onboardingportal/internal/health/models"
	"onboardingportal/internal/health/scoring"
	"onboardingportal/internal/health/store"
	dErrors "onboardingportal/pkg/domain-errors"
)

// Store is the persistence surface the service needs.
type Store interface {
	ListActiveTemplates(ctx context.Context) ([]*models.Template, error)
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	CreateResponse(ctx context.Context, response *models.Response) error
	GetResponse(ctx context.Context, id string) (*models.Response, error)
	FindDraft(ctx context.Context, userID, templateID string) (*models.Response, error)
	UpdateResponse(ctx context.Context, response *models.Response, expectedVersion int) error
}

// Tracker records product analytics events.
type Tracker interface {
	Track(ctx context.Context, name, userID string, properties map[string]any) error
}

// Awarder grants gamification points for onboarding actions.
type Awarder interface {
	Award(ctx context.Context, userID, action, reference string) error
}

// Meta carries request correlation data into audit events.
type Meta struct {
	RequestID string
	IP        string
}

type Service struct {
	store   Store
	ring    *fieldcrypt.Keyring
	auditor *audit.Publisher
	tracker Tracker
	awarder Awarder
	logger  *slog.Logger
	now     func() time.Time
}

func New(
	st Store,
	ring *fieldcrypt.Keyring,
	auditor *audit.Publisher,
	tracker Tracker,
	awarder Awarder,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:   st,
		ring:    ring,
		auditor: auditor,
		tracker: tracker,
		awarder: awarder,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *Service) ListTemplates(ctx context.Context) ([]*models.Template, error) {
	templates, err := s.store.ListActiveTemplates(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list templates")
	}
	return templates, nil
}

// StartResponse opens a draft for (user, template). If the user already
// has an open draft for the template it is returned instead of creating
// a second one.
func (s *Service) StartResponse(ctx context.Context, userID, templateID string) (*models.Response, error) {
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "template not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load template")
	}
	existing, err := s.store.FindDraft(ctx, userID, templateID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find draft")
	}
	if existing != nil {
		return s.opened(existing)
	}

	now := s.now().UTC()
	response := &models.Response{
		ID:         uuid.NewString(),
		UserID:     userID,
		TemplateID: templateID,
		Status:     models.StatusDraft,
		Version:    1,
		Answers:    map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateResponse(ctx, response); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create response")
	}
	return response, nil
}

// PatchAnswers merges the given answers into a draft. The caller must
// present the version it last read; a mismatch is a conflict and the
// row is left untouched.
func (s *Service) PatchAnswers(ctx context.Context, userID, responseID string, req models.PatchAnswersRequest) (*models.Response, error) {
	response, template, err := s.ownedDraft(ctx, userID, responseID)
	if err != nil {
		return nil, err
	}
	if err := validateAnswers(template, req.Answers); err != nil {
		return nil, err
	}

	for id, answer := range req.Answers {
		response.Answers[id] = answer
	}
	response.Version++
	response.UpdatedAt = s.now().UTC()

	if err := s.persist(ctx, response, req.Version); err != nil {
		return nil, err
	}
	return s.opened(response)
}

// Submit validates required questions, scores the response, seals text
// answers and locks the response. Submission is compliance-audited:
// when the audit record cannot be persisted the submission fails.
func (s *Service) Submit(ctx context.Context, userID, responseID string, req models.SubmitRequest, meta Meta) (*models.Response, error) {
	response, template, err := s.ownedDraft(ctx, userID, responseID)
	if err != nil {
		return nil, err
	}
	if err := validateRequired(template, response.Answers); err != nil {
		return nil, err
	}

	result := scoring.Score(template, response.Answers)
	if err := s.sealTextAnswers(template, response.Answers); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "seal answers")
	}

	now := s.now().UTC()
	response.Status = models.StatusSubmitted
	response.Score = &result.Score
	response.Band = result.Band
	response.SubmittedAt = &now
	response.UpdatedAt = now
	response.Version++

	if err := s.persist(ctx, response, req.Version); err != nil {
		return nil, err
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionResponseSubmitted,
		UserID:    userID,
		Resource:  fmt.Sprintf("questionnaire_response/%s", response.ID),
		RequestID: meta.RequestID,
		IP:        meta.IP,
		Detail:    fmt.Sprintf("band=%s template=%s", result.Band, response.TemplateID),
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit submission")
	}

	if err := s.tracker.Track(ctx, "questionnaire_submitted", userID, map[string]any{
		"template_id": response.TemplateID,
		"band":        string(result.Band),
	}); err != nil {
		s.logger.WarnContext(ctx, "analytics track failed", "event", "questionnaire_submitted", "error", err)
	}
	if err := s.awarder.Award(ctx, userID, "questionnaire_submitted", response.ID); err != nil {
		s.logger.WarnContext(ctx, "gamification award failed", "action", "questionnaire_submitted", "error", err)
	}

	return s.opened(response)
}

// Review marks a submitted response as reviewed. Only reviewers reach
// this path; the handler enforces the role.
func (s *Service) Review(ctx context.Context, reviewerID, responseID string, meta Meta) (*models.Response, error) {
	response, err := s.store.GetResponse(ctx, responseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "response not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load response")
	}
	if response.Status != models.StatusSubmitted {
		return nil, dErrors.New(dErrors.CodeConflict, "response is not awaiting review")
	}

	expected := response.Version
	response.Status = models.StatusReviewed
	response.ReviewedBy = reviewerID
	response.UpdatedAt = s.now().UTC()
	response.Version++

	if err := s.persist(ctx, response, expected); err != nil {
		return nil, err
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionResponseReviewed,
		UserID:    response.UserID,
		ActorID:   reviewerID,
		Resource:  fmt.Sprintf("questionnaire_response/%s", response.ID),
		RequestID: meta.RequestID,
		IP:        meta.IP,
	})
	return s.opened(response)
}

// GetResponse returns a response with text answers decrypted. Owners and
// reviewers may read it.
func (s *Service) GetResponse(ctx context.Context, userID, role, responseID string) (*models.Response, error) {
	response, err := s.store.GetResponse(ctx, responseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "response not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load response")
	}
	if response.UserID != userID && role != "reviewer" && role != "admin" {
		return nil, dErrors.New(dErrors.CodeForbidden, "response belongs to another user")
	}
	return s.opened(response)
}

// ownedDraft loads a response and checks it is the caller's open draft.
func (s *Service) ownedDraft(ctx context.Context, userID, responseID string) (*models.Response, *models.Template, error) {
	response, err := s.store.GetResponse(ctx, responseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "response not found")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load response")
	}
	if response.UserID != userID {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "response belongs to another user")
	}
	if response.Status != models.StatusDraft {
		return nil, nil, dErrors.New(dErrors.CodeConflict, "response is no longer a draft")
	}
	template, err := s.store.GetTemplate(ctx, response.TemplateID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "load template")
	}
	return response, template, nil
}

func (s *Service) persist(ctx context.Context, response *models.Response, expectedVersion int) error {
	if err := s.store.UpdateResponse(ctx, response, expectedVersion); err != nil {
		if errors.Is(err, store.ErrStaleVersion) {
			return dErrors.New(dErrors.CodeConflict, "response was modified concurrently")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "update response")
	}
	return nil
}

func (s *Service) sealTextAnswers(template *models.Template, answers map[string]any) error {
	for _, question := range template.Questions() {
		if question.Type != models.QuestionText {
			continue
		}
		value, ok := answers[question.ID].(string)
		if !ok || value == "" {
			continue
		}
		sealed, err := s.ring.Seal(value)
		if err != nil {
			return err
		}
		answers[question.ID] = sealed
	}
	return nil
}

// opened returns a copy of the response with text answers decrypted.
// Draft answers are still clear; sealed values only exist after submit.
func (s *Service) opened(response *models.Response) (*models.Response, error) {
	if response.Status == models.StatusDraft {
		return response, nil
	}
	for id, answer := range response.Answers {
		value, ok := answer.(string)
		if !ok {
			continue
		}
		plain, err := s.ring.Open(value)
		if err != nil {
			continue
		}
		response.Answers[id] = plain
	}
	return response, nil
}

func validateAnswers(template *models.Template, answers map[string]any) error {
	questions := make(map[string]models.Question)
	for _, question := range template.Questions() {
		questions[question.ID] = question
	}
	for id, answer := range answers {
		question, ok := questions[id]
		if !ok {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown question %q", id))
		}
		if err := validateAnswer(question, answer); err != nil {
			return err
		}
	}
	return nil
}

func validateAnswer(question models.Question, answer any) error {
	switch question.Type {
	case models.QuestionBoolean:
		if _, ok := answer.(bool); !ok {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("question %q expects a boolean", question.ID))
		}
	case models.QuestionScale:
		value, ok := answer.(float64)
		if !ok {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("question %q expects a number", question.ID))
		}
		if value < 0 || value > 10 {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("question %q expects a value between 0 and 10", question.ID))
		}
	case models.QuestionChoice:
		value, ok := answer.(string)
		if !ok {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("question %q expects a choice", question.ID))
		}
		valid := false
		for _, option := range question.Options {
			if option == value {
				valid = true
				break
			}
		}
		if !valid {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("question %q does not allow %q", question.ID, value))
		}
	case models.QuestionText:
		if _, ok := answer.(string); !ok {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("question %q expects text", question.ID))
		}
	}
	return nil
}

func validateRequired(template *models.Template, answers map[string]any) error {
	for _, question := range template.Questions() {
		if !question.Required {
			continue
		}
		if _, ok := answers[question.ID]; !ok {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("question %q is required", question.ID))
		}
	}
	return nil
}
