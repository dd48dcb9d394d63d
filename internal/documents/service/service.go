// Package service owns document review rules: which uploads are
// accepted, who may review, and which transitions are legal.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"onboardingportal/internal/audit"
	"onboardingportal/internal/documents/models"
	"onboardingportal/internal/documents/store"
	dErrors "onboardingportal/pkg/domain-errors"
)

// maxDocumentBytes caps the declared upload size at 10 MiB.
const maxDocumentBytes = 10 << 20

var sha256Pattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Document, error)
	Latest(ctx context.Context, userID string, docType models.DocumentType) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
}

type Tracker interface {
	Track(ctx context.Context, name, userID string, properties map[string]any) error
}

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
	auditor *audit.Publisher
	tracker Tracker
	awarder Awarder
	logger  *slog.Logger
	now     func() time.Time
}

func New(st Store, auditor *audit.Publisher, tracker Tracker, awarder Awarder, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		auditor: auditor,
		tracker: tracker,
		awarder: awarder,
		logger:  logger,
		now:     time.Now,
	}
}

// Upload registers pending metadata for a document. A new upload may
// replace a pending or rejected document; uploading over an approved
// one is a conflict.
func (s *Service) Upload(ctx context.Context, userID string, req models.UploadRequest, meta Meta) (*models.Document, error) {
	if err := validateUpload(req); err != nil {
		return nil, err
	}

	latest, err := s.store.Latest(ctx, userID, req.Type)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load document")
	}
	if latest != nil && latest.Status == models.StatusApproved {
		return nil, dErrors.New(dErrors.CodeConflict, "document of this type is already approved")
	}

	now := s.now().UTC()
	doc := &models.Document{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      req.Type,
		Status:    models.StatusPending,
		Filename:  req.Filename,
		MimeType:  req.MimeType,
		SizeBytes: req.SizeBytes,
		SHA256:    req.SHA256,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create document")
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionDocumentUploaded,
		UserID:    userID,
		Resource:  fmt.Sprintf("document/%s", doc.ID),
		RequestID: meta.RequestID,
		IP:        meta.IP,
		Detail:    fmt.Sprintf("type=%s", doc.Type),
	})
	if err := s.tracker.Track(ctx, "document_uploaded", userID, map[string]any{
		"type": string(doc.Type),
	}); err != nil {
		s.logger.WarnContext(ctx, "analytics track failed", "event", "document_uploaded", "error", err)
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*models.Document, error) {
	docs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list documents")
	}
	return docs, nil
}

// Review approves or rejects a pending document. Approval is
// compliance-audited; if the audit record cannot be persisted the
// review fails.
func (s *Service) Review(ctx context.Context, reviewerID, documentID string, req models.ReviewRequest, meta Meta) (*models.Document, error) {
	doc, err := s.store.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load document")
	}
	if doc.Status != models.StatusPending {
		return nil, dErrors.New(dErrors.CodeConflict, "document is not pending review")
	}

	var action audit.Action
	switch req.Decision {
	case "approve":
		doc.Status = models.StatusApproved
		action = audit.ActionDocumentApproved
	case "reject":
		if req.Reason == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "rejection requires a reason")
		}
		doc.Status = models.StatusRejected
		doc.RejectReason = req.Reason
		action = audit.ActionDocumentRejected
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "decision must be approve or reject")
	}
	doc.ReviewedBy = reviewerID
	doc.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update document")
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:    action,
		UserID:    doc.UserID,
		ActorID:   reviewerID,
		Resource:  fmt.Sprintf("document/%s", doc.ID),
		RequestID: meta.RequestID,
		IP:        meta.IP,
		Detail:    fmt.Sprintf("type=%s", doc.Type),
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit review")
	}

	if doc.Status == models.StatusApproved {
		if err := s.awarder.Award(ctx, doc.UserID, "document_approved", doc.ID); err != nil {
			s.logger.WarnContext(ctx, "gamification award failed", "action", "document_approved", "error", err)
		}
	}
	return doc, nil
}

// Completion reports whether every required document type has an
// approved upload.
func (s *Service) Completion(ctx context.Context, userID string) (*models.Completion, error) {
	completion := &models.Completion{
		Complete: true,
		Statuses: make(map[models.DocumentType]models.DocumentStatus, len(models.RequiredTypes)),
	}
	for _, docType := range models.RequiredTypes {
		latest, err := s.store.Latest(ctx, userID, docType)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load document")
		}
		if latest == nil {
			completion.Complete = false
			continue
		}
		completion.Statuses[docType] = latest.Status
		if latest.Status != models.StatusApproved {
			completion.Complete = false
		}
	}
	return completion, nil
}

func validateUpload(req models.UploadRequest) error {
	if !models.KnownType(req.Type) {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown document type")
	}
	if req.Filename == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "filename is required")
	}
	if req.SizeBytes <= 0 || req.SizeBytes > maxDocumentBytes {
		return dErrors.New(dErrors.CodeInvalidInput, "document size is out of range")
	}
	if !sha256Pattern.MatchString(req.SHA256) {
		return dErrors.New(dErrors.CodeInvalidInput, "sha256 must be 64 hex characters")
	}
	return nil
}
