// Package handler exposes document upload and review endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboardingportal/internal/documents/models"
	"onboardingportal/internal/documents/service"
	"onboardingportal/internal/platform/middleware"
	"onboardingportal/internal/transport/http/shared"
	dErrors "onboardingportal/pkg/domain-errors"
)

// Service defines the document operations the handler needs.
type Service interface {
	Upload(ctx context.Context, userID string, req models.UploadRequest, meta service.Meta) (*models.Document, error)
	List(ctx context.Context, userID string) ([]*models.Document, error)
	Review(ctx context.Context, reviewerID, documentID string, req models.ReviewRequest, meta service.Meta) (*models.Document, error)
	Completion(ctx context.Context, userID string) (*models.Completion, error)
}

type Handler struct {
	documents Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(svc Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{documents: svc, logger: logger, validator: validator}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/documents", h.handleUpload)
		r.Get("/documents", h.handleList)
		r.Get("/documents/completion", h.handleCompletion)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.logger, "reviewer", "admin"))
			r.Post("/documents/{id}/review", h.handleReview)
		})
	})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	doc, err := h.documents.Upload(ctx, middleware.GetUserID(ctx), req, requestMeta(r))
	if err != nil {
		h.logError(ctx, "upload failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.documents.List(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.logError(ctx, "list documents failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (h *Handler) handleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	completion, err := h.documents.Completion(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.logError(ctx, "completion check failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, completion)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	doc, err := h.documents.Review(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"), req, requestMeta(r))
	if err != nil {
		h.logError(ctx, "review failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	attrs := []any{"request_id", middleware.GetRequestID(ctx), "error", err.Error()}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}

func requestMeta(r *http.Request) service.Meta {
	return service.Meta{
		RequestID: middleware.GetRequestID(r.Context()),
		IP:        r.RemoteAddr,
	}
}
