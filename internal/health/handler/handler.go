// Package handler exposes the questionnaire endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboardingportal/internal/health/models"
	"onboardingportal/internal/health/service"
	"onboardingportal/internal/platform/middleware"
	"onboardingportal/internal/transport/http/shared"
	dErrors "onboardingportal/pkg/domain-errors"
)

// Service defines the questionnaire operations the handler needs.
type Service interface {
	ListTemplates(ctx context.Context) ([]*models.Template, error)
	StartResponse(ctx context.Context, userID, templateID string) (*models.Response, error)
	PatchAnswers(ctx context.Context, userID, responseID string, req models.PatchAnswersRequest) (*models.Response, error)
	Submit(ctx context.Context, userID, responseID string, req models.SubmitRequest, meta service.Meta) (*models.Response, error)
	Review(ctx context.Context, reviewerID, responseID string, meta service.Meta) (*models.Response, error)
	GetResponse(ctx context.Context, userID, role, responseID string) (*models.Response, error)
}

type Handler struct {
	health    Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(svc Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{health: svc, logger: logger, validator: validator}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Get("/health-questionnaires/templates", h.handleListTemplates)
		r.Post("/health/response", h.handleStartResponse)
		r.Get("/health/response/{id}", h.handleGetResponse)
		r.Patch("/health/response/{id}", h.handlePatchAnswers)
		r.Post("/health/response/{id}/submit", h.handleSubmit)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.logger, "reviewer", "admin"))
			r.Post("/health/response/{id}/review", h.handleReview)
		})
	})
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templates, err := h.health.ListTemplates(ctx)
	if err != nil {
		h.logError(ctx, "list templates failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) handleStartResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.StartResponseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	response, err := h.health.StartResponse(ctx, middleware.GetUserID(ctx), req.TemplateID)
	if err != nil {
		h.logError(ctx, "start response failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, response)
}

func (h *Handler) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response, err := h.health.GetResponse(ctx,
		middleware.GetUserID(ctx), middleware.GetRole(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.logError(ctx, "get response failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) handlePatchAnswers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.PatchAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	response, err := h.health.PatchAnswers(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"), req)
	if err != nil {
		h.logError(ctx, "patch answers failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	response, err := h.health.Submit(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"), req, requestMeta(r))
	if err != nil {
		h.logError(ctx, "submit response failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response, err := h.health.Review(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"), requestMeta(r))
	if err != nil {
		h.logError(ctx, "review response failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, response)
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
