// Package handler exposes the analytics ingest endpoint.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboardingportal/internal/platform/middleware"
	"onboardingportal/internal/transport/http/shared"
	dErrors "onboardingportal/pkg/domain-errors"
)

// Service defines the tracking operation the handler needs.
type Service interface {
	Track(ctx context.Context, name, userID string, properties map[string]any) error
}

type Handler struct {
	analytics Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(svc Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{analytics: svc, logger: logger, validator: validator}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/analytics/events", h.handleTrack)
	})
}

type trackRequest struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

func (h *Handler) handleTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.analytics.Track(ctx, req.Name, middleware.GetUserID(ctx), req.Properties); err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "track event failed",
				"request_id", middleware.GetRequestID(ctx),
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
