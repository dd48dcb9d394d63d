// Package handler exposes the gamification progress endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"onboardingportal/internal/gamification/models"
	"onboardingportal/internal/platform/middleware"
	"onboardingportal/internal/transport/http/shared"
	dErrors "onboardingportal/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/gamification-mocks.go -package=mocks Service

// Service defines the gamification operations the handler needs.
type Service interface {
	Progress(ctx context.Context, userID string) (*models.Progress, error)
}

type Handler struct {
	gamification Service
	logger       *slog.Logger
	validator    middleware.TokenValidator
}

func New(svc Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{gamification: svc, logger: logger, validator: validator}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Get("/gamification/progress", h.handleProgress)
	})
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	progress, err := h.gamification.Progress(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "load progress failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load progress"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, progress)
}
