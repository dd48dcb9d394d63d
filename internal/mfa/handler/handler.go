// Package handler exposes MFA enrollment and challenge endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmodels "onboardingportal/internal/auth/models"
	authservice "onboardingportal/internal/auth/service"
	"onboardingportal/internal/mfa"
	"onboardingportal/internal/platform/middleware"
	"onboardingportal/internal/transport/http/shared"
	dErrors "onboardingportal/pkg/domain-errors"
)

// Service defines the MFA operations the handler needs.
type Service interface {
	StartEnrollment(ctx context.Context, userID string) (*mfa.EnrollResult, error)
	Activate(ctx context.Context, userID, code string, meta authservice.Meta) (*mfa.ActivateResult, error)
	VerifyChallenge(ctx context.Context, challengeToken, code string, meta authservice.Meta) (*authmodels.LoginResult, error)
	Disable(ctx context.Context, userID, code string, meta authservice.Meta) error
}

type Handler struct {
	mfa       Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(svc Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{mfa: svc, logger: logger, validator: validator}
}

// Register mounts the MFA routes. The challenge endpoint is public: the
// caller is only half authenticated and presents a challenge token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/mfa/challenge", h.handleChallenge)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/auth/mfa", h.handleEnroll)
		r.Post("/auth/mfa/verify", h.handleActivate)
		r.Delete("/auth/mfa", h.handleDisable)
	})
}

type codeRequest struct {
	Code string `json:"code"`
}

type challengeRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.mfa.StartEnrollment(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.logError(ctx, "mfa enrollment failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.mfa.Activate(ctx, middleware.GetUserID(ctx), req.Code, requestMeta(r))
	if err != nil {
		h.logError(ctx, "mfa activation failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.mfa.VerifyChallenge(ctx, req.ChallengeToken, req.Code, requestMeta(r))
	if err != nil {
		h.logError(ctx, "mfa challenge failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.mfa.Disable(ctx, middleware.GetUserID(ctx), req.Code, requestMeta(r)); err != nil {
		h.logError(ctx, "mfa disable failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	attrs := []any{"request_id", middleware.GetRequestID(ctx), "error", err.Error()}
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}

func requestMeta(r *http.Request) authservice.Meta {
	return authservice.Meta{
		RequestID: middleware.GetRequestID(r.Context()),
		IP:        r.RemoteAddr,
	}
}
