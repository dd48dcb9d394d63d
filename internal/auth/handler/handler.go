// Package handler exposes registration, login and session endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onboardingportal/internal/auth/models"
	"onboardingportal/internal/auth/service"
	"onboardingportal/internal/platform/middleware"
	"onboardingportal/internal/transport/http/shared"
	dErrors "onboardingportal/pkg/domain-errors"
)

// Service defines the auth operations the handler needs.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest, meta service.Meta) (*models.User, error)
	CheckEmail(ctx context.Context, email string) (bool, error)
	Login(ctx context.Context, req models.LoginRequest, meta service.Meta) (*models.LoginResult, error)
	Logout(ctx context.Context, userID, sessionID string, meta service.Meta) error
	CurrentUser(ctx context.Context, userID string) (*models.User, error)
}

type Handler struct {
	auth      Service
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(auth Service, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{auth: auth, logger: logger, validator: validator}
}

// Register mounts the auth routes. Registration, email check and login
// are public; the rest requires a bearer token.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/check-email", h.handleCheckEmail)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Get("/auth/user", h.handleCurrentUser)
		r.Post("/auth/logout", h.handleLogout)
	})
}

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	CPF        string    `json:"cpf"`
	Phone      string    `json:"phone"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	MFAEnabled bool      `json:"mfa_enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:         user.ID,
		Email:      user.Email,
		CPF:        user.CPF,
		Phone:      user.Phone,
		FullName:   user.FullName,
		Role:       user.Role,
		MFAEnabled: user.MFAEnabled,
		CreatedAt:  user.CreatedAt,
	}
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	user, err := h.auth.Register(ctx, req, requestMeta(r))
	if err != nil {
		h.logError(ctx, "register failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) handleCheckEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	available, err := h.auth.CheckEmail(ctx, req.Email)
	if err != nil {
		h.logError(ctx, "check email failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.auth.Login(ctx, req, requestMeta(r))
	if err != nil {
		h.logError(ctx, "login failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := h.auth.Logout(ctx, middleware.GetUserID(ctx), middleware.GetSessionID(ctx), requestMeta(r))
	if err != nil {
		h.logError(ctx, "logout failed", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.auth.CurrentUser(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.logError(ctx, "load current user failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toUserResponse(user))
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
