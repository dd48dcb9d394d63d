// Package handler exposes the admin audit trail query endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"onboardingportal/internal/audit"
	"onboardingportal/internal/platform/middleware"
	"onboardingportal/internal/transport/http/shared"
	dErrors "onboardingportal/pkg/domain-errors"
)

// Trail is the read side of the audit store.
type Trail interface {
	List(ctx context.Context, q audit.Query) ([]audit.StoredEvent, error)
}

type Handler struct {
	trail     Trail
	logger    *slog.Logger
	validator middleware.TokenValidator
}

func New(trail Trail, logger *slog.Logger, validator middleware.TokenValidator) *Handler {
	return &Handler{trail: trail, logger: logger, validator: validator}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Use(middleware.RequireRole(h.logger, "admin"))
		r.Get("/admin/audit", h.handleQuery)
	})
}

type eventResponse struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	UserID    string    `json:"user_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query, err := parseQuery(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	events, err := h.trail.List(ctx, query)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to query audit trail"))
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, eventResponse{
			ID:        event.ID,
			Category:  string(event.Category),
			Timestamp: event.Timestamp,
			Action:    string(event.Action),
			UserID:    event.UserID,
			ActorID:   event.ActorID,
			Resource:  event.Resource,
			RequestID: event.RequestID,
			IP:        event.IP,
			Detail:    event.Detail,
		})
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}

func parseQuery(r *http.Request) (audit.Query, error) {
	values := r.URL.Query()
	query := audit.Query{
		UserID: values.Get("user_id"),
		Action: audit.Action(values.Get("action")),
	}
	if raw := values.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Query{}, dErrors.New(dErrors.CodeInvalidInput, "from must be RFC 3339")
		}
		query.From = from
	}
	if raw := values.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Query{}, dErrors.New(dErrors.CodeInvalidInput, "to must be RFC 3339")
		}
		query.To = to
	}
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return audit.Query{}, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
		}
		query.Limit = limit
	}
	return query, nil
}
