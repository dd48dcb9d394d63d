package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"onboardingportal/internal/gamification/handler/mocks"
	"onboardingportal/internal/gamification/models"
	"onboardingportal/internal/platform/middleware"
)

type staticValidator struct {
	claims *middleware.AuthClaims
}

func (v *staticValidator) ValidateAccessToken(_ context.Context, token string) (*middleware.AuthClaims, error) {
	if token != "valid-token" {
		return nil, errors.New("invalid token")
	}
	return v.claims, nil
}

func newRouter(svc Service) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := &staticValidator{claims: &middleware.AuthClaims{
		UserID:    "user-1",
		SessionID: "sess-1",
		Role:      "beneficiary",
	}}
	router := chi.NewRouter()
	New(svc, logger, validator).Register(router)
	return router
}

func TestProgressRequiresAuth(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := newRouter(mocks.NewMockService(ctrl))

	req := httptest.NewRequest(http.MethodGet, "/gamification/progress", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}
}

func TestProgressReturnsBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockService(ctrl)
	mockService.EXPECT().
		Progress(gomock.Any(), "user-1").
		Return(&models.Progress{Points: 150, Level: 2, NextLevel: 250, Badges: []string{"first_steps"}}, nil)

	router := newRouter(mockService)
	req := httptest.NewRequest(http.MethodGet, "/gamification/progress", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var progress models.Progress
	if err := json.NewDecoder(rec.Body).Decode(&progress); err != nil {
		t.Fatalf("failed to decode progress: %v", err)
	}
	if progress.Points != 150 || progress.Level != 2 {
		t.Fatalf("unexpected progress %+v", progress)
	}
}

func TestProgressServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockService(ctrl)
	mockService.EXPECT().
		Progress(gomock.Any(), "user-1").
		Return(nil, errors.New("db down"))

	router := newRouter(mockService)
	req := httptest.NewRequest(http.MethodGet, "/gamification/progress", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
