package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"onboardingportal/internal/gamification/store"
	dErrors "onboardingportal/pkg/domain-errors"
)

type recordingTracker struct {
	events []string
}

func (t *recordingTracker) Track(_ context.Context, name, _ string, _ map[string]any) error {
	t.events = append(t.events, name)
	return nil
}

type GamificationSuite struct {
	suite.Suite
	ctx     context.Context
	svc     *Service
	store   *store.MemoryStore
	tracker *recordingTracker
}

func TestGamificationSuite(t *testing.T) {
	suite.Run(t, new(GamificationSuite))
}

func (s *GamificationSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.tracker = &recordingTracker{}
	s.svc = New(s.store, s.tracker, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *GamificationSuite) TestAwardGrantsConfiguredPoints() {
	s.Require().NoError(s.svc.Award(s.ctx, "user-1", "registration_complete", "user-1"))

	progress, err := s.svc.Progress(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(50, progress.Points)
}

func (s *GamificationSuite) TestAwardIsIdempotent() {
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.svc.Award(s.ctx, "user-1", "questionnaire_submitted", "resp-1"))
	}
	progress, err := s.svc.Progress(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(100, progress.Points)
}

func (s *GamificationSuite) TestAwardDistinctReferencesAccumulate() {
	s.Require().NoError(s.svc.Award(s.ctx, "user-1", "document_approved", "doc-1"))
	s.Require().NoError(s.svc.Award(s.ctx, "user-1", "document_approved", "doc-2"))

	progress, err := s.svc.Progress(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(50, progress.Points)
}

func (s *GamificationSuite) TestAwardUnknownAction() {
	err := s.svc.Award(s.ctx, "user-1", "logged_in_twice", "x")
	s.Require().Error(err)
	s.Equal(dErrors.CodeInvalidInput, dErrors.CodeOf(err))
}

func (s *GamificationSuite) TestLevelUpEmitsAnalytics() {
	s.Require().NoError(s.svc.Award(s.ctx, "user-1", "registration_complete", "user-1"))
	s.Empty(s.tracker.events, "50 points stays at level 1")

	s.Require().NoError(s.svc.Award(s.ctx, "user-1", "questionnaire_submitted", "resp-1"))
	s.Contains(s.tracker.events, "gamification_level_up")
}

func (s *GamificationSuite) TestProgressBadges() {
	s.Require().NoError(s.svc.Award(s.ctx, "user-1", "registration_complete", "user-1"))
	s.Require().NoError(s.svc.Award(s.ctx, "user-1", "mfa_enabled", "user-1"))

	progress, err := s.svc.Progress(s.ctx, "user-1")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"first_steps", "account_guardian"}, progress.Badges)
}

func (s *GamificationSuite) TestProgressEmptyUser() {
	progress, err := s.svc.Progress(s.ctx, "ghost")
	s.Require().NoError(err)
	s.Equal(0, progress.Points)
	s.Equal(1, progress.Level)
	s.Empty(progress.Badges)
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		points int
		level  int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{499, 3},
		{500, 4},
		{999, 4},
		{1000, 5},
		{5000, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, LevelFor(tt.points), "points %d", tt.points)
	}
}