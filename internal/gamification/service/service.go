// Package service grants onboarding points and computes progress.
// Awards are idempotent per (user, action, reference); services calling
// Award never need to deduplicate on their side.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"onboardingportal/internal/gamification/models"
	dErrors "onboardingportal/pkg/domain-errors"
)

// actionPoints fixes how much each onboarding action is worth.
var actionPoints = map[string]int{
	"registration_complete":   50,
	"document_approved":       25,
	"questionnaire_submitted": 100,
	"mfa_enabled":             25,
}

// actionBadges names the badge each action unlocks.
var actionBadges = map[string]string{
	"registration_complete":   "first_steps",
	"document_approved":       "paperwork_done",
	"questionnaire_submitted": "health_check",
	"mfa_enabled":             "account_guardian",
}

// levelThresholds are the cumulative points needed for each level.
var levelThresholds = []int{0, 100, 250, 500, 1000}

type Store interface {
	InsertAward(ctx context.Context, award *models.Award) (bool, error)
	SumPoints(ctx context.Context, userID string) (int, error)
	ListActions(ctx context.Context, userID string) ([]string, error)
}

type Tracker interface {
	Track(ctx context.Context, name, userID string, properties map[string]any) error
}

type Service struct {
	store   Store
	tracker Tracker
	logger  *slog.Logger
	now     func() time.Time
}

func New(st Store, tracker Tracker, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		tracker: tracker,
		logger:  logger,
		now:     time.Now,
	}
}

// Award grants the points configured for an action. Repeats of the same
// (user, action, reference) are silently ignored.
func (s *Service) Award(ctx context.Context, userID, action, reference string) error {
	points, known := actionPoints[action]
	if !known {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown award action")
	}

	before, err := s.store.SumPoints(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "sum points")
	}

	inserted, err := s.store.InsertAward(ctx, &models.Award{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Reference: reference,
		Points:    points,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "insert award")
	}
	if !inserted {
		return nil
	}

	if LevelFor(before+points) > LevelFor(before) {
		if err := s.tracker.Track(ctx, "gamification_level_up", userID, map[string]any{
			"level": LevelFor(before + points),
		}); err != nil {
			s.logger.WarnContext(ctx, "analytics track failed", "event", "gamification_level_up", "error", err)
		}
	}
	return nil
}

// Progress returns the user's points, level and badges.
func (s *Service) Progress(ctx context.Context, userID string) (*models.Progress, error) {
	points, err := s.store.SumPoints(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sum points")
	}
	actions, err := s.store.ListActions(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list actions")
	}

	badges := make([]string, 0, len(actions))
	for _, action := range actions {
		if badge, ok := actionBadges[action]; ok {
			badges = append(badges, badge)
		}
	}

	level := LevelFor(points)
	next := 0
	if level < len(levelThresholds) {
		next = levelThresholds[level]
	}
	return &models.Progress{
		Points:    points,
		Level:     level,
		NextLevel: next,
		Badges:    badges,
	}, nil
}

// LevelFor maps cumulative points to a level, starting at 1.
func LevelFor(points int) int {
	level := 0
	for _, threshold := range levelThresholds {
		if points >= threshold {
			level++
		}
	}
	return level
}
