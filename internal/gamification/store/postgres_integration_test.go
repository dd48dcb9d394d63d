//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	authmodels "onboardingportal/internal/auth/models"
	"onboardingportal/internal/auth/store/user"
	"onboardingportal/internal/gamification/models"
	"onboardingportal/internal/gamification/store"
	"onboardingportal/pkg/testutil/containers"
)

type PostgresAwardSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	users    *user.PostgresStore
	userID   string
}

func TestPostgresAwardSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAwardSuite))
}

func (s *PostgresAwardSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.users = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresAwardSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "gamification_awards", "users"))

	s.userID = uuid.NewString()
	s.Require().NoError(s.users.Create(ctx, &authmodels.UserRecord{
		ID:           s.userID,
		EmailSealed:  "v1:sealed",
		EmailHash:    uuid.NewString(),
		CPFSealed:    "v1:sealed",
		CPFHash:      uuid.NewString(),
		PhoneSealed:  "v1:sealed",
		NameSealed:   "v1:sealed",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         "beneficiary",
		CreatedAt:    time.Now().UTC(),
	}))
}

func (s *PostgresAwardSuite) award(action, reference string) (bool, error) {
	return s.store.InsertAward(context.Background(), &models.Award{
		ID:        uuid.NewString(),
		UserID:    s.userID,
		Action:    action,
		Reference: reference,
		Points:    25,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *PostgresAwardSuite) TestInsertAwardIdempotent() {
	inserted, err := s.award("document_approved", "doc-1")
	s.Require().NoError(err)
	s.True(inserted)

	inserted, err = s.award("document_approved", "doc-1")
	s.Require().NoError(err)
	s.False(inserted, "repeat of the same triple must be ignored")

	points, err := s.store.SumPoints(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Equal(25, points)
}

func (s *PostgresAwardSuite) TestDistinctReferences() {
	_, err := s.award("document_approved", "doc-1")
	s.Require().NoError(err)
	_, err = s.award("document_approved", "doc-2")
	s.Require().NoError(err)

	points, err := s.store.SumPoints(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Equal(50, points)

	actions, err := s.store.ListActions(context.Background(), s.userID)
	s.Require().NoError(err)
	s.Equal([]string{"document_approved"}, actions)
}
