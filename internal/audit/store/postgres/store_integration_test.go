//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboardingportal/internal/audit"
	"onboardingportal/internal/audit/store/postgres"
	"onboardingportal/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_events"))
}

func (s *PostgresAuditSuite) append(action audit.Action, userID string, at time.Time) {
	s.Require().NoError(s.store.Append(context.Background(), audit.Event{
		Timestamp: at,
		Action:    action,
		UserID:    userID,
		Resource:  "test",
	}))
}

func (s *PostgresAuditSuite) TestAppendAndList() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	s.append(audit.ActionLoginSucceeded, "user-1", now.Add(-2*time.Hour))
	s.append(audit.ActionLoginFailed, "user-2", now.Add(-time.Hour))
	s.append(audit.ActionUserRegistered, "user-1", now)

	events, err := s.store.List(context.Background(), audit.Query{UserID: "user-1"})
	s.Require().NoError(err)
	s.Require().Len(events, 2)

	events, err = s.store.List(context.Background(), audit.Query{Action: audit.ActionLoginFailed})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("user-2", events[0].UserID)

	events, err = s.store.List(context.Background(), audit.Query{From: now.Add(-30 * time.Minute)})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionUserRegistered, events[0].Action)
}

func (s *PostgresAuditSuite) TestCategoryAssignedOnAppend() {
	now := time.Now().UTC()
	s.append(audit.ActionUserRegistered, "user-1", now)

	events, err := s.store.List(context.Background(), audit.Query{})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionUserRegistered.Category(), events[0].Category)
}

func (s *PostgresAuditSuite) TestOutboxClaimAndPublish() {
	ctx := context.Background()
	now := time.Now().UTC()
	s.append(audit.ActionLoginSucceeded, "user-1", now)
	s.append(audit.ActionLoginSucceeded, "user-2", now)

	claimed, err := s.store.ClaimUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(claimed, 2)

	ids := []string{claimed[0].ID, claimed[1].ID}
	s.Require().NoError(s.store.MarkPublished(ctx, ids))

	claimed, err = s.store.ClaimUnpublished(ctx, 10)
	s.Require().NoError(err)
	s.Empty(claimed)
}

func (s *PostgresAuditSuite) TestClaimHonorsLimit() {
	ctx := context.Background()
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		s.append(audit.ActionLoginSucceeded, "user-1", now.Add(time.Duration(i)*time.Second))
	}

	claimed, err := s.store.ClaimUnpublished(ctx, 3)
	s.Require().NoError(err)
	s.Len(claimed, 3)
}
