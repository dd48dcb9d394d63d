package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboardingportal/internal/platform/config"
	dErrors "onboardingportal/pkg/domain-errors"
)

type stubSessions struct {
	live map[string]bool
}

func (s stubSessions) Exists(_ context.Context, sessionID string) (bool, error) {
	return s.live[sessionID], nil
}

func newTestService(sessions SessionChecker) *Service {
	return NewService(config.Token{
		SigningKey:   "test-signing-key",
		Issuer:       "onboardingportal-test",
		AccessTTL:    15 * time.Minute,
		ChallengeTTL: 5 * time.Minute,
	}, sessions)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestService(stubSessions{live: map[string]bool{"sess-1": true}})

	signed, err := svc.IssueAccessToken("user-1", "sess-1", "beneficiary")
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "beneficiary", claims.Role)
}

func TestRevokedSessionInvalidatesToken(t *testing.T) {
	svc := newTestService(stubSessions{live: map[string]bool{}})

	signed, err := svc.IssueAccessToken("user-1", "sess-1", "beneficiary")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(context.Background(), signed)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestChallengeTokenIsNotAnAccessToken(t *testing.T) {
	svc := newTestService(stubSessions{live: map[string]bool{"sess-1": true}})

	challenge, err := svc.IssueChallengeToken("user-1")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(context.Background(), challenge)
	require.Error(t, err, "challenge tokens grant no access")

	userID, err := svc.ValidateChallengeToken(challenge)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestAccessTokenIsNotAChallengeToken(t *testing.T) {
	svc := newTestService(stubSessions{live: map[string]bool{"sess-1": true}})

	signed, err := svc.IssueAccessToken("user-1", "sess-1", "beneficiary")
	require.NoError(t, err)

	_, err = svc.ValidateChallengeToken(signed)
	assert.Error(t, err)
}

func TestTokenSignedWithDifferentKeyRejected(t *testing.T) {
	issuer := newTestService(stubSessions{live: map[string]bool{"sess-1": true}})
	verifier := NewService(config.Token{
		SigningKey: "a-different-key",
		Issuer:     "onboardingportal-test",
		AccessTTL:  15 * time.Minute,
	}, stubSessions{live: map[string]bool{"sess-1": true}})

	signed, err := issuer.IssueAccessToken("user-1", "sess-1", "beneficiary")
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(context.Background(), signed)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
}

func TestGarbageTokenRejected(t *testing.T) {
	svc := newTestService(stubSessions{})
	_, err := svc.ValidateAccessToken(context.Background(), "not.a.jwt")
	assert.Error(t, err)
}
