package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboardingportal/internal/audit"
	auditmem "onboardingportal/internal/audit/store/memory"
	authmodels "onboardingportal/internal/auth/models"
	"onboardingportal/internal/auth/password"
	authservice "onboardingportal/internal/auth/service"
	"onboardingportal/internal/auth/store/user"
	"onboardingportal/internal/fieldcrypt"
	"onboardingportal/internal/mfa"
	"onboardingportal/internal/mfa/store"
	"onboardingportal/internal/platform/metrics"
	dErrors "onboardingportal/pkg/domain-errors"
)

var testMetrics = metrics.New()

type stubChallenges struct {
	userID string
	err    error
}

func (s stubChallenges) ValidateChallengeToken(string) (string, error) {
	return s.userID, s.err
}

type stubSessions struct {
	issued int
}

func (s *stubSessions) IssueSession(context.Context, string, authservice.Meta) (*authmodels.LoginResult, error) {
	s.issued++
	return &authmodels.LoginResult{AccessToken: "access-token", ExpiresIn: 900}, nil
}

type noopAwarder struct{}

func (noopAwarder) Award(context.Context, string, string, string) error { return nil }

type MFAServiceSuite struct {
	suite.Suite
	ctx         context.Context
	svc         *Service
	users       *user.MemoryStore
	enrollments *store.MemoryStore
	sessions    *stubSessions
	auditlog    *auditmem.Store
	ring        *fieldcrypt.Keyring
	userID      string
	clock       time.Time
}

func TestMFAServiceSuite(t *testing.T) {
	suite.Run(t, new(MFAServiceSuite))
}

func (s *MFAServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	key := make([]byte, 32)
	_, err := rand.Read(key)
	s.Require().NoError(err)
	s.ring, err = fieldcrypt.NewKeyring(map[string][]byte{"1": key}, "1")
	s.Require().NoError(err)

	s.users = user.NewMemory()
	s.enrollments = store.NewMemory()
	s.sessions = &stubSessions{}
	s.auditlog = auditmem.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.userID = "user-1"
	emailSealed, err := s.ring.Seal("maria@example.com")
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(s.ctx, &authmodels.UserRecord{
		ID:          s.userID,
		EmailSealed: emailSealed,
		EmailHash:   "hash",
		Role:        authmodels.RoleBeneficiary,
	}))

	s.svc = New(
		s.enrollments,
		s.users,
		stubChallenges{userID: s.userID},
		s.sessions,
		s.ring,
		audit.NewPublisher(s.auditlog, logger, testMetrics),
		noopAwarder{},
		logger,
	)
	s.svc.now = func() time.Time { return s.clock }
}

// currentCode computes the valid TOTP code for the enrolled secret at the
// given time, independently of the package under test.
func (s *MFAServiceSuite) currentCode(secret string, at time.Time) string {
	raw, err := mfa.DecodeSecret(secret)
	s.Require().NoError(err)

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(at.Unix()/30))
	mac := hmac.New(sha1.New, raw)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := (uint32(sum[offset])&0x7f)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])
	return fmt.Sprintf("%06d", value%1000000)
}

func (s *MFAServiceSuite) enrollAndActivate() (secret string, recovery []string) {
	enroll, err := s.svc.StartEnrollment(s.ctx, s.userID)
	s.Require().NoError(err)

	result, err := s.svc.Activate(s.ctx, s.userID, s.currentCode(enroll.Secret, s.clock), authservice.Meta{})
	s.Require().NoError(err)
	s.Require().Len(result.RecoveryCodes, 10)
	return enroll.Secret, result.RecoveryCodes
}

func (s *MFAServiceSuite) TestStartEnrollmentSealsSecret() {
	enroll, err := s.svc.StartEnrollment(s.ctx, s.userID)
	s.Require().NoError(err)
	s.NotEmpty(enroll.Secret)
	s.Contains(enroll.ProvisionURI, "otpauth://totp/")
	s.Contains(enroll.ProvisionURI, "maria@example.com")

	stored, err := s.enrollments.Get(s.ctx, s.userID)
	s.Require().NoError(err)
	s.False(stored.Confirmed)
	s.NotContains(stored.SecretSealed, enroll.Secret)
}

func (s *MFAServiceSuite) TestActivateEnablesMFA() {
	s.enrollAndActivate()

	record, err := s.users.GetByID(s.ctx, s.userID)
	s.Require().NoError(err)
	s.True(record.MFAEnabled)

	stored, err := s.enrollments.Get(s.ctx, s.userID)
	s.Require().NoError(err)
	s.True(stored.Confirmed)
}

func (s *MFAServiceSuite) TestActivateRejectsBadCode() {
	_, err := s.svc.StartEnrollment(s.ctx, s.userID)
	s.Require().NoError(err)

	_, err = s.svc.Activate(s.ctx, s.userID, "000000", authservice.Meta{})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *MFAServiceSuite) TestActivateWithoutEnrollment() {
	_, err := s.svc.Activate(s.ctx, s.userID, "123456", authservice.Meta{})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *MFAServiceSuite) TestChallengeWithTOTP() {
	secret, _ := s.enrollAndActivate()

	// Next period, fresh code.
	s.clock = s.clock.Add(60 * time.Second)
	result, err := s.svc.VerifyChallenge(s.ctx, "challenge", s.currentCode(secret, s.clock), authservice.Meta{})
	s.Require().NoError(err)
	s.Equal("access-token", result.AccessToken)
	s.Equal(1, s.sessions.issued)
}

func (s *MFAServiceSuite) TestChallengeRejectsReplayedCode() {
	secret, _ := s.enrollAndActivate()

	s.clock = s.clock.Add(60 * time.Second)
	code := s.currentCode(secret, s.clock)

	_, err := s.svc.VerifyChallenge(s.ctx, "challenge", code, authservice.Meta{})
	s.Require().NoError(err)

	_, err = s.svc.VerifyChallenge(s.ctx, "challenge", code, authservice.Meta{})
	s.Require().Error(err, "the same code must not work twice")
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *MFAServiceSuite) TestChallengeWithRecoveryCode() {
	_, recovery := s.enrollAndActivate()

	result, err := s.svc.VerifyChallenge(s.ctx, "challenge", recovery[0], authservice.Meta{})
	s.Require().NoError(err)
	s.Equal("access-token", result.AccessToken)

	// The code is single-use.
	_, err = s.svc.VerifyChallenge(s.ctx, "challenge", recovery[0], authservice.Meta{})
	s.Require().Error(err)

	var sawUse bool
	for _, e := range s.auditlog.Events() {
		if e.Action == audit.ActionRecoveryCodeUse {
			sawUse = true
		}
	}
	s.True(sawUse)
}

func (s *MFAServiceSuite) TestChallengeRejectsGarbage() {
	s.enrollAndActivate()

	_, err := s.svc.VerifyChallenge(s.ctx, "challenge", "totally-wrong", authservice.Meta{})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *MFAServiceSuite) TestDisableRequiresValidCode() {
	secret, _ := s.enrollAndActivate()

	err := s.svc.Disable(s.ctx, s.userID, "000000", authservice.Meta{})
	s.Require().Error(err)

	s.clock = s.clock.Add(60 * time.Second)
	err = s.svc.Disable(s.ctx, s.userID, s.currentCode(secret, s.clock), authservice.Meta{})
	s.Require().NoError(err)

	record, err := s.users.GetByID(s.ctx, s.userID)
	s.Require().NoError(err)
	s.False(record.MFAEnabled)

	_, err = s.enrollments.Get(s.ctx, s.userID)
	s.Require().Error(err)
}

func (s *MFAServiceSuite) TestRecoveryCodesAreHashedAtRest() {
	_, recovery := s.enrollAndActivate()

	stored, err := s.enrollments.UnusedRecoveryCodes(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Require().Len(stored, 10)
	for _, c := range stored {
		s.NotContains(recovery, c.CodeHash)
	}
	// And the hash verifies against the plaintext.
	s.Require().NoError(password.Verify(recovery[0], findHash(stored, recovery[0])))
}

func findHash(codes []mfa.RecoveryCode, plain string) string {
	for _, c := range codes {
		if password.Verify(plain, c.CodeHash) == nil {
			return c.CodeHash
		}
	}
	return ""
}
