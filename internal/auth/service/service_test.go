package service

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"onboardingportal/internal/audit"
	auditmem "onboardingportal/internal/audit/store/memory"
	"onboardingportal/internal/auth/models"
	"onboardingportal/internal/auth/store/lockout"
	"onboardingportal/internal/auth/store/session"
	"onboardingportal/internal/auth/store/user"
	"onboardingportal/internal/auth/token"
	"onboardingportal/internal/fieldcrypt"
	"onboardingportal/internal/platform/config"
	"onboardingportal/internal/platform/metrics"
	dErrors "onboardingportal/pkg/domain-errors"
)

var testMetrics = metrics.New()

type recordingAwarder struct {
	awards []string
}

func (a *recordingAwarder) Award(_ context.Context, _ string, action, _ string) error {
	a.awards = append(a.awards, action)
	return nil
}

type AuthServiceSuite struct {
	suite.Suite
	ctx      context.Context
	svc      *Service
	users    *user.MemoryStore
	sessions *session.MemoryStore
	auditlog *auditmem.Store
	awarder  *recordingAwarder
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.ctx = context.Background()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	s.Require().NoError(err)
	ring, err := fieldcrypt.NewKeyring(map[string][]byte{"1": key}, "1")
	s.Require().NoError(err)

	s.users = user.NewMemory()
	s.sessions = session.NewMemory()
	s.auditlog = auditmem.New()
	s.awarder = &recordingAwarder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	lockoutCfg := config.Lockout{MaxFailures: 3, Window: 15 * time.Minute, LockFor: 15 * time.Minute}
	tokens := token.NewService(config.Token{
		SigningKey:   "test-signing-key",
		Issuer:       "test",
		AccessTTL:    15 * time.Minute,
		ChallengeTTL: 5 * time.Minute,
	}, s.sessions)

	s.svc = New(
		s.users,
		s.sessions,
		lockout.NewMemory(lockoutCfg),
		tokens,
		ring,
		fieldcrypt.NewIndexer("test-pepper"),
		audit.NewPublisher(s.auditlog, logger, testMetrics),
		s.awarder,
		logger,
		testMetrics,
	)
}

func validRegistration() models.RegisterRequest {
	return models.RegisterRequest{
		Email:    "maria@example.com",
		Password: "correct-horse-battery",
		FullName: "Maria Silva",
		CPF:      "123.456.789-09",
		Phone:    "11987654321",
	}
}

func (s *AuthServiceSuite) register() *models.User {
	u, err := s.svc.Register(s.ctx, validRegistration(), Meta{RequestID: "req-1"})
	s.Require().NoError(err)
	return u
}

func (s *AuthServiceSuite) TestRegisterSealsPHIAtRest() {
	u := s.register()

	s.Equal("maria@example.com", u.Email)
	s.Equal(models.RoleBeneficiary, u.Role)

	record, err := s.users.GetByID(s.ctx, u.ID)
	s.Require().NoError(err)
	s.NotContains(record.EmailSealed, "maria")
	s.NotContains(record.CPFSealed, "123.456")
	s.NotContains(record.NameSealed, "Maria")
	s.NotEqual("correct-horse-battery", record.PasswordHash)

	events := s.auditlog.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionUserRegistered, events[0].Action)
	s.Equal([]string{"registration_complete"}, s.awarder.awards)
}

func (s *AuthServiceSuite) TestRegisterDuplicateEmail() {
	s.register()

	_, err := s.svc.Register(s.ctx, validRegistration(), Meta{})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeConflict))
}

func (s *AuthServiceSuite) TestRegisterValidation() {
	tests := []struct {
		name   string
		mutate func(*models.RegisterRequest)
	}{
		{"bad email", func(r *models.RegisterRequest) { r.Email = "not-an-email" }},
		{"short password", func(r *models.RegisterRequest) { r.Password = "short" }},
		{"missing name", func(r *models.RegisterRequest) { r.FullName = "" }},
		{"bad cpf", func(r *models.RegisterRequest) { r.CPF = "12345" }},
	}
	for _, tt := range tests {
		req := validRegistration()
		tt.mutate(&req)
		_, err := s.svc.Register(s.ctx, req, Meta{})
		s.Require().Error(err, tt.name)
		s.True(dErrors.Is(err, dErrors.CodeInvalidInput), tt.name)
	}
}

func (s *AuthServiceSuite) TestCheckEmail() {
	available, err := s.svc.CheckEmail(s.ctx, "maria@example.com")
	s.Require().NoError(err)
	s.True(available)

	s.register()

	available, err = s.svc.CheckEmail(s.ctx, "Maria@Example.com")
	s.Require().NoError(err)
	s.False(available, "lookup is case-insensitive")
}

func (s *AuthServiceSuite) TestLoginSuccess() {
	s.register()

	result, err := s.svc.Login(s.ctx, models.LoginRequest{
		Email:    "maria@example.com",
		Password: "correct-horse-battery",
	}, Meta{})
	s.Require().NoError(err)
	s.False(result.MFARequired)
	s.NotEmpty(result.AccessToken)
	s.EqualValues((15 * time.Minute).Seconds(), result.ExpiresIn)
}

func (s *AuthServiceSuite) TestLoginWrongPassword() {
	s.register()

	_, err := s.svc.Login(s.ctx, models.LoginRequest{
		Email:    "maria@example.com",
		Password: "wrong-password",
	}, Meta{})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeUnauthorized))
}

func (s *AuthServiceSuite) TestLoginUnknownEmailSameError() {
	s.register()

	wrongPass, _ := s.svc.Login(s.ctx, models.LoginRequest{Email: "maria@example.com", Password: "nope-nope-nope"}, Meta{})
	unknown, _ := s.svc.Login(s.ctx, models.LoginRequest{Email: "ghost@example.com", Password: "nope-nope-nope"}, Meta{})
	s.Nil(wrongPass)
	s.Nil(unknown)
}

func (s *AuthServiceSuite) TestLoginLockoutAfterRepeatedFailures() {
	s.register()

	for i := 0; i < 3; i++ {
		_, err := s.svc.Login(s.ctx, models.LoginRequest{
			Email:    "maria@example.com",
			Password: "wrong-password",
		}, Meta{})
		s.Require().Error(err)
	}

	// Even the correct password is refused while locked.
	_, err := s.svc.Login(s.ctx, models.LoginRequest{
		Email:    "maria@example.com",
		Password: "correct-horse-battery",
	}, Meta{})
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeRateLimited))

	var sawLock bool
	for _, e := range s.auditlog.Events() {
		if e.Action == audit.ActionLoginLocked {
			sawLock = true
		}
	}
	s.True(sawLock, "lockout emits a security audit event")
}

func (s *AuthServiceSuite) TestLoginWithMFAReturnsChallenge() {
	u := s.register()
	s.Require().NoError(s.users.SetMFAEnabled(s.ctx, u.ID, true))

	result, err := s.svc.Login(s.ctx, models.LoginRequest{
		Email:    "maria@example.com",
		Password: "correct-horse-battery",
	}, Meta{})
	s.Require().NoError(err)
	s.True(result.MFARequired)
	s.Empty(result.AccessToken)
	s.NotEmpty(result.ChallengeToken)
}

func (s *AuthServiceSuite) TestLogoutRevokesSession() {
	u := s.register()
	result, err := s.svc.IssueSession(s.ctx, u.ID, Meta{})
	s.Require().NoError(err)
	s.Require().NotEmpty(result.AccessToken)

	// Find the session the login created.
	var sessionID string
	{
		// IssueSession stores exactly one session in this test.
		tokens := token.NewService(config.Token{SigningKey: "test-signing-key", Issuer: "test", AccessTTL: time.Minute, ChallengeTTL: time.Minute}, s.sessions)
		claims, err := tokens.ValidateAccessToken(s.ctx, result.AccessToken)
		s.Require().NoError(err)
		sessionID = claims.SessionID
	}

	s.Require().NoError(s.svc.Logout(s.ctx, u.ID, sessionID, Meta{}))

	live, err := s.sessions.Exists(s.ctx, sessionID)
	s.Require().NoError(err)
	s.False(live)
}

func (s *AuthServiceSuite) TestCurrentUserDecrypts() {
	u := s.register()

	got, err := s.svc.CurrentUser(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("maria@example.com", got.Email)
	s.Equal("123.456.789-09", got.CPF)
	s.Equal("Maria Silva", got.FullName)

	_, err = s.svc.CurrentUser(s.ctx, "missing-id")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func TestValidateRegistrationTableDriven(t *testing.T) {
	req := models.RegisterRequest{
		Email:    "ok@example.com",
		Password: "long-enough-password",
		FullName: "Ok Person",
		CPF:      "12345678909",
	}
	require.NoError(t, validateRegistration(req))

	req.CPF = "123.456.789-09"
	assert.NoError(t, validateRegistration(req), "punctuated CPF accepted")
}
