// Package service implements registration, login, lockout and session
// lifecycle. Stores are pure I/O; every rule lives here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"

	"onboardingportal/internal/audit"
	"onboardingportal/internal/auth/models"
	"onboardingportal/internal/auth/password"
	"onboardingportal/internal/auth/store/user"
	"onboardingportal/internal/fieldcrypt"
	"onboardingportal/internal/platform/metrics"
	dErrors "onboardingportal/pkg/domain-errors"
)

// UserStore persists user records.
type UserStore interface {
	Create(ctx context.Context, record *models.UserRecord) error
	GetByID(ctx context.Context, id string) (*models.UserRecord, error)
	GetByEmailHash(ctx context.Context, emailHash string) (*models.UserRecord, error)
	EmailExists(ctx context.Context, emailHash string) (bool, error)
}

// SessionStore persists revocable sessions.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	Revoke(ctx context.Context, sessionID string) error
}

// LockoutStore throttles failed logins.
type LockoutStore interface {
	IsLocked(ctx context.Context, identifier string) (bool, time.Duration, error)
	RecordFailure(ctx context.Context, identifier string) (bool, error)
	Clear(ctx context.Context, identifier string) error
}

// TokenIssuer mints the bearer tokens login hands out.
type TokenIssuer interface {
	IssueAccessToken(userID, sessionID, role string) (string, error)
	IssueChallengeToken(userID string) (string, error)
	AccessTTL() time.Duration
}

// Awarder grants gamification points for onboarding actions.
type Awarder interface {
	Award(ctx context.Context, userID, action, reference string) error
}

// Meta carries request correlation data into audit events.
type Meta struct {
	RequestID string
	IP        string
}

type Service struct {
	users    UserStore
	sessions SessionStore
	lockout  LockoutStore
	tokens   TokenIssuer
	ring     *fieldcrypt.Keyring
	indexer  *fieldcrypt.Indexer
	auditor  *audit.Publisher
	awarder  Awarder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func New(
	users UserStore,
	sessions SessionStore,
	lockout LockoutStore,
	tokens TokenIssuer,
	ring *fieldcrypt.Keyring,
	indexer *fieldcrypt.Indexer,
	auditor *audit.Publisher,
	awarder Awarder,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		lockout:  lockout,
		tokens:   tokens,
		ring:     ring,
		indexer:  indexer,
		auditor:  auditor,
		awarder:  awarder,
		logger:   logger,
		metrics:  m,
	}
}

var cpfPattern = regexp.MustCompile(`^\d{3}\.?\d{3}\.?\d{3}-?\d{2}$`)

// Register creates a user with sealed PHI columns. The registration audit
// event is compliance-grade: if it cannot be persisted the registration
// fails.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest, meta Meta) (*models.User, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	emailSealed, err := s.ring.Seal(req.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not protect email")
	}
	cpfSealed, err := s.ring.Seal(req.CPF)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not protect cpf")
	}
	phoneSealed, err := s.ring.Seal(req.Phone)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not protect phone")
	}
	nameSealed, err := s.ring.Seal(req.FullName)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not protect name")
	}
	passwordHash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	record := &models.UserRecord{
		ID:           uuid.NewString(),
		EmailSealed:  emailSealed,
		EmailHash:    s.indexer.Hash(req.Email),
		CPFSealed:    cpfSealed,
		CPFHash:      s.indexer.Hash(req.CPF),
		PhoneSealed:  phoneSealed,
		NameSealed:   nameSealed,
		PasswordHash: passwordHash,
		Role:         models.RoleBeneficiary,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.users.Create(ctx, record); err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create user")
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionUserRegistered,
		UserID:    record.ID,
		RequestID: meta.RequestID,
		IP:        meta.IP,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not record registration")
	}
	s.metrics.UsersRegistered.Inc()

	if err := s.awarder.Award(ctx, record.ID, "registration_complete", record.ID); err != nil {
		// Points are not worth failing a registration over.
		s.logger.WarnContext(ctx, "registration award failed",
			"request_id", meta.RequestID,
			"error", err,
		)
	}

	return s.open(record)
}

// CheckEmail reports whether an email is free to register.
func (s *Service) CheckEmail(ctx context.Context, email string) (bool, error) {
	if !govalidator.IsEmail(email) {
		return false, dErrors.New(dErrors.CodeInvalidInput, "invalid email")
	}
	exists, err := s.users.EmailExists(ctx, s.indexer.Hash(email))
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "could not check email")
	}
	return !exists, nil
}

// Login verifies credentials under the lockout policy. When MFA is enrolled
// the result carries a challenge token instead of an access token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest, meta Meta) (*models.LoginResult, error) {
	if !govalidator.IsEmail(req.Email) || req.Password == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email and password are required")
	}
	identifier := s.indexer.Hash(req.Email)

	locked, _, err := s.lockout.IsLocked(ctx, identifier)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not check lockout")
	}
	if locked {
		s.metrics.Logins.WithLabelValues("locked").Inc()
		return nil, dErrors.New(dErrors.CodeRateLimited, "too many failed attempts, try again later")
	}

	record, err := s.users.GetByEmailHash(ctx, identifier)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// Same failure path as a bad password so responses don't
			// reveal which emails exist.
			return nil, s.failLogin(ctx, identifier, "", meta)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load user")
	}

	if err := password.Verify(req.Password, record.PasswordHash); err != nil {
		if dErrors.Is(err, dErrors.CodeUnauthorized) {
			return nil, s.failLogin(ctx, identifier, record.ID, meta)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not verify password")
	}

	if err := s.lockout.Clear(ctx, identifier); err != nil {
		s.logger.WarnContext(ctx, "lockout clear failed",
			"request_id", meta.RequestID,
			"error", err,
		)
	}

	if record.MFAEnabled {
		challenge, err := s.tokens.IssueChallengeToken(record.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue challenge")
		}
		s.metrics.Logins.WithLabelValues("mfa_challenge").Inc()
		return &models.LoginResult{MFARequired: true, ChallengeToken: challenge}, nil
	}

	return s.IssueSession(ctx, record.ID, meta)
}

// IssueSession creates a session and access token for an authenticated
// user. Also the completion path after a successful MFA challenge.
func (s *Service) IssueSession(ctx context.Context, userID string, meta Meta) (*models.LoginResult, error) {
	record, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load user")
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    record.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.AccessTTL()),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not create session")
	}

	accessToken, err := s.tokens.IssueAccessToken(record.ID, session.ID, record.Role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not issue token")
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionLoginSucceeded,
		UserID:    record.ID,
		RequestID: meta.RequestID,
		IP:        meta.IP,
	})
	s.metrics.Logins.WithLabelValues("success").Inc()

	return &models.LoginResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the session backing the current token.
func (s *Service) Logout(ctx context.Context, userID, sessionID string, meta Meta) error {
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not revoke session")
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionLogout,
		UserID:    userID,
		RequestID: meta.RequestID,
		IP:        meta.IP,
	})
	return nil
}

// CurrentUser returns the decrypted profile for the authenticated user.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	record, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load user")
	}
	return s.open(record)
}

// failLogin records a failure, emits audit, and returns the generic
// unauthorized error. Lockout crossing emits its own security event.
func (s *Service) failLogin(ctx context.Context, identifier, userID string, meta Meta) error {
	lockedNow, err := s.lockout.RecordFailure(ctx, identifier)
	if err != nil {
		s.logger.ErrorContext(ctx, "lockout record failed",
			"request_id", meta.RequestID,
			"error", err,
		)
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionLoginFailed,
		UserID:    userID,
		RequestID: meta.RequestID,
		IP:        meta.IP,
	})
	s.metrics.Logins.WithLabelValues("failure").Inc()

	if lockedNow {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionLoginLocked,
			UserID:    userID,
			RequestID: meta.RequestID,
			IP:        meta.IP,
		})
	}
	return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
}

// open decrypts a record into the service-level user view.
func (s *Service) open(record *models.UserRecord) (*models.User, error) {
	email, err := s.ring.Open(record.EmailSealed)
	if err != nil {
		return nil, fmt.Errorf("open email: %w", err)
	}
	cpf, err := s.ring.Open(record.CPFSealed)
	if err != nil {
		return nil, fmt.Errorf("open cpf: %w", err)
	}
	phone, err := s.ring.Open(record.PhoneSealed)
	if err != nil {
		return nil, fmt.Errorf("open phone: %w", err)
	}
	name, err := s.ring.Open(record.NameSealed)
	if err != nil {
		return nil, fmt.Errorf("open name: %w", err)
	}
	return &models.User{
		ID:         record.ID,
		Email:      email,
		CPF:        cpf,
		Phone:      phone,
		FullName:   name,
		Role:       record.Role,
		MFAEnabled: record.MFAEnabled,
		CreatedAt:  record.CreatedAt,
	}, nil
}

func validateRegistration(req models.RegisterRequest) error {
	if !govalidator.IsEmail(req.Email) || !govalidator.StringLength(req.Email, "3", "255") {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid email")
	}
	if !govalidator.StringLength(req.Password, "8", "128") {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be between 8 and 128 characters")
	}
	if !govalidator.StringLength(req.FullName, "2", "255") {
		return dErrors.New(dErrors.CodeInvalidInput, "full name is required")
	}
	if !cpfPattern.MatchString(req.CPF) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid cpf")
	}
	if req.Phone != "" && !govalidator.StringLength(req.Phone, "8", "20") {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid phone")
	}
	return nil
}
