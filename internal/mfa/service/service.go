// Package service drives the MFA lifecycle: enrollment, activation, login
// challenges, recovery codes, and disabling.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"onboardingportal/internal/audit"
	authmodels "onboardingportal/internal/auth/models"
	"onboardingportal/internal/auth/password"
	authservice "onboardingportal/internal/auth/service"
	"onboardingportal/internal/fieldcrypt"
	"onboardingportal/internal/mfa"
	"onboardingportal/internal/mfa/store"
	dErrors "onboardingportal/pkg/domain-errors"
)

const (
	issuer            = "OnboardingPortal"
	recoveryCodeCount = 10
)

// EnrollmentStore persists enrollments and recovery codes.
type EnrollmentStore interface {
	Upsert(ctx context.Context, e *mfa.Enrollment) error
	Get(ctx context.Context, userID string) (*mfa.Enrollment, error)
	SetConfirmed(ctx context.Context, userID string, counter int64) error
	SetLastCounter(ctx context.Context, userID string, counter int64) error
	Delete(ctx context.Context, userID string) error
	ReplaceRecoveryCodes(ctx context.Context, userID string, codes []mfa.RecoveryCode) error
	UnusedRecoveryCodes(ctx context.Context, userID string) ([]mfa.RecoveryCode, error)
	MarkRecoveryCodeUsed(ctx context.Context, codeID string) error
}

// Users is the slice of the user store this service needs.
type Users interface {
	GetByID(ctx context.Context, id string) (*authmodels.UserRecord, error)
	SetMFAEnabled(ctx context.Context, id string, enabled bool) error
}

// ChallengeValidator resolves a challenge token to its pending user.
type ChallengeValidator interface {
	ValidateChallengeToken(tokenString string) (string, error)
}

// SessionIssuer completes a login once the challenge passes.
type SessionIssuer interface {
	IssueSession(ctx context.Context, userID string, meta authservice.Meta) (*authmodels.LoginResult, error)
}

type Service struct {
	enrollments EnrollmentStore
	users       Users
	challenges  ChallengeValidator
	sessions    SessionIssuer
	ring        *fieldcrypt.Keyring
	auditor     *audit.Publisher
	awarder     authservice.Awarder
	logger      *slog.Logger
	now         func() time.Time
}

func New(
	enrollments EnrollmentStore,
	users Users,
	challenges ChallengeValidator,
	sessions SessionIssuer,
	ring *fieldcrypt.Keyring,
	auditor *audit.Publisher,
	awarder authservice.Awarder,
	logger *slog.Logger,
) *Service {
	return &Service{
		enrollments: enrollments,
		users:       users,
		challenges:  challenges,
		sessions:    sessions,
		ring:        ring,
		auditor:     auditor,
		awarder:     awarder,
		logger:      logger,
		now:         time.Now,
	}
}

// StartEnrollment generates a secret and stores it pending confirmation.
// Re-enrolling before confirmation simply issues a new secret.
func (s *Service) StartEnrollment(ctx context.Context, userID string) (*mfa.EnrollResult, error) {
	record, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load user")
	}
	if record.MFAEnabled {
		return nil, dErrors.New(dErrors.CodeConflict, "mfa is already enabled")
	}

	_, encoded, err := mfa.GenerateSecret()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	sealed, err := s.ring.Seal(encoded)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not protect secret")
	}

	if err := s.enrollments.Upsert(ctx, &mfa.Enrollment{
		UserID:       userID,
		SecretSealed: sealed,
		Confirmed:    false,
		LastCounter:  0,
		CreatedAt:    s.now().UTC(),
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not save enrollment")
	}

	email, err := s.ring.Open(record.EmailSealed)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not open email")
	}

	return &mfa.EnrollResult{
		Secret:       encoded,
		ProvisionURI: mfa.ProvisionURI(issuer, email, encoded),
	}, nil
}

// Activate confirms a pending enrollment with its first valid code and
// returns the single-use recovery codes. They are shown exactly once.
func (s *Service) Activate(ctx context.Context, userID, code string, meta authservice.Meta) (*mfa.ActivateResult, error) {
	enrollment, err := s.enrollments.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no enrollment in progress")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load enrollment")
	}
	if enrollment.Confirmed {
		return nil, dErrors.New(dErrors.CodeConflict, "mfa is already enabled")
	}

	counter, err := s.checkCode(enrollment, code)
	if err != nil {
		return nil, err
	}

	if err := s.enrollments.SetConfirmed(ctx, userID, counter); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not confirm enrollment")
	}
	if err := s.users.SetMFAEnabled(ctx, userID, true); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not enable mfa")
	}

	plain, hashed, err := generateRecoveryCodes(userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate recovery codes")
	}
	if err := s.enrollments.ReplaceRecoveryCodes(ctx, userID, hashed); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not save recovery codes")
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionMFAEnrolled,
		UserID:    userID,
		RequestID: meta.RequestID,
		IP:        meta.IP,
	})
	if err := s.awarder.Award(ctx, userID, "mfa_enabled", userID); err != nil {
		s.logger.WarnContext(ctx, "mfa award failed", "request_id", meta.RequestID, "error", err)
	}

	return &mfa.ActivateResult{RecoveryCodes: plain}, nil
}

// VerifyChallenge exchanges a challenge token plus a TOTP or recovery code
// for an access token.
func (s *Service) VerifyChallenge(ctx context.Context, challengeToken, code string, meta authservice.Meta) (*authmodels.LoginResult, error) {
	userID, err := s.challenges.ValidateChallengeToken(challengeToken)
	if err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "mfa is not enabled")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load enrollment")
	}
	if !enrollment.Confirmed {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "mfa is not enabled")
	}

	counter, codeErr := s.checkCode(enrollment, code)
	switch {
	case codeErr == nil:
		// Replay guard: a code from a counter we already accepted is dead.
		if counter <= enrollment.LastCounter {
			return nil, s.failChallenge(ctx, userID, meta)
		}
		if err := s.enrollments.SetLastCounter(ctx, userID, counter); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not advance counter")
		}
	case dErrors.Is(codeErr, dErrors.CodeUnauthorized):
		if !s.tryRecoveryCode(ctx, userID, code, meta) {
			return nil, s.failChallenge(ctx, userID, meta)
		}
	default:
		return nil, codeErr
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionMFAChallengeOK,
		UserID:    userID,
		RequestID: meta.RequestID,
		IP:        meta.IP,
	})
	return s.sessions.IssueSession(ctx, userID, meta)
}

// Disable turns MFA off. A valid current code is required so a stolen
// session alone cannot weaken the account.
func (s *Service) Disable(ctx context.Context, userID, code string, meta authservice.Meta) error {
	enrollment, err := s.enrollments.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "mfa is not enabled")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not load enrollment")
	}
	if !enrollment.Confirmed {
		return dErrors.New(dErrors.CodeNotFound, "mfa is not enabled")
	}

	if _, err := s.checkCode(enrollment, code); err != nil {
		return err
	}

	if err := s.enrollments.Delete(ctx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not delete enrollment")
	}
	if err := s.users.SetMFAEnabled(ctx, userID, false); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not disable mfa")
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionMFADisabled,
		UserID:    userID,
		RequestID: meta.RequestID,
		IP:        meta.IP,
	})
	return nil
}

// checkCode verifies a TOTP code against the sealed secret, returning the
// matched counter.
func (s *Service) checkCode(enrollment *mfa.Enrollment, code string) (int64, error) {
	encoded, err := s.ring.Open(enrollment.SecretSealed)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "could not open secret")
	}
	secret, err := mfa.DecodeSecret(encoded)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "corrupt secret")
	}
	ok, counter, err := mfa.VerifyCode(secret, code, s.now())
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "could not verify code")
	}
	if !ok {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "invalid code")
	}
	return counter, nil
}

// tryRecoveryCode burns a matching unused recovery code, if any.
func (s *Service) tryRecoveryCode(ctx context.Context, userID, code string, meta authservice.Meta) bool {
	codes, err := s.enrollments.UnusedRecoveryCodes(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "recovery code lookup failed",
			"request_id", meta.RequestID, "error", err)
		return false
	}
	for _, candidate := range codes {
		if password.Verify(code, candidate.CodeHash) != nil {
			continue
		}
		if err := s.enrollments.MarkRecoveryCodeUsed(ctx, candidate.ID); err != nil {
			// Lost the race with a concurrent use of the same code.
			return false
		}
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:    audit.ActionRecoveryCodeUse,
			UserID:    userID,
			RequestID: meta.RequestID,
			IP:        meta.IP,
		})
		return true
	}
	return false
}

func (s *Service) failChallenge(ctx context.Context, userID string, meta authservice.Meta) error {
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:    audit.ActionMFAChallengeBad,
		UserID:    userID,
		RequestID: meta.RequestID,
		IP:        meta.IP,
	})
	return dErrors.New(dErrors.CodeUnauthorized, "invalid code")
}

var recoveryEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// generateRecoveryCodes returns plaintext codes (for one-time display) and
// their hashed records.
func generateRecoveryCodes(userID string) ([]string, []mfa.RecoveryCode, error) {
	plain := make([]string, 0, recoveryCodeCount)
	hashed := make([]mfa.RecoveryCode, 0, recoveryCodeCount)
	for i := 0; i < recoveryCodeCount; i++ {
		raw := make([]byte, 5)
		if _, err := rand.Read(raw); err != nil {
			return nil, nil, err
		}
		code := recoveryEncoding.EncodeToString(raw)
		code = code[:4] + "-" + code[4:]

		hash, err := password.Hash(code)
		if err != nil {
			return nil, nil, err
		}
		plain = append(plain, code)
		hashed = append(hashed, mfa.RecoveryCode{
			ID:       uuid.NewString(),
			UserID:   userID,
			CodeHash: hash,
		})
	}
	return plain, hashed, nil
}
