// Package token issues and validates the portal's bearer tokens: HS256
// access tokens backed by a revocable session record, and short-lived MFA
// challenge tokens that carry no access.
package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"onboardingportal/internal/platform/config"
	"onboardingportal/internal/platform/middleware"
	dErrors "onboardingportal/pkg/domain-errors"
)

// SessionChecker reports whether a session is still live. Revoked or
// expired sessions invalidate tokens before their JWT expiry.
type SessionChecker interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// Claims are the access token claims.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id,omitempty"`
	Role      string `json:"role,omitempty"`
	// Kind distinguishes access tokens from mfa_challenge tokens.
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

const (
	kindAccess    = "access"
	kindChallenge = "mfa_challenge"
)

// Service handles token creation and validation.
type Service struct {
	signingKey   []byte
	issuer       string
	accessTTL    time.Duration
	challengeTTL time.Duration
	sessions     SessionChecker
}

func NewService(cfg config.Token, sessions SessionChecker) *Service {
	return &Service{
		signingKey:   []byte(cfg.SigningKey),
		issuer:       cfg.Issuer,
		accessTTL:    cfg.AccessTTL,
		challengeTTL: cfg.ChallengeTTL,
		sessions:     sessions,
	}
}

// AccessTTL exposes the configured access token lifetime.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccessToken mints an access token bound to a session.
func (s *Service) IssueAccessToken(userID, sessionID, role string) (string, error) {
	return s.sign(Claims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		Kind:      kindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
}

// IssueChallengeToken mints the short-lived token a user holds between
// password verification and MFA completion.
func (s *Service) IssueChallengeToken(userID string) (string, error) {
	return s.sign(Claims{
		UserID: userID,
		Kind:   kindChallenge,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.challengeTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
}

func (s *Service) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// ValidateAccessToken parses an access token and checks its session is
// still live. Implements middleware.TokenValidator.
func (s *Service) ValidateAccessToken(ctx context.Context, tokenString string) (*middleware.AuthClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kindAccess {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "not an access token")
	}

	live, err := s.sessions.Exists(ctx, claims.SessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "session check failed")
	}
	if !live {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session revoked")
	}

	return &middleware.AuthClaims{
		UserID:    claims.UserID,
		SessionID: claims.SessionID,
		Role:      claims.Role,
	}, nil
}

// ValidateChallengeToken parses an MFA challenge token and returns the
// pending user ID.
func (s *Service) ValidateChallengeToken(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Kind != kindChallenge {
		return "", dErrors.New(dErrors.CodeUnauthorized, "not a challenge token")
	}
	return claims.UserID, nil
}

func (s *Service) parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}
