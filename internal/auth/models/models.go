// Package models holds the auth domain types shared by service, stores and
// handlers.
package models

import "time"

// Roles assigned to users. Reviewers handle document review and
// questionnaire follow-up; admins additionally query the audit trail.
const (
	RoleBeneficiary = "beneficiary"
	RoleReviewer    = "reviewer"
	RoleAdmin       = "admin"
)

// User is the decrypted view services work with. Sealed fields never leave
// the store layer in this form.
type User struct {
	ID         string
	Email      string
	CPF        string
	Phone      string
	FullName   string
	Role       string
	MFAEnabled bool
	CreatedAt  time.Time
}

// UserRecord is the at-rest shape: PHI columns sealed, lookups by blind
// index hash.
type UserRecord struct {
	ID           string
	EmailSealed  string
	EmailHash    string
	CPFSealed    string
	CPFHash      string
	PhoneSealed  string
	NameSealed   string
	PasswordHash string
	Role         string
	MFAEnabled   bool
	CreatedAt    time.Time
}

// RegisterRequest is the registration input.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	CPF      string `json:"cpf"`
	Phone    string `json:"phone"`
}

// LoginRequest is the credential login input.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned from a successful credential check. When MFA is
// enrolled the access token is withheld until the challenge completes.
type LoginResult struct {
	MFARequired    bool   `json:"mfa_required"`
	AccessToken    string `json:"access_token,omitempty"`
	ChallengeToken string `json:"challenge_token,omitempty"`
	ExpiresIn      int64  `json:"expires_in,omitempty"`
}

// Session is the server-side record backing an access token. Deleting it
// revokes the token before its JWT expiry.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
