package mfa

import "time"

// Enrollment is the at-rest TOTP state for one user. The secret is sealed
// by fieldcrypt before it reaches the store.
type Enrollment struct {
	UserID       string
	SecretSealed string
	// Confirmed flips on the first successful verification; until then the
	// enrollment is pending and login does not demand a code.
	Confirmed bool
	// LastCounter is the replay guard: codes at or below it are rejected.
	LastCounter int64
	CreatedAt   time.Time
}

// RecoveryCode is one single-use fallback credential, stored hashed.
type RecoveryCode struct {
	ID       string
	UserID   string
	CodeHash string
	Used     bool
}

// EnrollResult is returned when enrollment starts.
type EnrollResult struct {
	Secret       string `json:"secret"`
	ProvisionURI string `json:"provision_uri"`
}

// ActivateResult is returned when the first verification confirms the
// enrollment. Recovery codes are shown exactly once.
type ActivateResult struct {
	RecoveryCodes []string `json:"recovery_codes"`
}
