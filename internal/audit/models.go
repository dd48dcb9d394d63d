// Package audit records who did what to whom across the onboarding flow.
// The trail is append-only: events are written to a transactional outbox
// and relayed to Kafka, never updated or deleted.
package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and
	// forensics (auth failures, lockouts, MFA changes).
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and
	// operational visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    Action
	// UserID is the subject the action concerns.
	UserID string
	// ActorID tracks who performed the action when different from UserID,
	// e.g. a reviewer approving a user's document.
	ActorID string
	// Resource identifies the affected record (document ID, response ID).
	Resource string
	// RequestID correlates the event with the HTTP request that caused it.
	RequestID string
	// IP is the remote address the request arrived from.
	IP string
	// Detail carries a short human-readable qualifier. Never PHI.
	Detail string
}

// Action names an auditable operation.
type Action string

const (
	// Auth events
	ActionUserRegistered Action = "user_registered"
	ActionLoginSucceeded Action = "login_succeeded"
	ActionLoginFailed    Action = "login_failed"
	ActionLoginLocked    Action = "login_locked"
	ActionLogout         Action = "logout"

	// MFA events
	ActionMFAEnrolled     Action = "mfa_enrolled"
	ActionMFADisabled     Action = "mfa_disabled"
	ActionMFAChallengeOK  Action = "mfa_challenge_succeeded"
	ActionMFAChallengeBad Action = "mfa_challenge_failed"
	ActionRecoveryCodeUse Action = "mfa_recovery_code_used"

	// Questionnaire events
	ActionResponseSubmitted Action = "questionnaire_submitted"
	ActionResponseReviewed  Action = "questionnaire_reviewed"

	// Document events
	ActionDocumentUploaded Action = "document_uploaded"
	ActionDocumentApproved Action = "document_approved"
	ActionDocumentRejected Action = "document_rejected"

	// Data subject events
	ActionDataExported Action = "data_exported"
)

// actionCategories maps each action to its category. Compliance events use
// the fail-closed publisher path; the rest flow through the async worker.
var actionCategories = map[Action]EventCategory{
	ActionUserRegistered:    CategoryCompliance,
	ActionResponseSubmitted: CategoryCompliance,
	ActionResponseReviewed:  CategoryCompliance,
	ActionDocumentApproved:  CategoryCompliance,
	ActionDocumentRejected:  CategoryCompliance,
	ActionDataExported:      CategoryCompliance,

	ActionLoginFailed:     CategorySecurity,
	ActionLoginLocked:     CategorySecurity,
	ActionMFAEnrolled:     CategorySecurity,
	ActionMFADisabled:     CategorySecurity,
	ActionMFAChallengeOK:  CategorySecurity,
	ActionMFAChallengeBad: CategorySecurity,
	ActionRecoveryCodeUse: CategorySecurity,

	ActionLoginSucceeded:   CategoryOperations,
	ActionLogout:           CategoryOperations,
	ActionDocumentUploaded: CategoryOperations,
}

// Category resolves the category for an action, defaulting to operations.
func (a Action) Category() EventCategory {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// StoredEvent is an event as read back from the trail, with the identity
// and category assigned at append time.
type StoredEvent struct {
	ID        string
	Category  EventCategory
	Timestamp time.Time
	Action    Action
	UserID    string
	ActorID   string
	Resource  string
	RequestID string
	IP        string
	Detail    string
}

// Query filters the trail for the admin endpoint.
type Query struct {
	UserID string
	Action Action
	From   time.Time
	To     time.Time
	Limit  int
}
