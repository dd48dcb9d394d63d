// Package analytics ingests product analytics events. Events never carry
// raw user identifiers, and string properties pass through PII redaction
// before persistence.
package analytics

import (
	"context"
	"time"
)

// Event is one analytics event after validation and redaction.
type Event struct {
	ID         string
	Name       string
	UserHash   string
	Properties map[string]any
	OccurredAt time.Time
}

// Store persists analytics events and supports retention pruning.
type Store interface {
	Insert(ctx context.Context, event *Event) error
	// DeleteOlderThan removes up to limit events older than cutoff and
	// reports how many went. Bounded batches keep transactions short.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// eventSchema whitelists event names the portal emits. Unknown names are
// rejected so the pipeline can't be used as a free-form data channel.
var eventSchema = map[string]struct{}{
	"page_viewed":             {},
	"registration_started":    {},
	"registration_completed":  {},
	"login_succeeded":         {},
	"login_failed":            {},
	"mfa_enabled":             {},
	"document_uploaded":       {},
	"questionnaire_started":   {},
	"questionnaire_submitted": {},
	"gamification_level_up":   {},
}

// KnownEvent reports whether name is in the event schema.
func KnownEvent(name string) bool {
	_, ok := eventSchema[name]
	return ok
}
