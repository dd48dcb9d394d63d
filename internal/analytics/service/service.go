// Package service validates, redacts and records analytics events.
// Stores are pure I/O; every acceptance rule lives here.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"onboardingportal/internal/analytics"
	dErrors "onboardingportal/pkg/domain-errors"
)

// maxPropertyBytes bounds the encoded size of an event's properties.
const maxPropertyBytes = 32 * 1024

type Hasher interface {
	Hash(value string) string
}

type Metrics interface {
	analytics.RedactionCounter
	EventAccepted(name string)
	EventDropped(reason string)
}

type Service struct {
	store   analytics.Store
	hasher  Hasher
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func New(store analytics.Store, hasher Hasher, metrics Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		hasher:  hasher,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Track records a single event. The user ID is stored only as a keyed
// hash, and every string property passes through PII redaction before
// the event is persisted.
func (s *Service) Track(ctx context.Context, name, userID string, properties map[string]any) error {
	if !analytics.KnownEvent(name) {
		s.metrics.EventDropped("unknown_event")
		return dErrors.New(dErrors.CodeInvalidInput, "unknown event name")
	}
	if properties == nil {
		properties = map[string]any{}
	}
	encoded, err := json.Marshal(properties)
	if err != nil {
		s.metrics.EventDropped("unencodable")
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "properties are not encodable")
	}
	if len(encoded) > maxPropertyBytes {
		s.metrics.EventDropped("oversized")
		return dErrors.New(dErrors.CodeInvalidInput, "event properties exceed size limit")
	}

	analytics.Redact(properties, s.metrics)

	var userHash string
	if userID != "" {
		userHash = s.hasher.Hash(userID)
	}

	event := &analytics.Event{
		ID:         uuid.NewString(),
		Name:       name,
		UserHash:   userHash,
		Properties: properties,
		OccurredAt: s.now().UTC(),
	}
	if err := s.store.Insert(ctx, event); err != nil {
		s.metrics.EventDropped("store_error")
		return dErrors.Wrap(err, dErrors.CodeInternal, "record event")
	}
	s.metrics.EventAccepted(name)
	return nil
}
