// Package memory provides an in-memory audit store for tests and local
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"onboardingportal/internal/audit"
)

type Store struct {
	mu     sync.Mutex
	events []audit.StoredEvent
	// published tracks relay delivery by event ID.
	published map[string]bool
}

func New() *Store {
	return &Store{published: make(map[string]bool)}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.events = append(s.events, audit.StoredEvent{
		ID:        uuid.NewString(),
		Category:  event.Action.Category(),
		Timestamp: event.Timestamp,
		Action:    event.Action,
		UserID:    event.UserID,
		ActorID:   event.ActorID,
		Resource:  event.Resource,
		RequestID: event.RequestID,
		IP:        event.IP,
		Detail:    event.Detail,
	})
	return nil
}

func (s *Store) List(_ context.Context, q audit.Query) ([]audit.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []audit.StoredEvent
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		e := s.events[i]
		if q.UserID != "" && e.UserID != q.UserID {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if !q.From.IsZero() && e.Timestamp.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !e.Timestamp.Before(q.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ClaimUnpublished(_ context.Context, limit int) ([]audit.StoredEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.StoredEvent
	for _, e := range s.events {
		if len(out) >= limit {
			break
		}
		if !s.published[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = true
	}
	return nil
}

// Events returns a copy of everything appended, for test assertions.
func (s *Store) Events() []audit.StoredEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.StoredEvent, len(s.events))
	copy(out, s.events)
	return out
}
