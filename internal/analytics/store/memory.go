package store

import (
	"context"
	"sync"
	"time"

	"onboardingportal/internal/analytics"
)

type MemoryStore struct {
	mu     sync.RWMutex
	events []*analytics.Event
}

func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, event *analytics.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	if event.Properties != nil {
		copied.Properties = make(map[string]any, len(event.Properties))
		for k, v := range event.Properties {
			copied.Properties[k] = v
		}
	}
	s.events = append(s.events, &copied)
	return nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.events[:0]
	for _, event := range s.events {
		if deleted < int64(limit) && event.OccurredAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, event)
	}
	s.events = kept
	return deleted, nil
}

// Events returns a snapshot for test assertions.
func (s *MemoryStore) Events() []*analytics.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*analytics.Event, len(s.events))
	copy(out, s.events)
	return out
}
