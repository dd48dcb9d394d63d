package lockout

import (
	"context"
	"sync"
	"time"

	"onboardingportal/internal/platform/config"
)

// MemoryStore is the in-memory lockout store for tests.
type MemoryStore struct {
	mu    sync.Mutex
	cfg   config.Lockout
	fails map[string]entry
	locks map[string]time.Time
}

type entry struct {
	count      int
	windowEnds time.Time
}

func NewMemory(cfg config.Lockout) *MemoryStore {
	return &MemoryStore{
		cfg:   cfg,
		fails: make(map[string]entry),
		locks: make(map[string]time.Time),
	}
}

func (s *MemoryStore) IsLocked(_ context.Context, identifier string) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.locks[identifier]
	if !ok || time.Now().After(until) {
		return false, 0, nil
	}
	return true, time.Until(until), nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	e := s.fails[identifier]
	if e.count == 0 || now.After(e.windowEnds) {
		e = entry{count: 0, windowEnds: now.Add(s.cfg.Window)}
	}
	e.count++
	s.fails[identifier] = e
	if e.count < s.cfg.MaxFailures {
		return false, nil
	}
	s.locks[identifier] = now.Add(s.cfg.LockFor)
	return true, nil
}

func (s *MemoryStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fails, identifier)
	delete(s.locks, identifier)
	return nil
}
