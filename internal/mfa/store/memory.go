package store

import (
	"context"
	"sync"

	"onboardingportal/internal/mfa"
)

// MemoryStore is the in-memory MFA store for tests.
type MemoryStore struct {
	mu          sync.Mutex
	enrollments map[string]*mfa.Enrollment
	codes       map[string][]*mfa.RecoveryCode
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		enrollments: make(map[string]*mfa.Enrollment),
		codes:       make(map[string][]*mfa.RecoveryCode),
	}
}

func (s *MemoryStore) Upsert(_ context.Context, e *mfa.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *e
	s.enrollments[e.UserID] = &clone
	delete(s.codes, e.UserID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*mfa.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[userID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *MemoryStore) SetConfirmed(_ context.Context, userID string, counter int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[userID]
	if !ok {
		return ErrNotFound
	}
	e.Confirmed = true
	e.LastCounter = counter
	return nil
}

func (s *MemoryStore) SetLastCounter(_ context.Context, userID string, counter int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[userID]
	if !ok {
		return ErrNotFound
	}
	e.LastCounter = counter
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.enrollments, userID)
	delete(s.codes, userID)
	return nil
}

func (s *MemoryStore) ReplaceRecoveryCodes(_ context.Context, userID string, codes []mfa.RecoveryCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := make([]*mfa.RecoveryCode, len(codes))
	for i := range codes {
		clone := codes[i]
		replaced[i] = &clone
	}
	s.codes[userID] = replaced
	return nil
}

func (s *MemoryStore) UnusedRecoveryCodes(_ context.Context, userID string) ([]mfa.RecoveryCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []mfa.RecoveryCode
	for _, c := range s.codes[userID] {
		if !c.Used {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkRecoveryCodeUsed(_ context.Context, codeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, codes := range s.codes {
		for _, c := range codes {
			if c.ID == codeID {
				if c.Used {
					return ErrNotFound
				}
				c.Used = true
				return nil
			}
		}
	}
	return ErrNotFound
}
