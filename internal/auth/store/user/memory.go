package user

import (
	"context"
	"sync"

	"onboardingportal/internal/auth/models"
)

// MemoryStore is the in-memory user store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.UserRecord
	byEmail map[string]string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*models.UserRecord),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) Create(_ context.Context, record *models.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[record.EmailHash]; exists {
		return ErrDuplicateEmail
	}
	clone := *record
	s.byID[record.ID] = &clone
	s.byEmail[record.EmailHash] = record.ID
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *MemoryStore) GetByEmailHash(_ context.Context, emailHash string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[emailHash]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s.byID[id]
	return &clone, nil
}

func (s *MemoryStore) EmailExists(_ context.Context, emailHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byEmail[emailHash]
	return ok, nil
}

func (s *MemoryStore) SetMFAEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	record.MFAEnabled = enabled
	return nil
}
