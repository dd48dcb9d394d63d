package store

import (
	"context"
	"sort"
	"sync"

	"onboardingportal/internal/gamification/models"
)

type MemoryStore struct {
	mu     sync.RWMutex
	awards map[string]*models.Award
}

func NewMemory() *MemoryStore {
	return &MemoryStore{awards: make(map[string]*models.Award)}
}

func awardKey(userID, action, reference string) string {
	return userID + "|" + action + "|" + reference
}

func (s *MemoryStore) InsertAward(_ context.Context, award *models.Award) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := awardKey(award.UserID, award.Action, award.Reference)
	if _, exists := s.awards[key]; exists {
		return false, nil
	}
	copied := *award
	s.awards[key] = &copied
	return true, nil
}

func (s *MemoryStore) SumPoints(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var points int
	for _, award := range s.awards {
		if award.UserID == userID {
			points += award.Points
		}
	}
	return points, nil
}

func (s *MemoryStore) ListActions(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, award := range s.awards {
		if award.UserID == userID {
			seen[award.Action] = struct{}{}
		}
	}
	actions := make([]string, 0, len(seen))
	for action := range seen {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions, nil
}
