package store

import (
	"context"
	"sync"

	"onboardingportal/internal/health/models"
)

type MemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*models.Template
	responses map[string]*models.Response
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]*models.Template),
		responses: make(map[string]*models.Response),
	}
}

func (s *MemoryStore) CreateTemplate(_ context.Context, template *models.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *template
	s.templates[template.ID] = &copied
	return nil
}

func (s *MemoryStore) ListActiveTemplates(_ context.Context) ([]*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Template
	for _, template := range s.templates {
		if template.Active {
			copied := *template
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetTemplate(_ context.Context, id string) (*models.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	template, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *template
	return &copied, nil
}

func (s *MemoryStore) CreateResponse(_ context.Context, response *models.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[response.ID] = copyResponse(response)
	return nil
}

func (s *MemoryStore) GetResponse(_ context.Context, id string) (*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	response, ok := s.responses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyResponse(response), nil
}

func (s *MemoryStore) FindDraft(_ context.Context, userID, templateID string) (*models.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, response := range s.responses {
		if response.UserID == userID && response.TemplateID == templateID &&
			response.Status == models.StatusDraft {
			return copyResponse(response), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateResponse(_ context.Context, response *models.Response, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.responses[response.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrStaleVersion
	}
	s.responses[response.ID] = copyResponse(response)
	return nil
}

func copyResponse(response *models.Response) *models.Response {
	copied := *response
	if response.Answers != nil {
		copied.Answers = make(map[string]any, len(response.Answers))
		for k, v := range response.Answers {
			copied.Answers[k] = v
		}
	}
	if response.Score != nil {
		score := *response.Score
		copied.Score = &score
	}
	if response.SubmittedAt != nil {
		at := *response.SubmittedAt
		copied.SubmittedAt = &at
	}
	return &copied
}
