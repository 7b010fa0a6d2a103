package challenge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"chronostamp/internal/auth/models"
	"chronostamp/pkg/platform/sentinel"
)

// InMemoryStore keeps pending challenges until they are taken or expire.
type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]*models.Challenge
	now        func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		challenges: make(map[uuid.UUID]*models.Challenge),
		now:        time.Now,
	}
}

func (s *InMemoryStore) Save(_ context.Context, c *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	cp := *c
	s.challenges[c.ID] = &cp
	return nil
}

// Take removes and returns the challenge. A challenge can be taken once.
func (s *InMemoryStore) Take(_ context.Context, id uuid.UUID) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.challenges, id)
	if c.Expired(s.now()) {
		return nil, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *InMemoryStore) evictExpired() {
	now := s.now()
	for id, c := range s.challenges {
		if c.Expired(now) {
			delete(s.challenges, id)
		}
	}
}
