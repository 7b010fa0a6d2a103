package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"chronostamp/internal/ownership"
	"chronostamp/internal/registry/models"
	"chronostamp/pkg/platform/sentinel"
)

type entry struct {
	registry models.Registry
	deployed []common.Address
}

type InMemoryStore struct {
	mu         sync.RWMutex
	registries map[common.Address]*entry
}

func New() *InMemoryStore {
	return &InMemoryStore{registries: make(map[common.Address]*entry)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registries[r.Address]; ok {
		return sentinel.ErrConflict
	}
	s.registries[r.Address] = &entry{registry: *r}
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, addr common.Address) (*models.Registry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.registries[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	r := e.registry
	return &r, nil
}

func (s *InMemoryStore) UpdateOwner(_ context.Context, addr, previous, next common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.registries[addr]
	if !ok {
		return sentinel.ErrNotFound
	}
	if e.registry.Owner() != previous {
		return sentinel.ErrConflict
	}
	e.registry.Ownable = ownership.Restore(next)
	return nil
}

// Append adds collection at the end of the deployed list and returns its index.
func (s *InMemoryStore) Append(_ context.Context, registry, collection common.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.registries[registry]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	e.deployed = append(e.deployed, collection)
	return uint64(len(e.deployed) - 1), nil
}

func (s *InMemoryStore) Count(_ context.Context, registry common.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.registries[registry]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return uint64(len(e.deployed)), nil
}

// Range returns deployed[start:end]. Bounds are clamped by the caller.
func (s *InMemoryStore) Range(_ context.Context, registry common.Address, start, end uint64) ([]common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.registries[registry]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	n := uint64(len(e.deployed))
	end = min(end, n)
	if start >= end {
		return []common.Address{}, nil
	}
	return append([]common.Address{}, e.deployed[start:end]...), nil
}
