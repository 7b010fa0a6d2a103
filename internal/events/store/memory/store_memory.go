package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"chronostamp/internal/events"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[common.Address][]events.Event
	all    []events.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[common.Address][]events.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.Source] = append(s.events[e.Source], e)
	s.all = append(s.all, e)
	return nil
}

func (s *InMemoryStore) ListBySource(_ context.Context, source common.Address, kinds []events.Kind, limit int) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.Event
	for _, e := range s.events[source] {
		if len(kinds) > 0 && !slices.Contains(kinds, e.Kind) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListAll returns every event in emission order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.all...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[common.Address][]events.Event)
	s.all = nil
}
