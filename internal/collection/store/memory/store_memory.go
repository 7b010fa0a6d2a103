package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"chronostamp/internal/collection/models"
	"chronostamp/internal/ownership"
	"chronostamp/pkg/domain"
	"chronostamp/pkg/platform/sentinel"
)

// ledger holds the mutable state of one collection behind its own lock so
// claims on different collections never contend.
type ledger struct {
	mu         sync.Mutex
	collection models.Collection
	nonces     map[domain.Nonce]uint64
	holders    map[uint64]common.Address
	balances   map[common.Address]uint64
}

// InMemoryStore keeps collections for the lifetime of the process.
type InMemoryStore struct {
	mu        sync.RWMutex
	ledgers   map[common.Address]*ledger
	deployers map[common.Address]uint64
}

func New() *InMemoryStore {
	return &InMemoryStore{
		ledgers:   make(map[common.Address]*ledger),
		deployers: make(map[common.Address]uint64),
	}
}

func (s *InMemoryStore) Create(_ context.Context, c *models.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[c.Address]; ok {
		return sentinel.ErrConflict
	}
	s.ledgers[c.Address] = &ledger{
		collection: *c,
		nonces:     make(map[domain.Nonce]uint64),
		holders:    make(map[uint64]common.Address),
		balances:   make(map[common.Address]uint64),
	}
	s.deployers[c.Deployer]++
	return nil
}

func (s *InMemoryStore) get(addr common.Address) (*ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return l, nil
}

func (s *InMemoryStore) FindByAddress(_ context.Context, addr common.Address) (*models.Collection, error) {
	l, err := s.get(addr)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.collection
	return &c, nil
}

func (s *InMemoryStore) CountByDeployer(_ context.Context, deployer common.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deployers[deployer], nil
}

// UpdateOwner swaps the owner only if it is still previous.
func (s *InMemoryStore) UpdateOwner(_ context.Context, addr, previous, next common.Address) error {
	l, err := s.get(addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.collection.Owner() != previous {
		return sentinel.ErrConflict
	}
	l.collection.Ownable = ownership.Restore(next)
	return nil
}

// RecordClaim consumes nonce and mints the next token to holder in one step.
func (s *InMemoryStore) RecordClaim(_ context.Context, addr common.Address, nonce domain.Nonce, holder common.Address, _ time.Time) (uint64, error) {
	l, err := s.get(addr)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, used := l.nonces[nonce]; used {
		return 0, sentinel.ErrAlreadyUsed
	}
	tokenID := l.collection.NextTokenID
	l.nonces[nonce] = tokenID
	l.holders[tokenID] = holder
	l.balances[holder]++
	l.collection.NextTokenID++
	return tokenID, nil
}

func (s *InMemoryStore) IsNonceUsed(_ context.Context, addr common.Address, nonce domain.Nonce) (bool, error) {
	l, err := s.get(addr)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, used := l.nonces[nonce]
	return used, nil
}

func (s *InMemoryStore) OwnerOf(_ context.Context, addr common.Address, tokenID uint64) (common.Address, error) {
	l, err := s.get(addr)
	if err != nil {
		return common.Address{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, ok := l.holders[tokenID]
	if !ok {
		return common.Address{}, sentinel.ErrNotFound
	}
	return holder, nil
}

func (s *InMemoryStore) BalanceOf(_ context.Context, addr, holder common.Address) (uint64, error) {
	l, err := s.get(addr)
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[holder], nil
}
