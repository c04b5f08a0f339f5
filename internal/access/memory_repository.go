package access

import (
	"context"
	"sync"

	"github.com/congo-pay/emoney-ledger/internal/ledger"
)

type memoryRepository struct {
	mu         sync.RWMutex
	principals map[ledger.Address]Principal
}

// NewMemoryRepository builds an in-memory principal store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{principals: make(map[ledger.Address]Principal)}
}

func (r *memoryRepository) Create(_ context.Context, p Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.principals[p.Address]; exists {
		return ErrPrincipalExists
	}
	r.principals[p.Address] = p
	return nil
}

func (r *memoryRepository) FindByAddress(_ context.Context, addr ledger.Address) (Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.principals[addr]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

func (r *memoryRepository) UpdateRoles(_ context.Context, addr ledger.Address, roles []ledger.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[addr]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.Roles = append([]ledger.Role(nil), roles...)
	r.principals[addr] = p
	return nil
}
