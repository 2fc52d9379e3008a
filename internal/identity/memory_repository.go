package identity

import (
	"context"
	"sync"

	"github.com/idmint/idmint/internal/apperr"
)

type memoryKey struct {
	category Category
	phone    string
}

type memoryRepository struct {
	mu         sync.RWMutex
	identities map[memoryKey]Identity
}

// NewMemoryRepository builds an in-memory identity store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{identities: make(map[memoryKey]Identity)}
}

func (r *memoryRepository) Create(_ context.Context, identity Identity) error {
	if _, err := tableFor(identity.Category); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := memoryKey{identity.Category, identity.Phone}
	if _, exists := r.identities[key]; exists {
		return apperr.New(apperr.ErrConflict, "User already exists")
	}
	r.identities[key] = identity
	return nil
}

func (r *memoryRepository) FindByPhone(_ context.Context, category Category, phone string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.identities[memoryKey{category, phone}]
	if !ok {
		return Identity{}, apperr.New(apperr.ErrNotFound, "User not found")
	}
	return identity, nil
}
