package auth

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository used in tests and when the
// relay runs without a database.
type MemoryRepository struct {
	mu     sync.Mutex
	idents map[string]Identity
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{idents: make(map[string]Identity)}
}

// Create inserts a new identity; duplicates surface as ErrUsernameTaken.
func (r *MemoryRepository) Create(_ context.Context, ident Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.idents[ident.Username]; exists {
		return ErrUsernameTaken
	}
	r.idents[ident.Username] = ident
	return nil
}

// FindByUsername returns the identity, or nil if absent.
func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (*Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.idents[username]
	if !ok {
		return nil, nil
	}
	return &ident, nil
}
