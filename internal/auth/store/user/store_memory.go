// Package user persists accounts.
//
// Error Contract:
// All store methods follow this pattern:
//   - Return sentinel.ErrNotFound (wrapped) when the requested entity does not exist
//   - Return sentinel.ErrConflict (wrapped) when a uniqueness constraint is violated
//   - Return wrapped errors with context for infrastructure failures
package user

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"persona/internal/auth/models"
	"persona/internal/sentinel"
)

// InMemoryStore stores accounts in memory for tests and single-process runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*models.Account
	byEmail  map[string]uuid.UUID
}

// NewMemoryStore constructs an empty in-memory account store.
func NewMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[uuid.UUID]*models.Account),
		byEmail: make(map[string]uuid.UUID),
	}
}

// Create inserts a new account. Duplicate emails fail with ErrConflict; the
// check and insert are atomic under the store lock so concurrent
// registrations cannot both succeed.
func (s *InMemoryStore) Create(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[account.Email]; exists {
		return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	}
	cp := *account
	s.byID[account.ID] = &cp
	s.byEmail[account.Email] = account.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if account, ok := s.byID[id]; ok {
		cp := *account
		return &cp, nil
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byEmail[email]; ok {
		cp := *s.byID[id]
		return &cp, nil
	}
	return nil, fmt.Errorf("account not found: %w", sentinel.ErrNotFound)
}
