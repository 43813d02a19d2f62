package totp

import (
	"context"
	"fmt"
	"sync"

	"persona/internal/sentinel"
)

// InMemorySecretStore stores sealed secrets in memory for tests and
// single-process deployments.
type InMemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string][]byte
}

// NewMemoryStore constructs an empty in-memory secret store.
func NewMemoryStore() *InMemorySecretStore {
	return &InMemorySecretStore{secrets: make(map[string][]byte)}
}

func (s *InMemorySecretStore) Save(_ context.Context, email string, sealed []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(sealed))
	copy(cp, sealed)
	s.secrets[email] = cp
	return nil
}

func (s *InMemorySecretStore) Find(_ context.Context, email string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sealed, ok := s.secrets[email]; ok {
		cp := make([]byte, len(sealed))
		copy(cp, sealed)
		return cp, nil
	}
	return nil, fmt.Errorf("totp secret not found: %w", sentinel.ErrNotFound)
}

func (s *InMemorySecretStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, email)
	return nil
}
