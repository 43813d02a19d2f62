// Package idempotency remembers completed registrations by client-supplied
// key so retried requests do not create duplicate accounts.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	accountID uuid.UUID
	expiresAt time.Time
}

// InMemory is an in-memory idempotency store with lazy expiry.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

// NewInMemory creates an idempotency store with the given retention TTL.
func NewInMemory(ttl time.Duration) *InMemory {
	return &InMemory{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get returns the account created under the given key, if any.
func (s *InMemory) Get(_ context.Context, key string) (uuid.UUID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return uuid.Nil, false, nil
	}
	return e.accountID, true, nil
}

// Set records the account created under the given key.
func (s *InMemory) Set(_ context.Context, key string, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic cleanup keeps the map bounded without a background goroutine.
	now := time.Now()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}

	s.entries[key] = entry{accountID: accountID, expiresAt: now.Add(s.ttl)}
	return nil
}
