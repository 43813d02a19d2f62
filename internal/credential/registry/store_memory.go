package registry

import (
	"context"
	"strings"
	"sync"

	"persona/internal/sentinel"
)

// InMemoryStore is the non-durable Store used for tests and single-node
// runs without Postgres.
type InMemoryStore struct {
	mu          sync.RWMutex
	byDID       map[string]*DIDRecord
	legacyNames map[string]string
}

func NewMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byDID:       make(map[string]*DIDRecord),
		legacyNames: make(map[string]string),
	}
}

func legacyKey(data UserData) string {
	return strings.ToLower(data.FirstName) + "\x00" + strings.ToLower(data.LastName)
}

func (s *InMemoryStore) Create(_ context.Context, record *DIDRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byDID[record.DID]; exists {
		return sentinel.ErrConflict
	}
	if record.Legacy {
		if _, exists := s.legacyNames[legacyKey(record.UserData)]; exists {
			return sentinel.ErrConflict
		}
	}

	clone := *record
	s.byDID[record.DID] = &clone
	if record.Legacy {
		s.legacyNames[legacyKey(record.UserData)] = record.DID
	}
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, did string) (*DIDRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byDID[did]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *record
	return &clone, nil
}
