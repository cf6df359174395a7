package cache

import (
	"context"
	"sync"

	"fieldsync/internal/sync/models"
)

// InMemoryStore is a map-backed cache for tests and single-process runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[memoryKey]string
}

type memoryKey struct {
	scopeID string
	kind    models.CacheKind
	key     string
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[memoryKey]string)}
}

func (s *InMemoryStore) Get(_ context.Context, scopeID string, kind models.CacheKind, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[memoryKey{scopeID, kind, key}]
	return value, ok
}

func (s *InMemoryStore) Set(_ context.Context, scopeID string, kind models.CacheKind, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[memoryKey{scopeID, kind, key}] = value
}

// Len reports the number of cached entries. Used by tests.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
