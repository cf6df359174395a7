package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fieldsync/internal/sync/models"
	"fieldsync/pkg/sentinel"
)

// InMemoryStore mirrors the Postgres ledger semantics for tests, including
// the uniqueness guarantees on (scope, site, year, month) and event id.
type InMemoryStore struct {
	mu       sync.RWMutex
	entries  map[memoryKey]*models.LedgerEntry
	eventIDs map[string]struct{}
}

type memoryKey struct {
	scopeID string
	siteID  uuid.UUID
	year    int
	month   int
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		entries:  make(map[memoryKey]*models.LedgerEntry),
		eventIDs: make(map[string]struct{}),
	}
}

func (s *InMemoryStore) Find(_ context.Context, scopeID string, siteID uuid.UUID, year, month int) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[memoryKey{scopeID, siteID, year, month}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (s *InMemoryStore) Create(_ context.Context, entry *models.LedgerEntry) error {
	if entry == nil {
		return fmt.Errorf("ledger entry is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{entry.ScopeID, entry.SiteID, entry.Year, entry.Month}
	if _, exists := s.entries[key]; exists {
		return fmt.Errorf("ledger entry for household-month exists: %w", sentinel.ErrConflict)
	}
	if _, exists := s.eventIDs[entry.EventID]; exists {
		return fmt.Errorf("ledger event id exists: %w", sentinel.ErrConflict)
	}

	copied := *entry
	s.entries[key] = &copied
	s.eventIDs[entry.EventID] = struct{}{}
	return nil
}

func (s *InMemoryStore) Touch(_ context.Context, scopeID string, siteID uuid.UUID, year, month int, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[memoryKey{scopeID, siteID, year, month}]
	if !ok {
		return sentinel.ErrNotFound
	}
	entry.LastSyncedAt = syncedAt
	return nil
}

// Delete removes an entry. Not part of the Store port: the sync engine never
// deletes ledger rows. Tests use it to simulate ledger loss.
func (s *InMemoryStore) Delete(scopeID string, siteID uuid.UUID, year, month int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey{scopeID, siteID, year, month}
	if entry, ok := s.entries[key]; ok {
		delete(s.eventIDs, entry.EventID)
		delete(s.entries, key)
	}
}

// Len reports the number of ledger rows. Used by tests.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
