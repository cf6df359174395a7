package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore records submitted session ids for tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	submitted map[uuid.UUID]struct{}

	// FailNext makes the next MarkSubmitted call return this error, then
	// clears it. Tests use it to exercise local-write failure paths.
	FailNext error
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{submitted: make(map[uuid.UUID]struct{})}
}

func (s *InMemoryStore) MarkSubmitted(_ context.Context, sessionIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNext != nil {
		err := s.FailNext
		s.FailNext = nil
		return err
	}
	for _, id := range sessionIDs {
		s.submitted[id] = struct{}{}
	}
	return nil
}

// IsSubmitted reports whether a session was marked submitted.
func (s *InMemoryStore) IsSubmitted(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.submitted[id]
	return ok
}

// SubmittedCount reports how many sessions were marked submitted.
func (s *InMemoryStore) SubmittedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.submitted)
}
