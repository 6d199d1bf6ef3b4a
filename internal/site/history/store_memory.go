package history

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore is a Store for tests and ephemeral deployments.
type InMemoryStore struct {
	mu      sync.Mutex
	records []Record
	limit   int
}

// NewInMemoryStore creates an empty store capped at MaxRecords.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{limit: MaxRecords}
}

// Append prepends record and truncates to the cap.
func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = prepend(s.records, record, s.limit)
	return nil
}

// List returns a copy of the history, newest first.
func (s *InMemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		return []Record{}, nil
	}
	return slices.Clone(s.records), nil
}
