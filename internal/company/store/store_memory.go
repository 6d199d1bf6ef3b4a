package store

import (
	"context"
	"sync"

	"sitegen/internal/company/models"
	"sitegen/pkg/domain"
	"sitegen/pkg/platform/sentinel"
)

// InMemoryCache keeps snapshots in a map. Records are cloned on the way in
// and out so callers never share a cached value.
type InMemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.CacheEntry
}

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]models.CacheEntry),
	}
}

// Find returns the snapshot for cnpj or sentinel.ErrNotFound.
func (c *InMemoryCache) Find(_ context.Context, cnpj domain.CNPJ) (*models.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[cnpj.String()]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	entry.Record = entry.Record.Clone()
	return &entry, nil
}

// Save overwrites the snapshot for entry.CNPJ.
func (c *InMemoryCache) Save(_ context.Context, entry *models.CacheEntry) error {
	if err := validEntry(entry); err != nil {
		return err
	}
	stored := *entry
	stored.Record = entry.Record.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[entry.CNPJ] = stored
	return nil
}

// Len reports the number of cached entries.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
