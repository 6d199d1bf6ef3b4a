// Package store holds the resolution cache backends. Every backend keeps the
// latest snapshot per CNPJ together with the time it was fetched; freshness is
// decided by the resolver, not here. Find returns sentinel.ErrNotFound (possibly
// wrapped) for absent or undecodable entries.
package store

import (
	"errors"

	"sitegen/internal/company/models"
)

var errNilEntry = errors.New("cache entry with a record is required")

func validEntry(entry *models.CacheEntry) error {
	if entry == nil || entry.Record == nil || entry.CNPJ == "" {
		return errNilEntry
	}
	return nil
}
