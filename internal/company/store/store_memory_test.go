package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/pkg/platform/sentinel"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss", func(t *testing.T) {
		cache := NewInMemoryCache()
		_, err := cache.Find(ctx, testCNPJ)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("round trip keeps retrieval time", func(t *testing.T) {
		cache := NewInMemoryCache()
		retrievedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, cache.Save(ctx, testEntry(retrievedAt)))

		found, err := cache.Find(ctx, testCNPJ)
		require.NoError(t, err)
		assert.Equal(t, retrievedAt, found.RetrievedAt)
		assert.Equal(t, "SP", found.Record.State)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("snapshots are isolated from callers", func(t *testing.T) {
		cache := NewInMemoryCache()
		entry := testEntry(time.Now())
		require.NoError(t, cache.Save(ctx, entry))
		entry.Record.LegalName = "MUTATED"

		found, err := cache.Find(ctx, testCNPJ)
		require.NoError(t, err)
		found.Record.City = "MUTATED"

		again, err := cache.Find(ctx, testCNPJ)
		require.NoError(t, err)
		assert.Equal(t, "ACME COMERCIO LTDA", again.Record.LegalName)
		assert.Equal(t, "SAO PAULO", again.Record.City)
	})

	t.Run("save overwrites", func(t *testing.T) {
		cache := NewInMemoryCache()
		require.NoError(t, cache.Save(ctx, testEntry(time.Now().Add(-time.Hour))))
		newer := testEntry(time.Now())
		newer.Record.State = "RJ"
		require.NoError(t, cache.Save(ctx, newer))

		found, err := cache.Find(ctx, testCNPJ)
		require.NoError(t, err)
		assert.Equal(t, "RJ", found.Record.State)
		assert.Equal(t, 1, cache.Len())
	})
}
