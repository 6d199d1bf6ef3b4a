package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	records, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	for i := 1; i <= 101; i++ {
		require.NoError(t, store.Append(ctx, numbered(i)))
	}

	records, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, MaxRecords)
	assert.Equal(t, numbered(101), records[0])
	assert.Equal(t, numbered(2), records[len(records)-1])

	records[0] = Record{}
	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, numbered(101), again[0], "List returns a copy")
}
