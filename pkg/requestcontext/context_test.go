package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()

	t.Run("zero values when unset", func(t *testing.T) {
		assert.Empty(t, RequestID(ctx))
		assert.Empty(t, ClientIP(ctx))
		assert.Empty(t, UserAgent(ctx))
		assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	})

	t.Run("values round-trip", func(t *testing.T) {
		fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		c := WithRequestID(ctx, "req-1")
		c = WithTime(c, fixed)
		c = WithClientMetadata(c, "10.0.0.1", "curl/8")

		assert.Equal(t, "req-1", RequestID(c))
		assert.Equal(t, fixed, Now(c))
		assert.Equal(t, "10.0.0.1", ClientIP(c))
		assert.Equal(t, "curl/8", UserAgent(c))
	})
}
