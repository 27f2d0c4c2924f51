package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "voxid/pkg/domain"
)

func TestRequestContext(t *testing.T) {
	t.Run("empty context yields zero values", func(t *testing.T) {
		ctx := context.Background()
		assert.Empty(t, RequestID(ctx))
		assert.Empty(t, ClientIP(ctx))
		assert.Empty(t, UserAgent(ctx))
		assert.Empty(t, DeviceName(ctx))
		assert.True(t, IdentityID(ctx).IsNil())
		assert.True(t, TokenID(ctx).IsNil())
	})

	t.Run("values round trip", func(t *testing.T) {
		identityID := id.NewIdentityID()
		tokenID := id.NewTokenID()

		ctx := WithRequestID(context.Background(), "req-1")
		ctx = WithClientMetadata(ctx, "10.0.0.1", "curl/8.0")
		ctx = WithDeviceName(ctx, "curl")
		ctx = WithIdentityID(ctx, identityID)
		ctx = WithTokenID(ctx, tokenID)

		assert.Equal(t, "req-1", RequestID(ctx))
		assert.Equal(t, "10.0.0.1", ClientIP(ctx))
		assert.Equal(t, "curl/8.0", UserAgent(ctx))
		assert.Equal(t, "curl", DeviceName(ctx))
		assert.Equal(t, identityID, IdentityID(ctx))
		assert.Equal(t, tokenID, TokenID(ctx))
	})
}

func TestNow(t *testing.T) {
	pinned := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, pinned, Now(WithTime(context.Background(), pinned)))
	assert.WithinDuration(t, time.Now(), Now(context.Background()), time.Second)
}
