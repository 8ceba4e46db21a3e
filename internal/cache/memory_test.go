package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryIdentityCache(8, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, sampleUser()))
	got, ok, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice@x.com", got.Email)
	assert.Empty(t, got.PasswordHash)

	require.NoError(t, c.Invalidate(ctx, "alice"))
	_, ok, _ = c.Get(ctx, "alice")
	assert.False(t, ok)
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryIdentityCache(8, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, sampleUser()))
	time.Sleep(60 * time.Millisecond)

	_, ok, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheReturnsCopies(t *testing.T) {
	c := NewMemoryIdentityCache(8, time.Hour)
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, sampleUser()))

	got, _, _ := c.Get(ctx, "alice")
	got.Email = "mutated@x.com"

	again, _, _ := c.Get(ctx, "alice")
	assert.Equal(t, "alice@x.com", again.Email)
}
