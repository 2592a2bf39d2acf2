package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fillcast/test/util"
)

func TestRedisCacheIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()
	addr, cleanup, err := util.StartRedis(ctx)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	defer cleanup()

	c, err := NewRedisCache(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	k := testKey("")
	_, ok, err := c.Load(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Save(ctx, k, testPoints(), 2))
	require.NoError(t, c.Save(ctx, testKey("0123456789abcdef"), testPoints()[:1], 1))
	ok, err = c.Exists(ctx, k)
	require.NoError(t, err)
	assert.True(t, ok)

	entry, ok, err := c.Load(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testPoints(), entry.Points)
	assert.Equal(t, 2, entry.Meta.SiteCount)

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	ok, err = c.Exists(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
}
