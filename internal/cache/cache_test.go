package cache

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sophiahq/sophia-gateway/internal/config"
)

func memCache(t *testing.T, ttl string) *Cache {
	t.Helper()
	return New(&config.CacheConfig{Enabled: true, TTL: ttl}, slog.Default())
}

func TestMemoryGetSet(t *testing.T) {
	c := memCache(t, "1m")
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"))
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestMemoryExpiry(t *testing.T) {
	c := memCache(t, "10ms")
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"))
	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok, "expired entry must not be returned")
}

func TestStats(t *testing.T) {
	c := memCache(t, "1m")
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"))
	c.Get(ctx, "k")
	c.Get(ctx, "nope")

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, "memory", stats.Backend)
}

func TestPingMemoryBackend(t *testing.T) {
	c := memCache(t, "1m")
	assert.NoError(t, c.Ping(context.Background()))
}

func TestRedisFallback(t *testing.T) {
	// An unreachable Redis address must fall back to memory, not fail.
	c := New(&config.CacheConfig{
		Enabled: true,
		Redis:   config.RedisConfig{Addr: "127.0.0.1:1"},
	}, slog.Default())
	require.NotNil(t, c)
	assert.Equal(t, "memory", c.Stats().Backend)
}
