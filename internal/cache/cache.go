// Package cache provides the TTL response cache for routed completions.
// Redis backs it when configured; otherwise an in-process TTL map serves
// single-instance deployments.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sophiahq/sophia-gateway/internal/config"
)

// Stats holds cache hit and miss counters
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Backend string `json:"backend"`
}

// Cache is a TTL key-value cache with a Redis or in-memory backend
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]memEntry
	hits    uint64
	misses  uint64
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// New creates a cache from config. Redis connection failures fall back to
// the in-memory backend rather than failing startup.
func New(cfg *config.CacheConfig, logger *slog.Logger) *Cache {
	c := &Cache{
		ttl:     cfg.GetTTL(),
		logger:  logger,
		entries: make(map[string]memEntry),
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-memory cache", "addr", cfg.Redis.Addr, "error", err)
		} else {
			c.rdb = rdb
		}
	}

	return c
}

// Get returns the cached value for key, if present and unexpired
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			c.count(false)
			return nil, false
		}
		if err != nil {
			c.logger.Warn("redis get failed", "error", err)
			c.count(false)
			return nil, false
		}
		c.count(true)
		return data, true
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		c.count(false)
		return nil, false
	}
	c.count(true)
	return e.value, true
}

// Set stores value under key for the configured TTL
func (c *Cache) Set(ctx context.Context, key string, value []byte) {
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
			c.logger.Warn("redis set failed", "error", err)
		}
		return
	}

	c.mu.Lock()
	c.entries[key] = memEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
	// Opportunistic sweep keeps the map bounded without a background goroutine.
	if len(c.entries) > 4096 {
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
	c.mu.Unlock()
}

// Ping reports whether the Redis backend is reachable. The in-memory
// backend is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Stats returns hit/miss counters and the active backend name
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	backend := "memory"
	if c.rdb != nil {
		backend = "redis"
	}
	return Stats{Hits: c.hits, Misses: c.misses, Backend: backend}
}

// Close releases the Redis connection if one is open
func (c *Cache) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}
