package memory

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"

	"github.com/rryowa/coachauth/internal/storage"
)

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// InMemoryCache is a TTL key/value store driven by an injectable clock.
// Expired entries are dropped lazily on read.
type InMemoryCache struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]cacheEntry
}

func NewCache(clk clock.Clock) *InMemoryCache {
	if clk == nil {
		clk = clock.New()
	}
	return &InMemoryCache{
		clock:   clk,
		entries: make(map[string]cacheEntry),
	}
}

var _ storage.RevocationCache = (*InMemoryCache)(nil)

func (c *InMemoryCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{value: value, expiresAt: c.clock.Now().Add(ttl)}
	return nil
}

func (c *InMemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}
