package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/coachauth/internal/storage"
)

// RevocationCache stores short-lived markers such as blacklisted token ids.
type RevocationCache struct {
	client *redis.Client
}

func NewRevocationCache(client *redis.Client) *RevocationCache {
	return &RevocationCache{client: client}
}

var _ storage.RevocationCache = (*RevocationCache)(nil)

func (c *RevocationCache) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get reports found=false for a missing or already expired key.
func (c *RevocationCache) Get(ctx context.Context, key string) (string, bool, error) {
	result, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	} else if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return result, true, nil
}
