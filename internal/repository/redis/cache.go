package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/codarkat/rumai/internal/core/port"
)

// Cache is a Redis-backed cache-aside store for serialized payloads.
type Cache struct {
	client *red.Client
	prefix string
}

// NewCache constructs a cache namespaced under the given prefix.
func NewCache(client *red.Client, keyPrefix string) *Cache {
	return &Cache{client: client, prefix: strings.TrimSpace(keyPrefix)}
}

// Get returns the cached value or port.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", port.ErrCacheMiss
		}
		return "", fmt.Errorf("redis get cache entry: %w", err)
	}

	return value, nil
}

// Set stores a value under the key for the provided TTL.
func (c *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set cache entry: %w", err)
	}

	return nil
}

// Invalidate removes the key. Missing keys are not an error.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del cache entry: %w", err)
	}

	return nil
}

func (c *Cache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

var _ port.Cache = (*Cache)(nil)
