package port

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates the key is not present in the cache.
var ErrCacheMiss = errors.New("cache: miss")

// Cache is an explicit cache-aside interface. Callers decide when to read,
// populate, and invalidate; a failed Get is a miss the caller handles, not
// an ambient fallthrough.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}
