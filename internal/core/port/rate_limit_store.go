package port

import (
	"context"
	"time"
)

// RateLimitStore records attempts inside a sliding window keyed by an
// arbitrary identifier (client IP, account identifier).
type RateLimitStore interface {
	RecordAttempt(ctx context.Context, key string, at time.Time) error
	CountAttempts(ctx context.Context, key string, window time.Duration, now time.Time) (int, error)
	OldestAttempt(ctx context.Context, key string, window time.Duration, now time.Time) (time.Time, bool, error)
	TrimWindow(ctx context.Context, key string, window time.Duration, now time.Time) error
}
