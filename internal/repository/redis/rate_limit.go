package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codarkat/rumai/internal/core/port"
)

// RateLimitStore persists login and reset attempts in Redis sorted sets,
// scored by timestamp for sliding-window counting.
type RateLimitStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRateLimitStore constructs a store namespaced under prefix. Keys expire
// after ttl of inactivity when ttl is positive.
func NewRateLimitStore(client *redis.Client, prefix string, ttl time.Duration) *RateLimitStore {
	return &RateLimitStore{client: client, prefix: prefix, ttl: ttl}
}

// RecordAttempt stores the provided timestamp and refreshes the key TTL.
func (s *RateLimitStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := s.key(identifier)
	member := redis.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()}

	if err := s.client.ZAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis zadd attempt: %w", err)
	}

	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire attempts: %w", err)
		}
	}

	return nil
}

// CountAttempts returns how many attempts fall inside the window ending at reference.
func (s *RateLimitStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	count, err := s.client.ZCount(ctx, s.key(identifier), score(reference.Add(-window)), score(reference)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount attempts: %w", err)
	}

	return int(count), nil
}

// OldestAttempt returns the earliest attempt still inside the active window.
func (s *RateLimitStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if window <= 0 {
		return time.Time{}, false, errors.New("window must be positive")
	}

	values, err := s.client.ZRangeByScore(ctx, s.key(identifier), &redis.ZRangeBy{
		Min:   score(reference.Add(-window)),
		Max:   score(reference),
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zrangebyscore attempts: %w", err)
	}

	if len(values) == 0 {
		return time.Time{}, false, nil
	}

	ts, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse attempt timestamp: %w", err)
	}

	return time.Unix(0, ts), true, nil
}

// TrimWindow drops attempts older than the window relative to reference.
func (s *RateLimitStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	if err := s.client.ZRemRangeByScore(ctx, s.key(identifier), "-inf", score(reference.Add(-window))).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore attempts: %w", err)
	}

	return nil
}

func (s *RateLimitStore) key(identifier string) string {
	if s.prefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", s.prefix, identifier)
}

func score(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano()), 'f', -1, 64)
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
