package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/codarkat/rumai/internal/core/port"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRevocationRegistry_RevokeAndCheck(t *testing.T) {
	client, server := newTestRedis(t)

	now := time.Now().UTC()
	registry := NewRevocationRegistry(client, "revoked").WithClock(func() time.Time { return now })

	ctx := context.Background()
	token := "header.payload.signature"

	if err := registry.Revoke(ctx, token, now.Add(30*time.Minute)); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	revoked, err := registry.IsRevoked(ctx, token)
	if err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if !revoked {
		t.Fatalf("expected token to be revoked")
	}

	digest := sha256.Sum256([]byte(token))
	key := fmt.Sprintf("revoked:%s", hex.EncodeToString(digest[:]))
	if !server.Exists(key) {
		t.Fatalf("expected hashed key in redis, raw token must not be stored")
	}
	if server.Exists("revoked:" + token) {
		t.Fatalf("raw token stored as key")
	}

	remaining := server.TTL(key)
	if remaining <= 0 || remaining > 30*time.Minute {
		t.Fatalf("expected ttl within (0, 30m], got %v", remaining)
	}
}

func TestRevocationRegistry_ExpiredTokenKeepsMinimumTTL(t *testing.T) {
	client, server := newTestRedis(t)

	now := time.Now().UTC()
	registry := NewRevocationRegistry(client, "revoked").WithClock(func() time.Time { return now })

	token := "already-expired"
	if err := registry.Revoke(context.Background(), token, now.Add(-time.Hour)); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}

	digest := sha256.Sum256([]byte(token))
	key := fmt.Sprintf("revoked:%s", hex.EncodeToString(digest[:]))
	if remaining := server.TTL(key); remaining <= 0 {
		t.Fatalf("expected positive ttl for expired token entry, got %v", remaining)
	}
}

func TestRevocationRegistry_IsRevokedMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	registry := NewRevocationRegistry(client, "revoked")

	revoked, err := registry.IsRevoked(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if revoked {
		t.Fatalf("expected revoked to be false")
	}
}

func TestRevocationRegistry_Idempotent(t *testing.T) {
	client, _ := newTestRedis(t)

	now := time.Now().UTC()
	registry := NewRevocationRegistry(client, "revoked").WithClock(func() time.Time { return now })

	ctx := context.Background()
	expires := now.Add(time.Hour)

	if err := registry.Revoke(ctx, "token", expires); err != nil {
		t.Fatalf("first Revoke returned error: %v", err)
	}
	if err := registry.Revoke(ctx, "token", expires); err != nil {
		t.Fatalf("second Revoke returned error: %v", err)
	}

	revoked, err := registry.IsRevoked(ctx, "token")
	if err != nil {
		t.Fatalf("IsRevoked returned error: %v", err)
	}
	if !revoked {
		t.Fatalf("expected token to remain revoked")
	}
}

func TestRevocationRegistry_EmptyToken(t *testing.T) {
	client, _ := newTestRedis(t)
	registry := NewRevocationRegistry(client, "revoked")

	if err := registry.Revoke(context.Background(), "", time.Now().Add(time.Hour)); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if _, err := registry.IsRevoked(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for blank token")
	}
}

func TestCache_SetGetInvalidate(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewCache(client, "profile")

	ctx := context.Background()

	if err := cache.Set(ctx, "user-1", `{"id":"user-1"}`, 5*time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	value, err := cache.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if value != `{"id":"user-1"}` {
		t.Fatalf("unexpected cached value: %s", value)
	}

	if remaining := server.TTL("profile:user-1"); remaining <= 0 || remaining > 5*time.Minute {
		t.Fatalf("expected ttl within (0, 5m], got %v", remaining)
	}

	if err := cache.Invalidate(ctx, "user-1"); err != nil {
		t.Fatalf("Invalidate returned error: %v", err)
	}

	if _, err := cache.Get(ctx, "user-1"); !errors.Is(err, port.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after invalidation, got %v", err)
	}
}

func TestCache_GetMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewCache(client, "profile")

	if _, err := cache.Get(context.Background(), "absent"); !errors.Is(err, port.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestCache_SetInvalidTTL(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewCache(client, "profile")

	if err := cache.Set(context.Background(), "key", "value", 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
}

func TestRateLimitStore_SlidingWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, "ratelimit:login", time.Hour)

	ctx := context.Background()
	reference := time.Now().UTC()

	for i := 0; i < 3; i++ {
		at := reference.Add(-time.Duration(i) * time.Minute)
		if err := store.RecordAttempt(ctx, "user@example.com", at); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}
	// Outside a five-minute window.
	if err := store.RecordAttempt(ctx, "user@example.com", reference.Add(-10*time.Minute)); err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	count, err := store.CountAttempts(ctx, "user@example.com", 5*time.Minute, reference)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts in window, got %d", count)
	}

	oldest, ok, err := store.OldestAttempt(ctx, "user@example.com", 5*time.Minute, reference)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected an attempt inside the window")
	}
	expected := reference.Add(-2 * time.Minute)
	if oldest.UnixNano() != expected.UnixNano() {
		t.Fatalf("expected oldest %v, got %v", expected, oldest)
	}

	if err := store.TrimWindow(ctx, "user@example.com", 5*time.Minute, reference); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}

	count, err = store.CountAttempts(ctx, "user@example.com", time.Hour, reference)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected trimmed set to hold 3 attempts, got %d", count)
	}
}

func TestRateLimitStore_EmptyWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, "ratelimit:login", time.Hour)

	count, err := store.CountAttempts(context.Background(), "nobody", 5*time.Minute, time.Now().UTC())
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero attempts, got %d", count)
	}

	_, ok, err := store.OldestAttempt(context.Background(), "nobody", 5*time.Minute, time.Now().UTC())
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected no attempt in empty window")
	}
}

func TestRateLimitStore_InvalidWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, "ratelimit:login", time.Hour)

	if _, err := store.CountAttempts(context.Background(), "id", 0, time.Now()); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
	if err := store.TrimWindow(context.Background(), "id", -time.Minute, time.Now()); err == nil {
		t.Fatalf("expected error for negative window")
	}
}
