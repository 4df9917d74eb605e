package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/codarkat/rumai/internal/core/port"
)

const defaultRevocationPrefix = "revoked"

// minRevocationTTL keeps an entry alive briefly even for tokens that are
// already past their expiry, covering clock skew between services.
const minRevocationTTL = time.Minute

// RevocationRegistry tracks revoked bearer tokens in Redis. Entries are keyed
// by a SHA-256 digest of the token so the raw credential never lands at rest,
// and expire together with the token itself.
type RevocationRegistry struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewRevocationRegistry wires a Redis client into a revocation registry.
func NewRevocationRegistry(client *red.Client, keyPrefix string) *RevocationRegistry {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRevocationPrefix
	}

	return &RevocationRegistry{client: client, prefix: prefix, now: time.Now}
}

// WithClock overrides the time source, primarily for tests.
func (r *RevocationRegistry) WithClock(now func() time.Time) *RevocationRegistry {
	if now != nil {
		r.now = now
	}
	return r
}

// Revoke stores the token digest with a TTL matching the token expiration window.
func (r *RevocationRegistry) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	key, err := r.key(token)
	if err != nil {
		return err
	}

	ttl := expiresAt.Sub(r.now())
	if ttl < minRevocationTTL {
		ttl = minRevocationTTL
	}

	if err := r.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked token: %w", err)
	}

	return nil
}

// IsRevoked reports whether the token has been revoked.
func (r *RevocationRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	key, err := r.key(token)
	if err != nil {
		return false, err
	}

	if err := r.client.Get(ctx, key).Err(); err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get revoked token: %w", err)
	}

	return true, nil
}

func (r *RevocationRegistry) key(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", errors.New("token must not be empty")
	}
	digest := sha256.Sum256([]byte(trimmed))
	return fmt.Sprintf("%s:%s", r.prefix, hex.EncodeToString(digest[:])), nil
}

var _ port.RevocationRegistry = (*RevocationRegistry)(nil)
