package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/codarkat/rumai/internal/core/port"
)

// RevocationRegistry is an in-process fallback for deployments without Redis.
// Entries live in a map keyed by token digest and are swept once the token
// itself has expired. State does not survive a restart, which is acceptable
// because every tracked token carries its own expiry.
type RevocationRegistry struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewRevocationRegistry constructs an empty in-memory registry.
func NewRevocationRegistry() *RevocationRegistry {
	return &RevocationRegistry{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// WithClock overrides the time source, primarily for tests.
func (r *RevocationRegistry) WithClock(now func() time.Time) *RevocationRegistry {
	if now != nil {
		r.now = now
	}
	return r
}

// Revoke records the token digest until expiresAt.
func (r *RevocationRegistry) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	key, err := digest(token)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[key]; ok && existing.After(expiresAt) {
		return nil
	}
	r.entries[key] = expiresAt

	return nil
}

// IsRevoked reports whether the token is currently revoked. Entries whose
// token already expired are treated as absent.
func (r *RevocationRegistry) IsRevoked(_ context.Context, token string) (bool, error) {
	key, err := digest(token)
	if err != nil {
		return false, err
	}

	r.mu.RLock()
	expiresAt, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if !expiresAt.After(r.now()) {
		return false, nil
	}

	return true, nil
}

// Sweep removes entries for tokens that have passed their expiry and returns
// how many were dropped.
func (r *RevocationRegistry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, expiresAt := range r.entries {
		if !expiresAt.After(now) {
			delete(r.entries, key)
			removed++
		}
	}

	return removed
}

// StartSweeper runs Sweep on the given interval until ctx is done.
func (r *RevocationRegistry) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

func digest(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", errors.New("token must not be empty")
	}
	sum := sha256.Sum256([]byte(trimmed))
	return hex.EncodeToString(sum[:]), nil
}

var _ port.RevocationRegistry = (*RevocationRegistry)(nil)
