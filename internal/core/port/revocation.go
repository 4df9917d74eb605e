package port

import (
	"context"
	"time"
)

// RevocationRegistry tracks tokens that were explicitly invalidated before
// their natural expiry. Implementations key entries by a hash of the token
// encoding; the raw bearer token is never stored at rest. Revoke is
// idempotent. expiresAt bounds how long the entry must be retained; once
// the token itself has expired the registry is free to forget it.
type RevocationRegistry interface {
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}
