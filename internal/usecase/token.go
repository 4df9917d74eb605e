package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/core/domain"
	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/infra/logger"
	"github.com/codarkat/rumai/internal/infra/security"
	"github.com/codarkat/rumai/internal/repository"
)

var (
	// ErrInvalidAccessToken indicates the token is malformed or its signature does not verify.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the token is structurally valid but past its expiry.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrTokenRevoked indicates the token was explicitly revoked before expiry.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrUserNotFound indicates the token subject no longer resolves to an account.
	ErrUserNotFound = errors.New("user not found")
	// ErrInactiveAccount indicates the account is deactivated.
	ErrInactiveAccount = errors.New("account is not active")
)

const defaultRevocationRetention = 24 * time.Hour

// TokenService validates and revokes user-domain tokens. Validation is the
// authoritative check other services delegate to: signature, expiry,
// revocation state, and account state in that order.
type TokenService struct {
	codec       *security.UserTokenCodec
	users       port.UserRepository
	revocations port.RevocationRegistry
	events      port.EventPublisher
	logger      *zap.Logger
	retention   time.Duration
	now         func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(
	codec *security.UserTokenCodec,
	users port.UserRepository,
	revocations port.RevocationRegistry,
	events port.EventPublisher,
	log *zap.Logger,
) *TokenService {
	return &TokenService{
		codec:       codec,
		users:       users,
		revocations: revocations,
		events:      events,
		logger:      log,
		retention:   defaultRevocationRetention,
		now:         time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithRetention overrides how long revocation entries for unparseable tokens
// are kept.
func (s *TokenService) WithRetention(retention time.Duration) {
	if retention > 0 {
		s.retention = retention
	}
}

// ValidateToken checks the token end to end and returns the account it
// belongs to. Scoped single-purpose tokens never validate as access tokens.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if claims.Scope != "" {
		return nil, ErrInvalidAccessToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidAccessToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	return user, nil
}

// Revoke marks the token invalid for the remainder of its lifetime. The call
// is idempotent, accepts tokens this service cannot fully parse, and never
// stores the raw token.
func (s *TokenService) Revoke(ctx context.Context, token, reason string) error {
	if token == "" {
		return ErrInvalidAccessToken
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.retention)
	subject := ""

	if claims, err := s.codec.Decode(token); err == nil {
		subject = claims.Subject
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	} else if errors.Is(err, security.ErrExpiredToken) {
		// Already expired; a short retention entry still blocks replays
		// within clock skew.
		expiresAt = now.Add(time.Minute)
	}

	if err := s.revocations.Revoke(ctx, token, expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	event := domain.TokenRevokedEvent{
		EventID:   uuid.NewString(),
		TokenHash: security.HashToken(token),
		Subject:   subject,
		Reason:    reason,
		RevokedAt: now,
	}
	if err := s.events.PublishTokenRevoked(ctx, event); err != nil {
		s.logger.Warn("publish token revoked event failed",
			zap.Error(err),
			zap.String("subject", logger.MaskEmail(subject)),
		)
	}

	return nil
}
