package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/infra/logger"
	"github.com/codarkat/rumai/internal/infra/security"
	"github.com/codarkat/rumai/internal/repository"
)

// ErrVerificationTokenInvalid indicates the verification token is malformed,
// expired, carries the wrong scope, or was already redeemed.
var ErrVerificationTokenInvalid = errors.New("verification token invalid or expired")

const defaultVerificationTTL = 30 * time.Minute

// VerificationInitiation describes a newly issued verification token.
type VerificationInitiation struct {
	Token           string
	ExpiresAt       time.Time
	AlreadyVerified bool
}

// VerificationResult reports the outcome of a confirmation attempt.
type VerificationResult struct {
	Email           string
	AlreadyVerified bool
}

// VerificationService manages email verification tokens.
type VerificationService struct {
	users       port.UserRepository
	codec       *security.UserTokenCodec
	revocations port.RevocationRegistry
	logger      *zap.Logger
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(
	users port.UserRepository,
	codec *security.UserTokenCodec,
	revocations port.RevocationRegistry,
	log *zap.Logger,
	tokenTTL time.Duration,
) *VerificationService {
	if tokenTTL <= 0 {
		tokenTTL = defaultVerificationTTL
	}
	return &VerificationService{
		users:       users,
		codec:       codec,
		revocations: revocations,
		logger:      log,
		tokenTTL:    tokenTTL,
		now:         time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *VerificationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// InitiateEmailVerification issues a scoped token bound to the user's current
// email address. Verified accounts short-circuit without a token.
func (s *VerificationService) InitiateEmailVerification(ctx context.Context, userID string) (*VerificationInitiation, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.EmailVerified {
		return &VerificationInitiation{AlreadyVerified: true}, nil
	}

	token, err := s.codec.IssueScopedToken(user.Email, security.ScopeEmailVerification, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue verification token: %w", err)
	}

	s.logger.Info("email verification initiated",
		zap.String("user_id", user.ID),
		zap.String("email", logger.MaskEmail(user.Email)),
	)

	return &VerificationInitiation{
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.tokenTTL),
	}, nil
}

// ConfirmEmailVerification redeems a verification token. Redemption is
// single-use; confirming an already verified account succeeds idempotently.
func (s *VerificationService) ConfirmEmailVerification(ctx context.Context, token string) (*VerificationResult, error) {
	if token == "" {
		return nil, ErrVerificationTokenInvalid
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, ErrVerificationTokenInvalid
	}
	if err := claims.RequireScope(security.ScopeEmailVerification); err != nil {
		return nil, ErrVerificationTokenInvalid
	}

	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrVerificationTokenInvalid
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if user.EmailVerified {
		return &VerificationResult{Email: user.Email, AlreadyVerified: true}, nil
	}

	if err := s.users.SetEmailVerified(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("mark email verified: %w", err)
	}

	expiresAt := s.now().UTC().Add(s.tokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, token, expiresAt); err != nil {
		s.logger.Warn("revoke redeemed verification token failed", zap.Error(err))
	}

	return &VerificationResult{Email: user.Email}, nil
}
