package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	// ErrResetTokenInvalid indicates the reset token is malformed, carries the
	// wrong scope, or was already redeemed.
	ErrResetTokenInvalid = errors.New("password reset token invalid")
	// ErrResetTokenExpired indicates the reset token is past its expiry.
	ErrResetTokenExpired = errors.New("password reset token expired")
	// ErrCurrentPasswordInvalid indicates the supplied current password does not match.
	ErrCurrentPasswordInvalid = errors.New("current password is incorrect")
)

const (
	defaultResetTTL = 15 * time.Minute

	passwordSourceReset  = "password_reset"
	passwordSourceChange = "password_change"
)

// ResetInitiation describes the outcome of a forgot-password request. The
// zero value (UserFound false) is returned for unknown emails so callers can
// keep the response shape constant.
type ResetInitiation struct {
	UserFound bool
	Token     string
	ExpiresAt time.Time
}

// PasswordResetService coordinates the forgot/reset/change password flows.
type PasswordResetService struct {
	users       port.UserRepository
	codec       *security.UserTokenCodec
	hasher      *security.PasswordHasher
	validator   *security.PasswordValidator
	revocations port.RevocationRegistry
	events      port.EventPublisher
	cache       port.Cache
	logger      *zap.Logger
	resetTTL    time.Duration
	now         func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	users port.UserRepository,
	codec *security.UserTokenCodec,
	hasher *security.PasswordHasher,
	validator *security.PasswordValidator,
	revocations port.RevocationRegistry,
	events port.EventPublisher,
	cache port.Cache,
	log *zap.Logger,
	resetTTL time.Duration,
) *PasswordResetService {
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	return &PasswordResetService{
		users:       users,
		codec:       codec,
		hasher:      hasher,
		validator:   validator,
		revocations: revocations,
		events:      events,
		cache:       cache,
		logger:      log,
		resetTTL:    resetTTL,
		now:         time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *PasswordResetService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ForgotPassword issues a scoped reset token when the account exists. Unknown
// emails return a zero-value initiation and no error; the handler responds
// identically in both cases so the endpoint cannot enumerate accounts.
func (s *PasswordResetService) ForgotPassword(ctx context.Context, email string) (ResetInitiation, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ResetInitiation{}, nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return ResetInitiation{}, nil
		}
		return ResetInitiation{}, fmt.Errorf("lookup user: %w", err)
	}

	token, err := s.codec.IssueScopedToken(user.Email, security.ScopePasswordReset, s.resetTTL)
	if err != nil {
		return ResetInitiation{}, fmt.Errorf("issue reset token: %w", err)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.resetTTL)

	event := domain.PasswordResetRequestedEvent{
		EventID:     uuid.NewString(),
		UserID:      user.ID,
		Email:       user.Email,
		RequestedAt: now,
		ExpiresAt:   expiresAt,
	}
	if err := s.events.PublishPasswordResetRequested(ctx, event); err != nil {
		s.logger.Warn("publish password reset requested event failed",
			zap.Error(err),
			zap.String("email", logger.MaskEmail(user.Email)),
		)
	}

	return ResetInitiation{
		UserFound: true,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// ResetPassword redeems a reset token and replaces the password. The token
// is revoked on first use; the second redemption fails.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrResetTokenInvalid
	}

	claims, err := s.codec.Decode(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return ErrResetTokenExpired
		}
		return ErrResetTokenInvalid
	}
	if err := claims.RequireScope(security.ScopePasswordReset); err != nil {
		return ErrResetTokenInvalid
	}

	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return ErrResetTokenInvalid
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.validator.Validate(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	expiresAt := s.now().UTC().Add(s.resetTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, token, expiresAt); err != nil {
		s.logger.Warn("revoke redeemed reset token failed", zap.Error(err))
	}

	s.publishPasswordChanged(ctx, user.ID, passwordSourceReset)
	return nil
}

// ChangePassword rotates the password for an authenticated user. The stored
// hash is untouched unless the current password verifies and the new value
// passes policy.
func (s *PasswordResetService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrCurrentPasswordInvalid
	}

	if err := security.RequireDifferentFrom(currentPassword).Validate(newPassword); err != nil {
		return err
	}
	if err := s.validator.Validate(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.publishPasswordChanged(ctx, user.ID, passwordSourceChange)
	return nil
}

func (s *PasswordResetService) publishPasswordChanged(ctx context.Context, userID, source string) {
	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		ChangedAt: s.now().UTC(),
		Source:    source,
	}
	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.logger.Warn("publish password changed event failed",
			zap.Error(err),
			zap.String("user_id", userID),
		)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			s.logger.Warn("invalidate cached profile failed",
				zap.Error(err),
				zap.String("user_id", userID),
			)
		}
	}
}
