package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/core/domain"
	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/infra/logger"
	"github.com/codarkat/rumai/internal/infra/security"
	"github.com/codarkat/rumai/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefreshToken indicates the refresh token is malformed, revoked, or misses required claims.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredRefreshToken indicates the refresh token has expired.
	ErrExpiredRefreshToken = errors.New("refresh token expired")
)

// TokenPair is the credential set returned on login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
}

// AuthService coordinates login, token refresh, and internal token issuance.
type AuthService struct {
	users         port.UserRepository
	hasher        *security.PasswordHasher
	codec         *security.UserTokenCodec
	internalCodec *security.InternalTokenCodec
	revocations   port.RevocationRegistry
	logger        *zap.Logger
	now           func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	hasher *security.PasswordHasher,
	codec *security.UserTokenCodec,
	internalCodec *security.InternalTokenCodec,
	revocations port.RevocationRegistry,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		hasher:        hasher,
		codec:         codec,
		internalCodec: internalCodec,
		revocations:   revocations,
		logger:        log,
		now:           time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login verifies credentials and issues an access/refresh token pair.
// Unknown email and wrong password collapse into the same error so the
// endpoint cannot be used to probe which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	if email == "" || password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return TokenPair{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return TokenPair{}, ErrInactiveAccount
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Warn("update last login failed",
			zap.Error(err),
			zap.String("email", logger.MaskEmail(user.Email)),
		)
	}

	return s.issuePair(*user)
}

// Refresh validates a refresh token and issues a fresh access token. The
// refresh token itself is returned unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	claims, err := s.codec.Decode(refreshToken)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return TokenPair{}, ErrExpiredRefreshToken
		}
		return TokenPair{}, ErrInvalidRefreshToken
	}

	if claims.Subject == "" || claims.UserID == "" || claims.Scope != "" {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	revoked, err := s.revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	if !user.IsActive {
		return TokenPair{}, ErrInactiveAccount
	}

	accessToken, err := s.codec.IssueAccessToken(*user, 0)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, nil
}

// IssueInternalToken signs a short-lived service-to-service assertion in the
// internal trust domain.
func (s *AuthService) IssueInternalToken(_ context.Context, subject string) (string, error) {
	token, err := s.internalCodec.Issue(subject, 0)
	if err != nil {
		return "", fmt.Errorf("issue internal token: %w", err)
	}
	return token, nil
}

func (s *AuthService) issuePair(user domain.User) (TokenPair, error) {
	accessToken, err := s.codec.IssueAccessToken(user, 0)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refreshToken, err := s.codec.IssueRefreshToken(user)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}, nil
}
