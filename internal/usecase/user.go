package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/core/domain"
	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/repository"
)

const defaultProfileCacheTTL = 5 * time.Minute

// ProfileService serves and mutates user profiles with an explicit
// cache-aside layer: reads populate the cache, mutations invalidate it.
type ProfileService struct {
	users    port.UserRepository
	cache    port.Cache
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewProfileService constructs a ProfileService. The cache is optional; a nil
// cache degrades to direct repository reads.
func NewProfileService(users port.UserRepository, cache port.Cache, log *zap.Logger, cacheTTL time.Duration) *ProfileService {
	if cacheTTL <= 0 {
		cacheTTL = defaultProfileCacheTTL
	}
	return &ProfileService{
		users:    users,
		cache:    cache,
		logger:   log,
		cacheTTL: cacheTTL,
	}
}

// cachedProfile is the serialized cache representation. The password hash is
// deliberately absent.
type cachedProfile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      *string    `json:"username,omitempty"`
	FullName      *string    `json:"full_name,omitempty"`
	IsActive      bool       `json:"is_active"`
	EmailVerified bool       `json:"email_verified"`
	Age           *int       `json:"age,omitempty"`
	Gender        *string    `json:"gender,omitempty"`
	LanguageLevel *string    `json:"language_level,omitempty"`
	RegisteredAt  time.Time  `json:"registered_at"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

func toCachedProfile(user domain.User) cachedProfile {
	return cachedProfile{
		ID:            user.ID,
		Email:         user.Email,
		Username:      user.Username,
		FullName:      user.FullName,
		IsActive:      user.IsActive,
		EmailVerified: user.EmailVerified,
		Age:           user.Age,
		Gender:        user.Gender,
		LanguageLevel: user.LanguageLevel,
		RegisteredAt:  user.RegisteredAt,
		LastLogin:     user.LastLogin,
	}
}

func (p cachedProfile) toUser() domain.User {
	return domain.User{
		ID:            p.ID,
		Email:         p.Email,
		Username:      p.Username,
		FullName:      p.FullName,
		IsActive:      p.IsActive,
		EmailVerified: p.EmailVerified,
		Age:           p.Age,
		Gender:        p.Gender,
		LanguageLevel: p.LanguageLevel,
		RegisteredAt:  p.RegisteredAt,
		LastLogin:     p.LastLogin,
	}
}

// GetProfile returns the profile, preferring the cache. Cache failures other
// than a miss are logged and treated as a miss.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, userID)
		if err == nil {
			var cached cachedProfile
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				user := cached.toUser()
				return &user, nil
			}
			s.logger.Warn("discarding undecodable cached profile", zap.String("user_id", userID))
		} else if !errors.Is(err, port.ErrCacheMiss) {
			s.logger.Warn("profile cache read failed", zap.Error(err), zap.String("user_id", userID))
		}
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(toCachedProfile(*user)); err == nil {
			if err := s.cache.Set(ctx, userID, string(raw), s.cacheTTL); err != nil {
				s.logger.Warn("profile cache write failed", zap.Error(err), zap.String("user_id", userID))
			}
		}
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	return &sanitized, nil
}

// UpdateProfile applies the provided field updates and invalidates the cache.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, update port.UserProfileUpdate) (*domain.User, error) {
	if err := s.users.UpdateProfile(ctx, userID, update); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrUsernameTaken
		default:
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}

	s.invalidate(ctx, userID)
	return s.GetProfile(ctx, userID)
}

// UpdateEmail changes the account email. Verification state resets so the
// new address must be confirmed.
func (s *ProfileService) UpdateEmail(ctx context.Context, userID, email string) error {
	if err := s.users.UpdateEmail(ctx, userID, email); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrUserNotFound
		case errors.Is(err, repository.ErrConflict):
			return ErrEmailTaken
		default:
			return fmt.Errorf("update email: %w", err)
		}
	}

	s.invalidate(ctx, userID)
	return nil
}

// Deactivate soft-deletes the account: data is retained but every token
// validation fails from this point.
func (s *ProfileService) Deactivate(ctx context.Context, userID string) error {
	if err := s.users.SetActive(ctx, userID, false); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("deactivate user: %w", err)
	}

	s.invalidate(ctx, userID)
	return nil
}

// DeletePermanently removes the account row.
func (s *ProfileService) DeletePermanently(ctx context.Context, userID string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *ProfileService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("profile cache invalidation failed", zap.Error(err), zap.String("user_id", userID))
	}
}
