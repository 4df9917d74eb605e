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
	// ErrEmailTaken indicates the email address is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken indicates the username is already in use.
	ErrUsernameTaken = errors.New("username already taken")
)

// RegisterInput captures the payload for account creation.
type RegisterInput struct {
	Email         string
	Password      string
	Username      *string
	FullName      *string
	Age           *int
	Gender        *string
	LanguageLevel *string
}

// RegistrationService creates new accounts.
type RegistrationService struct {
	users     port.UserRepository
	hasher    *security.PasswordHasher
	validator *security.PasswordValidator
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	users port.UserRepository,
	hasher *security.PasswordHasher,
	validator *security.PasswordValidator,
	events port.EventPublisher,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		users:     users,
		hasher:    hasher,
		validator: validator,
		events:    events,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Register validates the input, hashes the password, and creates an active
// but unverified account.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	if err := s.validator.Validate(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		Username:      input.Username,
		FullName:      input.FullName,
		PasswordHash:  hash,
		IsActive:      true,
		EmailVerified: false,
		Age:           input.Age,
		Gender:        input.Gender,
		LanguageLevel: input.LanguageLevel,
		RegisteredAt:  s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Email uniqueness was checked above, so a conflict here is
			// almost always the username. A concurrent email registration
			// still maps to the right status code at the boundary.
			if user.Username != nil {
				return nil, ErrUsernameTaken
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	event := domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		Username:     user.Username,
		RegisteredAt: user.RegisteredAt,
	}
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		s.logger.Warn("publish user registered event failed",
			zap.Error(err),
			zap.String("email", logger.MaskEmail(user.Email)),
		)
	}

	created := user
	created.PasswordHash = ""
	return &created, nil
}
