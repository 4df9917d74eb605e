package port

import (
	"context"
	"time"

	"github.com/codarkat/rumai/internal/core/domain"
)

// UserProfileUpdate captures the mutable profile fields. Nil pointers leave
// the stored value untouched.
type UserProfileUpdate struct {
	Username      *string
	FullName      *string
	Age           *int
	Gender        *string
	LanguageLevel *string
}

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, update UserProfileUpdate) error
	UpdateEmail(ctx context.Context, id string, email string) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	SetEmailVerified(ctx context.Context, id string, verified bool) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
