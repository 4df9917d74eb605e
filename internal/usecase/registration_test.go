package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type registrationFixture struct {
	service *RegistrationService
	users   *fakeUserRepo
	events  *recordingPublisher
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()

	hasher := testHasher(t)
	users := newFakeUserRepo()
	events := &recordingPublisher{}

	service := NewRegistrationService(users, hasher, testValidator(), events, zap.NewNop())
	service.WithClock(fixedClock(testBase))

	return &registrationFixture{service: service, users: users, events: events}
}

func TestRegisterSuccess(t *testing.T) {
	fx := newRegistrationFixture(t)

	username := "newcomer"
	user, err := fx.service.Register(context.Background(), RegisterInput{
		Email:    "Newcomer@Example.com",
		Password: strongTestPassword,
		Username: &username,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if user.Email != "newcomer@example.com" {
		t.Fatalf("email = %q, want lowercased", user.Email)
	}
	if user.PasswordHash != "" {
		t.Fatal("returned user must not expose the password hash")
	}
	if !user.IsActive || user.EmailVerified {
		t.Fatalf("new account should be active and unverified, got active=%v verified=%v", user.IsActive, user.EmailVerified)
	}
	if !user.RegisteredAt.Equal(testBase) {
		t.Fatalf("registered_at = %v, want %v", user.RegisteredAt, testBase)
	}

	stored, err := fx.users.GetByEmail(context.Background(), "newcomer@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == strongTestPassword {
		t.Fatal("stored password must be hashed")
	}

	if len(fx.events.registered) != 1 {
		t.Fatalf("published %d events, want 1", len(fx.events.registered))
	}
	if fx.events.registered[0].UserID != user.ID {
		t.Fatalf("event user = %q, want %q", fx.events.registered[0].UserID, user.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	fx := newRegistrationFixture(t)

	input := RegisterInput{Email: "dupe@example.com", Password: strongTestPassword}
	if _, err := fx.service.Register(context.Background(), input); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	if _, err := fx.service.Register(context.Background(), input); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("error = %v, want ErrEmailTaken", err)
	}
	if len(fx.events.registered) != 1 {
		t.Fatalf("published %d events, want 1", len(fx.events.registered))
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	fx := newRegistrationFixture(t)

	username := "taken"
	if _, err := fx.service.Register(context.Background(), RegisterInput{
		Email:    "first@example.com",
		Password: strongTestPassword,
		Username: &username,
	}); err != nil {
		t.Fatalf("first Register: %v", err)
	}

	_, err := fx.service.Register(context.Background(), RegisterInput{
		Email:    "second@example.com",
		Password: strongTestPassword,
		Username: &username,
	})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("error = %v, want ErrUsernameTaken", err)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	fx := newRegistrationFixture(t)

	_, err := fx.service.Register(context.Background(), RegisterInput{
		Email:    "weak@example.com",
		Password: "password1",
	})
	if err == nil {
		t.Fatal("expected a password policy error")
	}

	if _, lookupErr := fx.users.GetByEmail(context.Background(), "weak@example.com"); lookupErr == nil {
		t.Fatal("no account may be created when the password is rejected")
	}
	if len(fx.events.registered) != 0 {
		t.Fatal("no event may be published when registration fails")
	}
}

func TestRegisterSucceedsWhenEventPublishFails(t *testing.T) {
	fx := newRegistrationFixture(t)
	fx.events.failWith = errors.New("broker unavailable")

	user, err := fx.service.Register(context.Background(), RegisterInput{
		Email:    "resilient@example.com",
		Password: strongTestPassword,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user == nil || user.ID == "" {
		t.Fatal("expected a created user despite the publish failure")
	}
}
