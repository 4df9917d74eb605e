package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codarkat/rumai/internal/core/domain"
	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/infra/security"
	"github.com/codarkat/rumai/internal/repository"
)

const strongTestPassword = "Sup3r!SecurePass#7890"

// testBase is a fixed reference instant shared across service tests.
var testBase = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func testHasher(t *testing.T) *security.PasswordHasher {
	t.Helper()
	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	return hasher
}

func testUserCodec(t *testing.T) *security.UserTokenCodec {
	t.Helper()
	codec, err := security.NewUserTokenCodec("user-domain-test-secret", "HS256", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewUserTokenCodec: %v", err)
	}
	return codec.WithClock(fixedClock(testBase))
}

func testValidator() *security.PasswordValidator {
	return security.DefaultPasswordValidator()
}

func testUser(t *testing.T, hasher *security.PasswordHasher) domain.User {
	t.Helper()
	hash, err := hasher.Hash(strongTestPassword)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	username := "polyglot"
	return domain.User{
		ID:            "user-1",
		Email:         "learner@example.com",
		Username:      &username,
		PasswordHash:  hash,
		IsActive:      true,
		EmailVerified: true,
		RegisteredAt:  testBase.Add(-30 * 24 * time.Hour),
	}
}

// fakeUserRepo is an in-memory port.UserRepository used across service tests.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User

	failWith error
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for i := range users {
		user := users[i]
		repo.users[user.ID] = &user
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.User) error {
	if r.failWith != nil {
		return r.failWith
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrConflict
		}
		if user.Username != nil && existing.Username != nil && *existing.Username == *user.Username {
			return repository.ErrConflict
		}
	}
	stored := user
	r.users[user.ID] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) UpdateProfile(_ context.Context, id string, update port.UserProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	if update.Username != nil {
		for otherID, other := range r.users {
			if otherID != id && other.Username != nil && *other.Username == *update.Username {
				return repository.ErrConflict
			}
		}
		user.Username = update.Username
	}
	if update.FullName != nil {
		user.FullName = update.FullName
	}
	if update.Age != nil {
		user.Age = update.Age
	}
	if update.Gender != nil {
		user.Gender = update.Gender
	}
	if update.LanguageLevel != nil {
		user.LanguageLevel = update.LanguageLevel
	}
	return nil
}

func (r *fakeUserRepo) UpdateEmail(_ context.Context, id string, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	for otherID, other := range r.users {
		if otherID != id && strings.EqualFold(other.Email, email) {
			return repository.ErrConflict
		}
	}
	user.Email = email
	user.EmailVerified = false
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) SetEmailVerified(_ context.Context, id string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.EmailVerified = verified
	return nil
}

func (r *fakeUserRepo) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsActive = active
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastLogin = &at
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

var _ port.UserRepository = (*fakeUserRepo)(nil)

// fakeRevocations is an in-memory port.RevocationRegistry.
type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time

	revokeErr error
	checkErr  error
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{revoked: make(map[string]time.Time)}
}

func (f *fakeRevocations) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[token] = expiresAt
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[token]
	return ok, nil
}

func (f *fakeRevocations) expiry(token string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.revoked[token]
	return at, ok
}

var _ port.RevocationRegistry = (*fakeRevocations)(nil)

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu              sync.Mutex
	registered      []domain.UserRegisteredEvent
	passwordChanged []domain.PasswordChangedEvent
	resetRequested  []domain.PasswordResetRequestedEvent
	tokenRevoked    []domain.TokenRevokedEvent

	failWith error
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return nil
}

func (p *recordingPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwordChanged = append(p.passwordChanged, event)
	return nil
}

func (p *recordingPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetRequested = append(p.resetRequested, event)
	return nil
}

func (p *recordingPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenRevoked = append(p.tokenRevoked, event)
	return nil
}

var _ port.EventPublisher = (*recordingPublisher)(nil)

// fakeCache is an in-memory port.Cache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string

	sets        int
	gets        int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if value, ok := c.entries[key]; ok {
		return value, nil
	}
	return "", port.ErrCacheMiss
}

func (c *fakeCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, key)
	delete(c.entries, key)
	return nil
}

var _ port.Cache = (*fakeCache)(nil)
