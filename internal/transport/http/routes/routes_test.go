package routes_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/core/domain"
	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/infra/config"
	"github.com/codarkat/rumai/internal/infra/kafka"
	"github.com/codarkat/rumai/internal/infra/security"
	"github.com/codarkat/rumai/internal/repository"
	"github.com/codarkat/rumai/internal/repository/memory"
	httproutes "github.com/codarkat/rumai/internal/transport/http/routes"
	"github.com/codarkat/rumai/internal/usecase"
)

type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*domain.User)}
}

func (r *memoryUserRepo) Create(_ context.Context, user domain.User) error {
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

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUserRepo) UpdateProfile(_ context.Context, id string, update port.UserProfileUpdate) error {
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

func (r *memoryUserRepo) UpdateEmail(_ context.Context, id string, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	for otherID, other := range r.users {
		if otherID != id && other.Email == email {
			return repository.ErrConflict
		}
	}
	user.Email = email
	user.EmailVerified = false
	return nil
}

func (r *memoryUserRepo) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (r *memoryUserRepo) SetEmailVerified(_ context.Context, id string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.EmailVerified = verified
	return nil
}

func (r *memoryUserRepo) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsActive = active
	return nil
}

func (r *memoryUserRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastLogin = &at
	return nil
}

func (r *memoryUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fixture struct {
	engine *gin.Engine
	repo   *memoryUserRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("build hasher: %v", err)
	}

	codec, err := security.NewUserTokenCodec("routes-test-user-secret", "HS256", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("build user codec: %v", err)
	}
	internalCodec, err := security.NewInternalTokenCodec("routes-test-internal-secret", "routes-test-user-secret", "HS512", "auth_service", 10*time.Minute)
	if err != nil {
		t.Fatalf("build internal codec: %v", err)
	}

	repo := newMemoryUserRepo()
	revocations := memory.NewRevocationRegistry()
	events := kafka.NewStubPublisher(zap.NewNop())
	validator := security.DefaultPasswordValidator()
	log := zap.NewNop()

	services := httproutes.ServiceSet{
		Auth:          usecase.NewAuthService(repo, hasher, codec, internalCodec, revocations, log),
		Registration:  usecase.NewRegistrationService(repo, hasher, validator, events, log),
		Tokens:        usecase.NewTokenService(codec, repo, revocations, events, log),
		Verification:  usecase.NewVerificationService(repo, codec, revocations, log, 30*time.Minute),
		PasswordReset: usecase.NewPasswordResetService(repo, codec, hasher, validator, revocations, events, nil, log, 15*time.Minute),
		Profiles:      usecase.NewProfileService(repo, nil, log, 5*time.Minute),
	}

	cfg := &config.AppConfig{
		App:         config.AppSettings{Name: "rumai-auth", Env: "development"},
		InternalJWT: config.InternalJWTSettings{Secret: "routes-test-gateway-secret"},
	}

	engine := httproutes.Register(httproutes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Services: services,
	})

	return &fixture{engine: engine, repo: repo}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func (f *fixture) register(t *testing.T, email, password string) string {
	t.Helper()

	w := f.do(t, http.MethodPost, "/auth/register", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeBody(t, w, &resp)
	if resp.User.ID == "" {
		t.Fatal("expected registered user id")
	}
	return resp.User.ID
}

func (f *fixture) login(t *testing.T, email, password string) (access, refresh string) {
	t.Helper()

	w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", w.Code, w.Body.String())
	}

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}
	decodeBody(t, w, &pair)
	if pair.TokenType != "bearer" {
		t.Fatalf("expected token_type bearer, got %q", pair.TokenType)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens in login response")
	}
	return pair.AccessToken, pair.RefreshToken
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

const testPassword = "Sup3r!SecurePass#7890"

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var health struct {
		Status string `json:"status"`
	}
	decodeBody(t, w, &health)
	if health.Status != "ok" {
		t.Fatalf("expected ok status, got %q", health.Status)
	}
}

type stubChecker struct {
	err error
}

func (c stubChecker) Ping(context.Context) error        { return c.err }
func (c stubChecker) HealthCheck(context.Context) error { return c.err }

func TestReadinessReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	healthy := httproutes.Register(httproutes.Dependencies{
		Config:   &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger:   zap.NewNop(),
		Database: stubChecker{},
		Cache:    stubChecker{},
	})
	broken := httproutes.Register(httproutes.Dependencies{
		Config:   &config.AppConfig{App: config.AppSettings{Env: "test"}},
		Logger:   zap.NewNop(),
		Database: stubChecker{err: errors.New("connection refused")},
		Cache:    stubChecker{},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	healthy.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	broken.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for failing dependency, got %d", w.Code)
	}

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeBody(t, w, &ready)
	if ready.Checks["database"] == "ok" {
		t.Fatalf("expected failing database check, got %v", ready.Checks)
	}

	// keep the shared fixture exercised so its readiness path stays covered
	if got := f.do(t, http.MethodGet, "/readyz", nil, nil); got.Code != http.StatusOK {
		t.Fatalf("fixture without checkers should be ready, got %d", got.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", map[string]any{
		"email":    "not-an-email",
		"password": testPassword,
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed email, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/auth/register", map[string]any{
		"email":    "weak@example.com",
		"password": "password1",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for weak password, got %d", w.Code)
	}
	var errResp struct {
		Error string `json:"error"`
	}
	decodeBody(t, w, &errResp)
	if errResp.Error == "" {
		t.Fatal("expected policy violation message")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dup@example.com", testPassword)

	w := f.do(t, http.MethodPost, "/auth/register", map[string]any{
		"email":    "Dup@Example.com",
		"password": testPassword,
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", w.Code)
	}

	var errResp struct {
		Error string `json:"error"`
	}
	decodeBody(t, w, &errResp)
	if errResp.Error != "email already registered" {
		t.Fatalf("unexpected error message %q", errResp.Error)
	}
}

func TestLoginAndValidateToken(t *testing.T) {
	f := newFixture(t)
	userID := f.register(t, "learner@example.com", testPassword)
	access, _ := f.login(t, "learner@example.com", testPassword)

	w := f.do(t, http.MethodPost, "/auth/validate-token", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("validate returned %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Valid bool `json:"valid"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	decodeBody(t, w, &resp)
	if !resp.Valid {
		t.Fatal("expected valid=true")
	}
	if resp.User.ID != userID || resp.User.Email != "learner@example.com" {
		t.Fatalf("unexpected user payload: %+v", resp.User)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "learner@example.com", testPassword)

	w := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "learner@example.com",
		"password": "wrong-password",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	unknown := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "nobody@example.com",
		"password": "wrong-password",
	}, nil)
	if unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown email, got %d", unknown.Code)
	}
	if w.Body.String() != unknown.Body.String() {
		// trace IDs differ per request, compare just the error field
		var a, b struct {
			Error string `json:"error"`
		}
		decodeBody(t, w, &a)
		decodeBody(t, unknown, &b)
		if a.Error != b.Error {
			t.Fatalf("wrong-password and unknown-email responses must match: %q vs %q", a.Error, b.Error)
		}
	}
}

func TestValidateTokenRejections(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/auth/validate-token", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/auth/validate-token", nil, bearer("not-a-jwt"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "learner@example.com", testPassword)
	access, _ := f.login(t, "learner@example.com", testPassword)

	w := f.do(t, http.MethodPost, "/auth/logout", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("logout returned %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/auth/validate-token", nil, bearer(access))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", w.Code)
	}

	// logging out again with the already revoked token still succeeds
	w = f.do(t, http.MethodPost, "/auth/logout", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("second logout should succeed, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRevokeTokenAcceptsExpiredToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/auth/revoke-token", nil, bearer("not-a-decodable-token"))
	if w.Code != http.StatusOK {
		t.Fatalf("revoking an undecodable token should succeed, got %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/auth/revoke-token", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer token, got %d", w.Code)
	}
}

func TestRefreshToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "learner@example.com", testPassword)
	_, refresh := f.login(t, "learner@example.com", testPassword)

	w := f.do(t, http.MethodPost, "/auth/refresh-token", map[string]any{
		"refresh_token": refresh,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh returned %d: %s", w.Code, w.Body.String())
	}

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeBody(t, w, &pair)
	if pair.AccessToken == "" {
		t.Fatal("expected fresh access token")
	}
	if pair.RefreshToken != refresh {
		t.Fatal("refresh token should carry over unchanged")
	}

	w = f.do(t, http.MethodPost, "/auth/refresh-token", map[string]any{
		"refresh_token": "garbage",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad refresh token, got %d", w.Code)
	}
}

func TestInternalTokenRequiresSharedSecret(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/auth/internal-token", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/auth/internal-token", nil, map[string]string{
		"X-Internal-Secret": "wrong-secret",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/auth/internal-token?service=vocab_service", nil, map[string]string{
		"X-Internal-Secret": "routes-test-gateway-secret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct secret, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		InternalToken string `json:"internal_token"`
		TokenType     string `json:"token_type"`
	}
	decodeBody(t, w, &resp)
	if resp.InternalToken == "" || resp.TokenType != "bearer" {
		t.Fatalf("unexpected internal token payload: %+v", resp)
	}

	// an internal token is not usable against user endpoints
	w = f.do(t, http.MethodPost, "/auth/validate-token", nil, bearer(resp.InternalToken))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("internal token must not validate as a user token, got %d", w.Code)
	}
}

func TestEmailVerificationFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, "learner@example.com", testPassword)
	access, _ := f.login(t, "learner@example.com", testPassword)

	w := f.do(t, http.MethodGet, "/auth/verify-email/initiate", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("initiate returned %d: %s", w.Code, w.Body.String())
	}

	var initiate struct {
		Message string  `json:"message"`
		Token   *string `json:"verification_token"`
	}
	decodeBody(t, w, &initiate)
	if initiate.Token == nil || *initiate.Token == "" {
		t.Fatal("dev mode should echo the verification token")
	}

	// the scoped token must not work as an access token
	w = f.do(t, http.MethodPost, "/auth/validate-token", nil, bearer(*initiate.Token))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("scoped token must be rejected as access token, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/auth/verify-email?token="+*initiate.Token, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("confirm returned %d: %s", w.Code, w.Body.String())
	}

	// single use: replaying the same token fails
	w = f.do(t, http.MethodGet, "/auth/verify-email?token="+*initiate.Token, nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on token replay, got %d", w.Code)
	}

	// once verified, initiate reports the state without a new token
	w = f.do(t, http.MethodGet, "/auth/verify-email/initiate", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("initiate after verify returned %d", w.Code)
	}
	var again struct {
		Message string  `json:"message"`
		Token   *string `json:"verification_token"`
	}
	decodeBody(t, w, &again)
	if again.Message != "email already verified" || again.Token != nil {
		t.Fatalf("unexpected repeat initiate payload: %+v", again)
	}
}

func TestConfirmRequiresToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/auth/verify-email", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without token, got %d", w.Code)
	}
}

func TestForgotPasswordFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, "learner@example.com", testPassword)

	known := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]any{
		"email": "learner@example.com",
	}, nil)
	if known.Code != http.StatusOK {
		t.Fatalf("forgot-password returned %d: %s", known.Code, known.Body.String())
	}
	unknown := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]any{
		"email": "nobody@example.com",
	}, nil)
	if unknown.Code != http.StatusOK {
		t.Fatalf("forgot-password for unknown email returned %d", unknown.Code)
	}

	var knownResp, unknownResp struct {
		Message string  `json:"message"`
		Token   *string `json:"reset_token"`
	}
	decodeBody(t, known, &knownResp)
	decodeBody(t, unknown, &unknownResp)
	if knownResp.Message != unknownResp.Message {
		t.Fatalf("messages must not reveal account existence: %q vs %q", knownResp.Message, unknownResp.Message)
	}
	if knownResp.Token == nil {
		t.Fatal("dev mode should echo reset token for known account")
	}
	if unknownResp.Token != nil {
		t.Fatal("unknown email must never receive a token")
	}

	const rotated = "An0ther!FreshSecret#41"
	w := f.do(t, http.MethodPost, "/auth/reset-password", map[string]any{
		"token":        *knownResp.Token,
		"new_password": rotated,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reset-password returned %d: %s", w.Code, w.Body.String())
	}

	// single use
	w = f.do(t, http.MethodPost, "/auth/reset-password", map[string]any{
		"token":        *knownResp.Token,
		"new_password": "Yet!An0therSecret#99",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on reset token replay, got %d", w.Code)
	}

	// old password no longer works, new one does
	old := f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "learner@example.com",
		"password": testPassword,
	}, nil)
	if old.Code != http.StatusUnauthorized {
		t.Fatalf("old password should be rejected, got %d", old.Code)
	}
	f.login(t, "learner@example.com", rotated)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "learner@example.com", testPassword)
	access, _ := f.login(t, "learner@example.com", testPassword)

	w := f.do(t, http.MethodPost, "/auth/change-password", map[string]any{
		"current_password": "wrong-password",
		"new_password":     "An0ther!FreshSecret#41",
	}, bearer(access))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong current password, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/auth/change-password", map[string]any{
		"current_password": testPassword,
		"new_password":     "An0ther!FreshSecret#41",
	}, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("change-password returned %d: %s", w.Code, w.Body.String())
	}

	f.login(t, "learner@example.com", "An0ther!FreshSecret#41")
}

func TestProfileLifecycle(t *testing.T) {
	f := newFixture(t)
	userID := f.register(t, "learner@example.com", testPassword)
	access, _ := f.login(t, "learner@example.com", testPassword)

	w := f.do(t, http.MethodGet, "/auth/profile", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("get profile returned %d: %s", w.Code, w.Body.String())
	}
	var profile struct {
		ID       string  `json:"id"`
		Email    string  `json:"email"`
		Username *string `json:"username"`
	}
	decodeBody(t, w, &profile)
	if profile.ID != userID || profile.Email != "learner@example.com" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	w = f.do(t, http.MethodPut, "/auth/profile", map[string]any{
		"username":       "polyglot",
		"language_level": "B2",
	}, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("update profile returned %d: %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &profile)
	if profile.Username == nil || *profile.Username != "polyglot" {
		t.Fatalf("username not updated: %+v", profile)
	}

	w = f.do(t, http.MethodGet, "/auth/profile", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("profile without token should be 401, got %d", w.Code)
	}
}

func TestUpdateEmailResetsVerification(t *testing.T) {
	f := newFixture(t)
	userID := f.register(t, "learner@example.com", testPassword)
	access, _ := f.login(t, "learner@example.com", testPassword)

	// verify first so the reset is observable
	w := f.do(t, http.MethodGet, "/auth/verify-email/initiate", nil, bearer(access))
	var initiate struct {
		Token *string `json:"verification_token"`
	}
	decodeBody(t, w, &initiate)
	if initiate.Token == nil {
		t.Fatal("expected verification token")
	}
	if got := f.do(t, http.MethodGet, "/auth/verify-email?token="+*initiate.Token, nil, nil); got.Code != http.StatusOK {
		t.Fatalf("confirm returned %d", got.Code)
	}

	w = f.do(t, http.MethodPut, "/auth/profile/email", map[string]any{
		"email": "fresh@example.com",
	}, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("update email returned %d: %s", w.Code, w.Body.String())
	}

	stored, err := f.repo.GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("user should still exist: %v", err)
	}
	if stored.Email != "fresh@example.com" {
		t.Fatalf("email not updated: %q", stored.Email)
	}
	if stored.EmailVerified {
		t.Fatal("changing email must reset verification")
	}
}

func TestDeactivateAccountBlocksAuth(t *testing.T) {
	f := newFixture(t)
	f.register(t, "learner@example.com", testPassword)
	access, _ := f.login(t, "learner@example.com", testPassword)

	w := f.do(t, http.MethodDelete, "/auth/profile", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate returned %d: %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/auth/profile", nil, bearer(access))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("inactive account should get 401, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "learner@example.com",
		"password": testPassword,
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("inactive account login should be 401, got %d", w.Code)
	}
}

func TestDeletePermanently(t *testing.T) {
	f := newFixture(t)
	userID := f.register(t, "learner@example.com", testPassword)
	access, _ := f.login(t, "learner@example.com", testPassword)

	w := f.do(t, http.MethodDelete, "/auth/profile/permanent", nil, bearer(access))
	if w.Code != http.StatusOK {
		t.Fatalf("permanent delete returned %d: %s", w.Code, w.Body.String())
	}

	if _, err := f.repo.GetByID(context.Background(), userID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}

	w = f.do(t, http.MethodPost, "/auth/validate-token", nil, bearer(access))
	if w.Code != http.StatusNotFound {
		t.Fatalf("validation for deleted user should be 404, got %d", w.Code)
	}
}

func TestTraceIDHeaderPropagated(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/healthz", nil, nil)
	if w.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected X-Trace-ID response header")
	}
}

func TestRequestBodyMustBeJSON(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
}

var _ port.UserRepository = (*memoryUserRepo)(nil)
