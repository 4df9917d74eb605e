package security

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codarkat/rumai/internal/core/domain"
)

// Token scopes for single-purpose tokens.
const (
	ScopeEmailVerification = "email_verification"
	ScopePasswordReset     = "password_reset"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures, and tokens
	// signed in a different trust domain.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrExpiredToken indicates a structurally valid token past its exp.
	ErrExpiredToken = errors.New("jwt: token expired")
	// ErrWrongScope indicates a scoped token presented for a different purpose.
	ErrWrongScope = errors.New("jwt: wrong token scope")
)

const (
	defaultAccessTokenTTL   = 30 * time.Minute
	defaultRefreshTokenTTL  = 7 * 24 * time.Hour
	defaultInternalTokenTTL = 10 * time.Minute
)

// Claims carried by user-domain tokens. Subject holds the account email.
type Claims struct {
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Scope    string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// RequireScope returns ErrWrongScope unless the claims carry the given scope.
func (c *Claims) RequireScope(scope string) error {
	if c.Scope != scope {
		return ErrWrongScope
	}
	return nil
}

func hmacMethod(algorithm string) (*jwt.SigningMethodHMAC, error) {
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("jwt: unsupported algorithm %q", algorithm)
	}
}

// UserTokenCodec signs and verifies tokens in the user-facing trust domain:
// access tokens, refresh tokens, and scoped single-purpose tokens. It is a
// distinct type from InternalTokenCodec so the wrong secret can never be
// applied by accident.
type UserTokenCodec struct {
	secret     []byte
	method     *jwt.SigningMethodHMAC
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewUserTokenCodec constructs the user-domain codec. The secret is required.
func NewUserTokenCodec(secret, algorithm string, accessTTL, refreshTTL time.Duration) (*UserTokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt: user token secret is required")
	}

	method, err := hmacMethod(algorithm)
	if err != nil {
		return nil, err
	}

	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTokenTTL
	}

	return &UserTokenCodec{
		secret:     []byte(secret),
		method:     method,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the time source, primarily for tests.
func (c *UserTokenCodec) WithClock(now func() time.Time) *UserTokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// AccessTokenTTL reports the configured access token lifetime.
func (c *UserTokenCodec) AccessTokenTTL() time.Duration {
	return c.accessTTL
}

// IssueAccessToken issues a short-lived access token for the user. A
// non-positive ttl falls back to the configured access lifetime.
func (c *UserTokenCodec) IssueAccessToken(user domain.User, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.accessTTL
	}
	return c.sign(userClaims(user, "", c.now().UTC(), ttl))
}

// IssueRefreshToken issues a long-lived refresh token for the user.
func (c *UserTokenCodec) IssueRefreshToken(user domain.User) (string, error) {
	return c.sign(userClaims(user, "", c.now().UTC(), c.refreshTTL))
}

// IssueScopedToken issues a single-purpose token bound to the email address.
func (c *UserTokenCodec) IssueScopedToken(email, scope string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", errors.New("jwt: email is required")
	}
	if strings.TrimSpace(scope) == "" {
		return "", errors.New("jwt: scope is required")
	}
	if ttl <= 0 {
		return "", errors.New("jwt: ttl must be positive")
	}

	now := c.now().UTC()
	return c.sign(&Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
}

// Decode verifies the signature and expiry and returns the claims.
func (c *UserTokenCodec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (c *UserTokenCodec) sign(claims *Claims) (string, error) {
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

func userClaims(user domain.User, scope string, now time.Time, ttl time.Duration) *Claims {
	return &Claims{
		UserID:   user.ID,
		Username: user.UsernameOrEmpty(),
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// InternalClaims carried by service-to-service tokens.
type InternalClaims struct {
	jwt.RegisteredClaims
}

// InternalTokenCodec signs and verifies short-lived service-to-service
// tokens under a secret and algorithm decoupled from the user-facing domain.
type InternalTokenCodec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewInternalTokenCodec constructs the internal codec. Construction fails
// when the secret is empty or matches the user-facing secret, keeping the
// two trust domains cryptographically separate.
func NewInternalTokenCodec(secret, userSecret, algorithm, issuer string, ttl time.Duration) (*InternalTokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt: internal token secret is required")
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(userSecret)) == 1 {
		return nil, errors.New("jwt: internal token secret must differ from the user token secret")
	}

	if strings.TrimSpace(algorithm) == "" {
		algorithm = "HS512"
	}
	method, err := hmacMethod(algorithm)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(issuer) == "" {
		issuer = "auth_service"
	}
	if ttl <= 0 {
		ttl = defaultInternalTokenTTL
	}

	return &InternalTokenCodec{
		secret: []byte(secret),
		method: method,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the time source, primarily for tests.
func (c *InternalTokenCodec) WithClock(now func() time.Time) *InternalTokenCodec {
	if now != nil {
		c.now = now
	}
	return c
}

// Issue signs a service assertion for the given subject.
func (c *InternalTokenCodec) Issue(subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("jwt: subject is required")
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	now := c.now().UTC()
	claims := &InternalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign internal token: %w", err)
	}

	return signed, nil
}

// Decode verifies signature, expiry, and issuer.
func (c *InternalTokenCodec) Decode(tokenString string) (*InternalClaims, error) {
	claims := &InternalClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != c.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now), jwt.WithIssuer(c.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
