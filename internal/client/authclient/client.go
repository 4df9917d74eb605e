// Package authclient is the consumer-side SDK for the auth service. Other
// services embed it to validate bearer tokens without sharing the database.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/infra/security"
)

var (
	// ErrTokenRejected indicates the auth service examined the token and
	// refused it.
	ErrTokenRejected = errors.New("token rejected by auth service")
	// ErrAuthServiceUnavailable indicates the auth service could not be
	// reached or answered abnormally. Callers must treat this as a denial.
	ErrAuthServiceUnavailable = errors.New("auth service unavailable")
)

const defaultTimeout = 5 * time.Second

// ValidatedUser is the identity the auth service vouches for.
type ValidatedUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// Validator validates bearer tokens against a remote auth service. An
// optional local codec pre-screens tokens so obviously bad ones never
// generate network traffic.
type Validator struct {
	baseURL string
	client  *http.Client
	codec   *security.UserTokenCodec
	logger  *zap.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(v *Validator) {
		if client != nil {
			v.client = client
		}
	}
}

// WithLocalCodec enables local signature and expiry screening before the
// remote call. The remote service stays authoritative for revocation and
// account state.
func WithLocalCodec(codec *security.UserTokenCodec) Option {
	return func(v *Validator) {
		v.codec = codec
	}
}

// WithLogger attaches a logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(v *Validator) {
		if log != nil {
			v.logger = log
		}
	}
}

// New constructs a Validator for the auth service at baseURL.
func New(baseURL string, opts ...Option) (*Validator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("auth service base URL is required")
	}

	v := &Validator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

type validateResponse struct {
	Valid bool          `json:"valid"`
	User  ValidatedUser `json:"user"`
}

// Validate checks the token with the auth service and returns the identity
// it belongs to. Unreachable or misbehaving auth service fails closed with
// ErrAuthServiceUnavailable; no retries are attempted.
func (v *Validator) Validate(ctx context.Context, token string) (*ValidatedUser, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenRejected
	}

	if v.codec != nil {
		if _, err := v.codec.Decode(token); err != nil {
			return nil, ErrTokenRejected
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/auth/validate-token", bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Warn("auth service request failed", zap.Error(err))
		return nil, ErrAuthServiceUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var payload validateResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			v.logger.Warn("auth service sent an undecodable response", zap.Error(err))
			return nil, ErrAuthServiceUnavailable
		}
		if !payload.Valid || payload.User.ID == "" {
			return nil, ErrTokenRejected
		}
		return &payload.User, nil
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusNotFound:
		return nil, ErrTokenRejected
	default:
		v.logger.Warn("auth service answered abnormally", zap.Int("status", resp.StatusCode))
		return nil, ErrAuthServiceUnavailable
	}
}
