package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codarkat/rumai/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserSummary is the minimal identity view returned by token validation.
type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// UserProfile is the full profile view returned by profile endpoints.
type UserProfile struct {
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

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Email         string  `json:"email" binding:"required,email"`
	Password      string  `json:"password" binding:"required,min=8"`
	Username      *string `json:"username,omitempty"`
	FullName      *string `json:"full_name,omitempty"`
	Age           *int    `json:"age,omitempty"`
	Gender        *string `json:"gender,omitempty"`
	LanguageLevel *string `json:"language_level,omitempty"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Message string      `json:"message"`
	User    UserProfile `json:"user"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPairResponse carries access and refresh tokens.
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// RefreshRequest represents the payload to refresh an access token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ValidateTokenResponse conveys token validation results.
type ValidateTokenResponse struct {
	Valid bool        `json:"valid"`
	User  UserSummary `json:"user"`
}

// InternalTokenResponse carries a service-to-service token. It is only
// written to internal-secret guarded responses.
type InternalTokenResponse struct {
	InternalToken string `json:"internal_token"`
	TokenType     string `json:"token_type"`
}

// VerificationInitiateResponse is returned when verification starts.
type VerificationInitiateResponse struct {
	Message string `json:"message"`
	// DevToken is only populated in development mode.
	DevToken  *string    `json:"verification_token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ForgotPasswordRequest starts a password reset.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ForgotPasswordResponse is intentionally identical for known and unknown
// emails, except for the development-only token echo.
type ForgotPasswordResponse struct {
	Message string `json:"message"`
	// DevToken is only populated in development mode.
	DevToken  *string    `json:"reset_token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ResetPasswordRequest redeems a reset token.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// ChangePasswordRequest rotates the password of an authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ProfileUpdateRequest carries partial profile updates; absent fields keep
// their stored values.
type ProfileUpdateRequest struct {
	Username      *string `json:"username,omitempty"`
	FullName      *string `json:"full_name,omitempty"`
	Age           *int    `json:"age,omitempty"`
	Gender        *string `json:"gender,omitempty"`
	LanguageLevel *string `json:"language_level,omitempty"`
}

// EmailUpdateRequest changes the account email.
type EmailUpdateRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newUserSummary(user domain.User) UserSummary {
	return UserSummary{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.UsernameOrEmpty(),
	}
}

func newUserProfile(user domain.User) UserProfile {
	return UserProfile{
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
