package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codarkat/rumai/internal/core/domain"
	"github.com/codarkat/rumai/internal/usecase"
)

// ErrorResponse matches the handlers.ErrorResponse structure.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

const (
	// BearerTokenKey is the gin context key holding the raw bearer token.
	BearerTokenKey = "bearer_token"
	// InternalSecretHeader authenticates gateway calls to internal endpoints.
	InternalSecretHeader = "X-Internal-Secret"
)

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization bearer token end to end and stores
// the resolved user plus the raw token in the request context.
func RequireAuth(tokens *usecase.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := ExtractBearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing or malformed authorization header"))
			return
		}

		user, err := tokens.ValidateToken(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, usecase.ErrExpiredAccessToken),
				errors.Is(err, usecase.ErrInvalidAccessToken),
				errors.Is(err, usecase.ErrTokenRevoked):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid or expired token"))
			case errors.Is(err, usecase.ErrUserNotFound):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid or expired token"))
			case errors.Is(err, usecase.ErrInactiveAccount):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "account inactive"))
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					newErrorResponse(c, "authentication failed"))
			}
			return
		}

		c.Set(UserKey, user)
		c.Set(BearerTokenKey, token)

		c.Next()
	}
}

// RequireBearerToken stores a well-formed bearer token in the context
// without validating it. Revocation endpoints use this so a token that was
// already blacklisted can still be presented for logout.
func RequireBearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := ExtractBearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing or malformed authorization header"))
			return
		}

		c.Set(BearerTokenKey, token)
		c.Next()
	}
}

// RequireInternalSecret guards endpoints reserved for trusted gateways. The
// shared secret travels in a header and is compared in constant time.
func RequireInternalSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusNotFound,
				newErrorResponse(c, "not found"))
			return
		}

		presented := c.GetHeader(InternalSecretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid internal credentials"))
			return
		}

		c.Next()
	}
}

// ExtractBearerToken pulls the token from the Authorization header.
func ExtractBearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// AuthenticatedUser retrieves the user stored by RequireAuth.
func AuthenticatedUser(c *gin.Context) (*domain.User, bool) {
	value, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}

// BearerToken retrieves the raw token stored by RequireAuth.
func BearerToken(c *gin.Context) (string, bool) {
	value, exists := c.Get(BearerTokenKey)
	if !exists {
		return "", false
	}
	token, ok := value.(string)
	return token, ok && token != ""
}
