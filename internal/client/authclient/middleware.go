package authclient

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserContextKey is where RequireRemoteAuth stores the ValidatedUser.
	UserContextKey = "auth_user"
)

type middlewareError struct {
	Error string `json:"error"`
}

// RequireRemoteAuth authenticates the request against the remote auth
// service. Requests proceed only when the service vouches for the token;
// an unreachable service denies with 503.
func RequireRemoteAuth(validator *Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				middlewareError{Error: "missing or malformed authorization header"})
			return
		}

		user, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenRejected):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					middlewareError{Error: "invalid access token"})
			case errors.Is(err, ErrAuthServiceUnavailable):
				c.AbortWithStatusJSON(http.StatusServiceUnavailable,
					middlewareError{Error: "authentication service unavailable"})
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					middlewareError{Error: "authentication failed"})
			}
			return
		}

		c.Set(UserContextKey, *user)
		c.Next()
	}
}

// UserFromContext retrieves the identity stored by RequireRemoteAuth.
func UserFromContext(c *gin.Context) (ValidatedUser, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return ValidatedUser{}, false
	}
	user, ok := value.(ValidatedUser)
	return user, ok
}

func bearerToken(header string) (string, bool) {
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
