package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codarkat/rumai/internal/infra/telemetry"
	"github.com/codarkat/rumai/internal/transport/http/middleware"
	"github.com/codarkat/rumai/internal/usecase"
)

// TokenHandler exposes the authoritative token validation endpoint other
// services delegate to, plus internal token issuance for trusted gateways.
type TokenHandler struct {
	tokens  *usecase.TokenService
	auth    *usecase.AuthService
	metrics *telemetry.Metrics
}

// NewTokenHandler constructs TokenHandler.
func NewTokenHandler(tokens *usecase.TokenService, auth *usecase.AuthService, metrics *telemetry.Metrics) *TokenHandler {
	return &TokenHandler{tokens: tokens, auth: auth, metrics: metrics}
}

// ValidateToken answers whether the presented bearer token is good and who
// it belongs to. Failure messages never say why a token was refused beyond
// the status code split.
func (h *TokenHandler) ValidateToken(c *gin.Context) {
	token, ok := middleware.ExtractBearerToken(c)
	if !ok {
		h.observeValidation("rejected")
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "missing or malformed authorization header"))
		return
	}

	user, err := h.tokens.ValidateToken(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUserNotFound):
			h.observeValidation("user_not_found")
			c.JSON(http.StatusNotFound, NewErrorResponse(c, "user not found"))
		case errors.Is(err, usecase.ErrInvalidAccessToken),
			errors.Is(err, usecase.ErrExpiredAccessToken),
			errors.Is(err, usecase.ErrTokenRevoked),
			errors.Is(err, usecase.ErrInactiveAccount):
			h.observeValidation("rejected")
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid or expired token"))
		default:
			h.observeValidation("error")
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "token validation failed"))
		}
		return
	}

	h.observeValidation("accepted")
	c.JSON(http.StatusOK, ValidateTokenResponse{
		Valid: true,
		User:  newUserSummary(*user),
	})
}

// IssueInternalToken signs a service-to-service assertion. The route is
// mounted behind the internal secret guard and never exposed publicly.
func (h *TokenHandler) IssueInternalToken(c *gin.Context) {
	subject := c.Query("service")
	if subject == "" {
		subject = "api_gateway"
	}

	token, err := h.auth.IssueInternalToken(c.Request.Context(), subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to issue internal token"))
		return
	}

	if h.metrics != nil {
		h.metrics.TokensIssued.WithLabelValues("internal").Inc()
	}

	c.JSON(http.StatusOK, InternalTokenResponse{
		InternalToken: token,
		TokenType:     "bearer",
	})
}

func (h *TokenHandler) observeValidation(outcome string) {
	if h.metrics != nil {
		h.metrics.ValidationsTotal.WithLabelValues(outcome).Inc()
	}
}
