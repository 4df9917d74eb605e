package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codarkat/rumai/internal/infra/security"
	"github.com/codarkat/rumai/internal/infra/telemetry"
	"github.com/codarkat/rumai/internal/transport/http/middleware"
	"github.com/codarkat/rumai/internal/usecase"
)

// AuthHandler exposes registration, login, refresh, and revocation endpoints.
type AuthHandler struct {
	auth         *usecase.AuthService
	registration *usecase.RegistrationService
	tokens       *usecase.TokenService
	metrics      *telemetry.Metrics
}

// AuthHandlerOption configures optional AuthHandler dependencies.
type AuthHandlerOption func(*AuthHandler)

// WithMetrics wires the token issuance counters.
func WithMetrics(metrics *telemetry.Metrics) AuthHandlerOption {
	return func(h *AuthHandler) {
		h.metrics = metrics
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, registration *usecase.RegistrationService, tokens *usecase.TokenService, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{
		auth:         auth,
		registration: registration,
		tokens:       tokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// RegisterRoutes binds authentication routes, applying optional middleware
// ahead of the login handler. Logout and revocation only require a
// well-formed bearer token: revoking an already revoked or expired token
// must keep succeeding.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	r.POST("/register", h.register)

	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	chain = append(chain, h.login)
	r.POST("/login", chain...)

	r.POST("/refresh-token", h.refresh)
	r.POST("/logout", middleware.RequireBearerToken(), h.logout)
	r.POST("/revoke-token", middleware.RequireBearerToken(), h.revokeToken)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	user, err := h.registration.Register(c.Request.Context(), usecase.RegisterInput{
		Email:         strings.TrimSpace(req.Email),
		Password:      req.Password,
		Username:      req.Username,
		FullName:      req.FullName,
		Age:           req.Age,
		Gender:        req.Gender,
		LanguageLevel: req.LanguageLevel,
	})
	if err != nil {
		h.respondRegistrationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "registration successful",
		User:    newUserProfile(*user),
	})
}

func (h *AuthHandler) respondRegistrationError(c *gin.Context, err error) {
	var policyErr *security.PasswordValidationError
	if errors.As(err, &policyErr) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
		return
	}

	RespondWithMappedError(c, err, []ErrorCase{
		{Err: usecase.ErrEmailTaken, Status: http.StatusBadRequest, Message: "email already registered"},
		{Err: usecase.ErrUsernameTaken, Status: http.StatusBadRequest, Message: "username already taken"},
	}, http.StatusInternalServerError, "failed to register user")
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusUnauthorized, Message: "account inactive"},
		}, http.StatusInternalServerError, "authentication failed")
		return
	}

	if h.metrics != nil {
		h.metrics.TokensIssued.WithLabelValues("access").Inc()
		h.metrics.TokensIssued.WithLabelValues("refresh").Inc()
	}

	c.JSON(http.StatusOK, TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
			{Err: usecase.ErrExpiredRefreshToken, Status: http.StatusUnauthorized, Message: "invalid or expired token"},
			{Err: usecase.ErrInactiveAccount, Status: http.StatusUnauthorized, Message: "account inactive"},
		}, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	if h.metrics != nil {
		h.metrics.TokensIssued.WithLabelValues("access").Inc()
	}

	c.JSON(http.StatusOK, TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	h.revokeBearer(c, "user_logout", "logged out successfully")
}

func (h *AuthHandler) revokeToken(c *gin.Context) {
	h.revokeBearer(c, "revoked_by_holder", "token revoked")
}

func (h *AuthHandler) revokeBearer(c *gin.Context, reason, message string) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "missing access token"))
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), token, reason); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke token"))
		return
	}

	if h.metrics != nil {
		h.metrics.TokensRevoked.Inc()
	}

	c.JSON(http.StatusOK, MessageResponse{Message: message})
}
