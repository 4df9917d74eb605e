package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/infra/config"
	"github.com/codarkat/rumai/internal/infra/telemetry"
	"github.com/codarkat/rumai/internal/transport/http/handlers"
	"github.com/codarkat/rumai/internal/transport/http/middleware"
	"github.com/codarkat/rumai/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Registration  *usecase.RegistrationService
	Tokens        *usecase.TokenService
	Verification  *usecase.VerificationService
	PasswordReset *usecase.PasswordResetService
	Profiles      *usecase.ProfileService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *telemetry.Metrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.CORS.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	authMiddleware := middleware.RequireAuth(deps.Services.Tokens)

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)
	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	isDev := deps.Config.App.IsDevelopment()
	dispatcher := handlers.NewLoggingNotificationDispatcher(deps.Logger)

	auth := r.Group("/auth")

	authHandler := handlers.NewAuthHandler(
		deps.Services.Auth,
		deps.Services.Registration,
		deps.Services.Tokens,
		handlers.WithMetrics(deps.Metrics),
	)
	authHandler.RegisterRoutes(auth, loginRateLimit(deps)...)

	tokenHandler := handlers.NewTokenHandler(deps.Services.Tokens, deps.Services.Auth, deps.Metrics)
	auth.POST("/validate-token", tokenHandler.ValidateToken)
	auth.POST("/internal-token",
		middleware.RequireInternalSecret(deps.Config.InternalJWT.Secret),
		tokenHandler.IssueInternalToken,
	)

	verificationHandler := handlers.NewVerificationHandler(deps.Services.Verification, dispatcher, isDev)
	auth.GET("/verify-email/initiate", authMiddleware, verificationHandler.Initiate)
	auth.GET("/verify-email", verificationHandler.Confirm)

	passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset, dispatcher, isDev)
	forgotChain := append(forgotPasswordRateLimit(deps), passwordHandler.ForgotPassword)
	auth.POST("/forgot-password", forgotChain...)
	auth.POST("/reset-password", passwordHandler.ResetPassword)
	auth.POST("/change-password", authMiddleware, passwordHandler.ChangePassword)

	profileHandler := handlers.NewProfileHandler(deps.Services.Profiles)
	profileHandler.RegisterRoutes(auth, authMiddleware)

	return r
}

func loginRateLimit(deps Dependencies) []gin.HandlerFunc {
	return rateLimitRule(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts)
}

func forgotPasswordRateLimit(deps Dependencies) []gin.HandlerFunc {
	return rateLimitRule(deps, "forgot_password_ip", deps.Config.RateLimit.PasswordResetMaxAttempts)
}

func rateLimitRule(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
