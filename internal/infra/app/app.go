package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/codarkat/rumai/internal/core/port"
	"github.com/codarkat/rumai/internal/infra/config"
	"github.com/codarkat/rumai/internal/infra/database"
	kafkainfra "github.com/codarkat/rumai/internal/infra/kafka"
	"github.com/codarkat/rumai/internal/infra/logger"
	redisinfra "github.com/codarkat/rumai/internal/infra/redis"
	"github.com/codarkat/rumai/internal/infra/security"
	"github.com/codarkat/rumai/internal/infra/telemetry"
	"github.com/codarkat/rumai/internal/repository/memory"
	postgresrepo "github.com/codarkat/rumai/internal/repository/postgres"
	redisrepo "github.com/codarkat/rumai/internal/repository/redis"
	"github.com/codarkat/rumai/internal/transport/http/middleware"
	"github.com/codarkat/rumai/internal/transport/http/routes"
	"github.com/codarkat/rumai/internal/usecase"
)

// Application owns every long-lived resource of the auth service and the
// wired HTTP engine. Build it with New and drive it with Run.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
	sweeper  *memory.RevocationRegistry
}

// New wires configuration into a runnable application. Postgres is required;
// Redis and Kafka degrade to in-process fallbacks so a developer can run the
// service with nothing but a database.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	codec, err := security.NewUserTokenCodec(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init user token codec: %w", err)
	}
	internalCodec, err := security.NewInternalTokenCodec(cfg.InternalJWT.Secret, cfg.JWT.Secret, cfg.InternalJWT.Algorithm, cfg.InternalJWT.Issuer, cfg.InternalJWT.TTL)
	if err != nil {
		return nil, fmt.Errorf("init internal token codec: %w", err)
	}

	app := &Application{
		cfg:    cfg,
		logger: log,
		pool:   pool,
		tracer: tracer,
	}

	var (
		revocations  port.RevocationRegistry
		profileCache port.Cache
		rateLimiter  *middleware.RateLimiter
	)

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		log.Warn("redis unavailable, falling back to in-memory revocation store",
			zap.Error(err),
		)
		registry := memory.NewRevocationRegistry()
		app.sweeper = registry
		revocations = registry
	} else {
		app.redis = redisClient
		revocations = redisrepo.NewRevocationRegistry(redisClient.Client(), cfg.Redis.RevocationPrefix)
		profileCache = redisrepo.NewCache(redisClient.Client(), cfg.Redis.CachePrefix)

		rateLimitWindow := cfg.RateLimit.WindowDuration
		if rateLimitWindow <= 0 {
			rateLimitWindow = time.Minute
		}
		rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), cfg.Redis.RateLimitPrefix, rateLimitWindow*2)
		rateLimiter = middleware.NewRateLimiter(rateLimitStore, log)
	}

	var events port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			events = kafkainfra.NewStubPublisher(log)
		} else {
			app.producer = producer
			events = kafkainfra.NewEventPublisher(producer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		events = kafkainfra.NewStubPublisher(log)
	}

	validator := security.DefaultPasswordValidator()
	repos := postgresrepo.NewRepositories(pool)

	cacheTTL := cfg.Redis.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	services := routes.ServiceSet{
		Auth:          usecase.NewAuthService(repos.Users, hasher, codec, internalCodec, revocations, log),
		Registration:  usecase.NewRegistrationService(repos.Users, hasher, validator, events, log),
		Tokens:        usecase.NewTokenService(codec, repos.Users, revocations, events, log),
		Verification:  usecase.NewVerificationService(repos.Users, codec, revocations, log, cfg.JWT.VerificationTokenTTL),
		PasswordReset: usecase.NewPasswordResetService(repos.Users, codec, hasher, validator, revocations, events, profileCache, log, cfg.JWT.ResetTokenTTL),
		Profiles:      usecase.NewProfileService(repos.Users, profileCache, log, cacheTTL),
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     telemetry.NewMetrics(),
		Services:    services,
		Database:    pool,
	}
	if app.redis != nil {
		deps.Cache = app.redis
	}

	app.engine = routes.Register(deps)
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully and
// releases every resource New acquired.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = a.tracer.Shutdown(shutdownCtx)
		}
	}()

	if a.sweeper != nil {
		a.sweeper.StartSweeper(ctx, a.cfg.Revocation.SweepInterval)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
