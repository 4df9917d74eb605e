package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App         AppSettings         `mapstructure:"app"`
	Postgres    PostgresSettings    `mapstructure:"postgres"`
	Redis       RedisSettings       `mapstructure:"redis"`
	Kafka       KafkaSettings       `mapstructure:"kafka"`
	JWT         JWTSettings         `mapstructure:"jwt"`
	InternalJWT InternalJWTSettings `mapstructure:"internal_jwt"`
	CORS        CORSSettings        `mapstructure:"cors"`
	Telemetry   TelemetrySettings   `mapstructure:"telemetry"`
	RateLimit   RateLimitSettings   `mapstructure:"rate_limit"`
	Argon2      Argon2Settings      `mapstructure:"argon2"`
	Revocation  RevocationSettings  `mapstructure:"revocation"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// IsDevelopment reports whether the service runs in a development environment.
// Dev mode echoes verification and reset tokens in HTTP responses instead of
// relying on a mail channel.
func (s AppSettings) IsDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(s.Env))
	return env == "development" || env == "dev" || env == "local"
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection, TLS, and key namespaces.
type RedisSettings struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	DB               int           `mapstructure:"db"`
	Password         string        `mapstructure:"password"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	RevocationPrefix string        `mapstructure:"revocation_prefix"`
	CachePrefix      string        `mapstructure:"cache_prefix"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	RateLimitPrefix  string        `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the Kafka producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint.
type RateLimitSettings struct {
	WindowDuration           time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts         int           `mapstructure:"login_max_attempts"`
	PasswordResetMaxAttempts int           `mapstructure:"password_reset_max_attempts"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// JWTSettings configures the user-facing token domain.
type JWTSettings struct {
	Secret               string        `mapstructure:"secret"`
	Algorithm            string        `mapstructure:"algorithm"`
	AccessTokenTTL       time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL      time.Duration `mapstructure:"refresh_token_ttl"`
	VerificationTokenTTL time.Duration `mapstructure:"verification_token_ttl"`
	ResetTokenTTL        time.Duration `mapstructure:"reset_token_ttl"`
}

// InternalJWTSettings configures the service-to-service token domain.
type InternalJWTSettings struct {
	Secret    string        `mapstructure:"secret"`
	Algorithm string        `mapstructure:"algorithm"`
	Issuer    string        `mapstructure:"issuer"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type RevocationSettings struct {
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	DefaultRetention time.Duration `mapstructure:"default_retention"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AUTH")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.revocation_prefix",
		"redis.cache_prefix",
		"redis.cache_ttl",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.secret",
		"jwt.algorithm",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"jwt.verification_token_ttl",
		"jwt.reset_token_ttl",
		"internal_jwt.secret",
		"internal_jwt.algorithm",
		"internal_jwt.issuer",
		"internal_jwt.ttl",
		"cors.allowed_origins",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.password_reset_max_attempts",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"revocation.sweep_interval",
		"revocation.default_retention",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces invariants that must hold before the service starts.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("config: jwt.secret is required")
	}
	if strings.TrimSpace(c.InternalJWT.Secret) == "" {
		return errors.New("config: internal_jwt.secret is required")
	}
	if c.JWT.Secret == c.InternalJWT.Secret {
		return errors.New("config: internal_jwt.secret must differ from jwt.secret")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auth-service")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8800)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "auth")
	v.SetDefault("postgres.password", "auth_password")
	v.SetDefault("postgres.database", "auth")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.revocation_prefix", "auth:revoked")
	v.SetDefault("redis.cache_prefix", "auth:profile")
	v.SetDefault("redis.cache_ttl", "5m")
	v.SetDefault("redis.rate_limit_prefix", "auth:ratelimit")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "auth")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.access_token_ttl", "30m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")
	v.SetDefault("jwt.verification_token_ttl", "30m")
	v.SetDefault("jwt.reset_token_ttl", "15m")

	v.SetDefault("internal_jwt.algorithm", "HS512")
	v.SetDefault("internal_jwt.issuer", "auth_service")
	v.SetDefault("internal_jwt.ttl", "10m")

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "auth-service")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.password_reset_max_attempts", 3)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("revocation.sweep_interval", "1m")
	v.SetDefault("revocation.default_retention", "24h")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AUTH_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
