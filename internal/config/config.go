// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. When empty the server and worker fall back to in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis address for the session denylist and verification tokens. Empty uses an in-memory store.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// AppURL is the public base URL used in verification links (e.g. https://auth.example.com).
	AppURL string `mapstructure:"APP_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// AuthJWTSecret signs access tokens.
	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`
	// AuthJWTExpiresIn is the access token lifetime (e.g. "15m").
	AuthJWTExpiresIn string `mapstructure:"AUTH_JWT_TOKEN_EXPIRES_IN"`
	// AuthRefreshSecret signs refresh tokens. Must differ from AuthJWTSecret.
	AuthRefreshSecret string `mapstructure:"AUTH_REFRESH_SECRET"`
	// AuthRefreshExpiresIn is the refresh token lifetime (e.g. "7d").
	AuthRefreshExpiresIn string `mapstructure:"AUTH_REFRESH_TOKEN_EXPIRES_IN"`
	// AuthConfirmEmailSecret signs email-verification tokens.
	AuthConfirmEmailSecret string `mapstructure:"AUTH_CONFIRM_EMAIL_SECRET"`
	// AuthConfirmEmailExpiresIn is the verification token lifetime (e.g. "1d").
	AuthConfirmEmailExpiresIn string `mapstructure:"AUTH_CONFIRM_EMAIL_TOKEN_EXPIRES_IN"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// Mail transport. When MailHost is empty the worker logs messages instead of sending them.
	MailHost     string `mapstructure:"MAIL_HOST"`
	MailPort     int    `mapstructure:"MAIL_PORT"`
	MailUser     string `mapstructure:"MAIL_USER"`
	MailPassword string `mapstructure:"MAIL_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`

	// Email queue tuning.
	EmailQueueMaxAttempts     int    `mapstructure:"EMAIL_QUEUE_MAX_ATTEMPTS"`
	EmailQueueBackoff         string `mapstructure:"EMAIL_QUEUE_BACKOFF"`
	EmailQueueRateEvery       string `mapstructure:"EMAIL_QUEUE_RATE_EVERY"`
	EmailQueueDrainDelay      string `mapstructure:"EMAIL_QUEUE_DRAIN_DELAY"`
	EmailQueueStalledInterval string `mapstructure:"EMAIL_QUEUE_STALLED_INTERVAL"`
	// EmailQueueMaxStalled is how many times a stalled job is requeued before it is failed.
	EmailQueueMaxStalled int `mapstructure:"EMAIL_QUEUE_MAX_STALLED"`
	// EmailQueueKeepCompleted is the number of completed jobs retained; older ones are pruned.
	EmailQueueKeepCompleted int `mapstructure:"EMAIL_QUEUE_KEEP_COMPLETED"`
	// EmailQueueCompletedMaxAge is how long completed jobs are retained (e.g. "24h").
	EmailQueueCompletedMaxAge string `mapstructure:"EMAIL_QUEUE_COMPLETED_MAX_AGE"`

	// OTLPEndpoint is the OpenTelemetry collector (e.g. http://localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// OTelServiceName overrides the default service.name resource attribute.
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, the worker publishes email job events to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EmailEventsKafkaTopic is the Kafka topic for email job events.
	EmailEventsKafkaTopic string `mapstructure:"EMAIL_EVENTS_KAFKA_TOPIC"`
	// MetricsAddr is where the worker serves Prometheus /metrics (e.g. ":9100"). Empty disables it.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("APP_URL", "http://localhost:8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("AUTH_JWT_TOKEN_EXPIRES_IN", "15m")
	v.SetDefault("AUTH_REFRESH_SECRET", "")
	v.SetDefault("AUTH_REFRESH_TOKEN_EXPIRES_IN", "7d")
	v.SetDefault("AUTH_CONFIRM_EMAIL_SECRET", "")
	v.SetDefault("AUTH_CONFIRM_EMAIL_TOKEN_EXPIRES_IN", "1d")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("MAIL_HOST", "")
	v.SetDefault("MAIL_PORT", 587)
	v.SetDefault("MAIL_USER", "")
	v.SetDefault("MAIL_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@localhost")
	v.SetDefault("EMAIL_QUEUE_MAX_ATTEMPTS", 3)
	v.SetDefault("EMAIL_QUEUE_BACKOFF", "60s")
	v.SetDefault("EMAIL_QUEUE_RATE_EVERY", "150ms")
	v.SetDefault("EMAIL_QUEUE_DRAIN_DELAY", "300ms")
	v.SetDefault("EMAIL_QUEUE_STALLED_INTERVAL", "5m")
	v.SetDefault("EMAIL_QUEUE_MAX_STALLED", 1)
	v.SetDefault("EMAIL_QUEUE_KEEP_COMPLETED", 100)
	v.SetDefault("EMAIL_QUEUE_COMPLETED_MAX_AGE", "24h")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EMAIL_EVENTS_KAFKA_TOPIC", "authgate-email-events")
	v.SetDefault("METRICS_ADDR", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.EmailQueueMaxAttempts < 1 {
		return nil, errors.New("config: EMAIL_QUEUE_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.EmailQueueMaxStalled < 1 {
		return nil, errors.New("config: EMAIL_QUEUE_MAX_STALLED must be at least 1")
	}

	if cfg.Env == "production" {
		if cfg.AuthJWTSecret == "" || cfg.AuthRefreshSecret == "" || cfg.AuthConfirmEmailSecret == "" {
			return nil, errors.New("config: AUTH_JWT_SECRET, AUTH_REFRESH_SECRET and AUTH_CONFIRM_EMAIL_SECRET must be set when APP_ENV=production")
		}
	}
	if cfg.AuthJWTSecret != "" && cfg.AuthJWTSecret == cfg.AuthRefreshSecret {
		return nil, errors.New("config: AUTH_REFRESH_SECRET must differ from AUTH_JWT_SECRET")
	}

	return &cfg, nil
}

// AuthEnabled reports whether all three signing secrets are configured.
func (c *Config) AuthEnabled() bool {
	return c.AuthJWTSecret != "" && c.AuthRefreshSecret != "" && c.AuthConfirmEmailSecret != ""
}

// AccessTTL parses AuthJWTExpiresIn. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return durationOr(c.AuthJWTExpiresIn, 15*time.Minute)
}

// RefreshTTL parses AuthRefreshExpiresIn. Returns 7d if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return durationOr(c.AuthRefreshExpiresIn, 7*24*time.Hour)
}

// ConfirmEmailTTL parses AuthConfirmEmailExpiresIn. Returns 1d if unset or invalid.
func (c *Config) ConfirmEmailTTL() time.Duration {
	return durationOr(c.AuthConfirmEmailExpiresIn, 24*time.Hour)
}

// EmailQueueBackoffBase returns the base retry delay. Returns 60s if unset or invalid.
func (c *Config) EmailQueueBackoffBase() time.Duration {
	return durationOr(c.EmailQueueBackoff, time.Minute)
}

// EmailQueueRateInterval returns the minimum spacing between job starts. Returns 150ms if unset or invalid.
func (c *Config) EmailQueueRateInterval() time.Duration {
	return durationOr(c.EmailQueueRateEvery, 150*time.Millisecond)
}

// EmailQueueDrainDelayDuration returns the idle poll interval. Returns 300ms if unset or invalid.
func (c *Config) EmailQueueDrainDelayDuration() time.Duration {
	return durationOr(c.EmailQueueDrainDelay, 300*time.Millisecond)
}

// EmailQueueStalledIntervalDuration returns the stall check period. Returns 5m if unset or invalid.
func (c *Config) EmailQueueStalledIntervalDuration() time.Duration {
	return durationOr(c.EmailQueueStalledInterval, 5*time.Minute)
}

// EmailQueueCompletedMaxAgeDuration returns the completed job retention. Returns 24h if unset or invalid.
func (c *Config) EmailQueueCompletedMaxAgeDuration() time.Duration {
	return durationOr(c.EmailQueueCompletedMaxAge, 24*time.Hour)
}

// ServiceName returns OTelServiceName, or fallback when it is unset.
func (c *Config) ServiceName(fallback string) string {
	if c == nil || strings.TrimSpace(c.OTelServiceName) == "" {
		return fallback
	}
	return c.OTelServiceName
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if event publishing is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ParseDuration is time.ParseDuration with a leading day component ("7d", "1d12h").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, 'd'); i > 0 {
		days, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, errors.New("config: invalid duration " + strconv.Quote(s))
		}
		d := time.Duration(days) * 24 * time.Hour
		if rest := s[i+1:]; rest != "" {
			r, err := time.ParseDuration(rest)
			if err != nil {
				return 0, err
			}
			d += r
		}
		return d, nil
	}
	return time.ParseDuration(s)
}
