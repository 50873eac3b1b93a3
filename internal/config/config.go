// Package config loads the service's environment configuration into typed
// structs using struct tags, mirroring the grouping (server/CORS/logging/...)
// the rest of the codebase expects.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Worker   WorkerConfig
	Provider ProviderConfig
	CORS     CORSConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port string `env:"SERVER_PORT" envDefault:"8080"`
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
}

type DatabaseConfig struct {
	Host              string        `env:"DB_HOST" envDefault:"localhost"`
	Port              int           `env:"DB_PORT" envDefault:"5432"`
	Database          string        `env:"DB_NAME" envDefault:"payouts"`
	User              string        `env:"DB_USER" envDefault:"payouts"`
	Password          string        `env:"DB_PASSWORD" envDefault:"payouts_dev_pass"`
	SSLMode           string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxOpenConns      int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns      int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime   time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnMaxIdleTime   time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	HealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"30s"`
}

func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type KafkaConfig struct {
	Brokers           []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	ClientID          string        `env:"KAFKA_CLIENT_ID" envDefault:"payout-ledger"`
	ConsumerGroup     string        `env:"KAFKA_CONSUMER_GROUP" envDefault:"payout-processors"`
	EnableIdempotence bool          `env:"KAFKA_ENABLE_IDEMPOTENCE" envDefault:"false"`
	RequiredAcks      string        `env:"KAFKA_REQUIRED_ACKS" envDefault:"all"`
	MaxRetries        int           `env:"KAFKA_MAX_RETRIES" envDefault:"5"`
	RetryBackoff      time.Duration `env:"KAFKA_RETRY_BACKOFF" envDefault:"100ms"`
	Enabled           bool          `env:"KAFKA_ENABLED" envDefault:"true"`
}

// WorkerConfig governs C6's retry/backoff contract (spec.md §4.4).
type WorkerConfig struct {
	BackoffBase  time.Duration `env:"WORKER_BACKOFF_BASE" envDefault:"1s"`
	BackoffFactor float64      `env:"WORKER_BACKOFF_FACTOR" envDefault:"2"`
	BackoffCap   time.Duration `env:"WORKER_BACKOFF_CAP" envDefault:"60s"`
	MaxRetries   int           `env:"WORKER_MAX_RETRIES" envDefault:"5"`
}

type ProviderConfig struct {
	CallDeadline time.Duration `env:"PROVIDER_CALL_DEADLINE" envDefault:"10s"`
}

type CORSConfig struct {
	AllowOrigins     []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	AllowMethods     []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowHeaders     []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization,Accept,X-Idempotency-Key"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"false"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses the process environment into a Config, applying envDefault
// tags for anything unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// MustLoad is Load, but panics on error, for callers that have no graceful
// degradation path for a broken environment.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
