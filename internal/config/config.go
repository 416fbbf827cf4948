// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN; empty until DB is wired.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// NATSURL is the NATS server URL for group broadcast and connection-lifecycle events (e.g. nats://localhost:4222).
	NATSURL string `mapstructure:"NATS_URL"`
	// LifecycleSubject is the NATS subject the worker subscribes to for connection-lifecycle events.
	LifecycleSubject string `mapstructure:"LIFECYCLE_SUBJECT"`

	// EgressBaseURL is the base URL of the media-egress service (e.g. http://egress:9090).
	EgressBaseURL string `mapstructure:"EGRESS_BASE_URL"`
	// EgressAPIKey authenticates calls to the egress service.
	EgressAPIKey string `mapstructure:"EGRESS_API_KEY"`
	// EgressTimeout is the per-call timeout for egress start/stop (e.g. "10s").
	EgressTimeout string `mapstructure:"EGRESS_TIMEOUT"`

	// BlobAccountName is the storage account holding recordings.
	BlobAccountName string `mapstructure:"BLOB_ACCOUNT_NAME"`
	// BlobAccountKey is the shared key used to sign playback SAS URLs.
	BlobAccountKey string `mapstructure:"BLOB_ACCOUNT_KEY"`
	// BlobContainer is the container recordings are written to (default recordings).
	BlobContainer string `mapstructure:"BLOB_CONTAINER"`
	// BlobSASTTL is the lifetime of signed playback URLs (e.g. "1h").
	BlobSASTTL string `mapstructure:"BLOB_SAS_TTL"`

	// CommandStaleAfter is how old a pending command may be before fetch treats it as expired (e.g. "2m").
	CommandStaleAfter string `mapstructure:"COMMAND_STALE_AFTER"`
	// RecordingLookback bounds how far back stop-all searches for active recording sessions (e.g. "60m").
	RecordingLookback string `mapstructure:"RECORDING_LOOKBACK"`

	// JWTPublicKey is the PEM-encoded public key (or path to file) used to verify caller bearer tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim; required when auth is enabled.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim; required when auth is enabled.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogConsole switches log output from JSON to human-readable console format.
	LogConsole bool `mapstructure:"LOG_CONSOLE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Telemetry (optional). When Kafka brokers are set, the server emits operational telemetry to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events (default pso-telemetry).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("LIFECYCLE_SUBJECT", "connections.lifecycle")
	v.SetDefault("EGRESS_BASE_URL", "")
	v.SetDefault("EGRESS_TIMEOUT", "10s")
	v.SetDefault("BLOB_CONTAINER", "recordings")
	v.SetDefault("BLOB_SAS_TTL", "1h")
	v.SetDefault("COMMAND_STALE_AFTER", "2m")
	v.SetDefault("RECORDING_LOOKBACK", "60m")
	v.SetDefault("JWT_ISSUER", "pso-auth")
	v.SetDefault("JWT_AUDIENCE", "pso-api")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_CONSOLE", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "pso-telemetry")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "pso-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.BlobAccountName != "" && cfg.BlobAccountKey == "" {
		return nil, errors.New("config: BLOB_ACCOUNT_KEY must be set when BLOB_ACCOUNT_NAME is set")
	}

	return &cfg, nil
}

// EgressCallTimeout parses EgressTimeout as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) EgressCallTimeout() time.Duration {
	return durationOr(c.EgressTimeout, 10*time.Second)
}

// SASTTL parses BlobSASTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) SASTTL() time.Duration {
	return durationOr(c.BlobSASTTL, time.Hour)
}

// StaleAfter parses CommandStaleAfter as a time.Duration. Returns 2m if unset or invalid.
func (c *Config) StaleAfter() time.Duration {
	return durationOr(c.CommandStaleAfter, 2*time.Minute)
}

// Lookback parses RecordingLookback as a time.Duration. Returns 60m if unset or invalid.
func (c *Config) Lookback() time.Duration {
	return durationOr(c.RecordingLookback, 60*time.Minute)
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
