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
	// HTTPAddr is the address the HTTP API server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// ProcessInterval is how often the scheduler ticks (e.g. "1h").
	ProcessInterval string `mapstructure:"PROCESS_INTERVAL"`
	// MinAccrualInterval is the minimum elapsed time since a device's watermark
	// before it is processed again (e.g. "24h"); devices under it skip with "too soon".
	MinAccrualInterval string `mapstructure:"MIN_ACCRUAL_INTERVAL"`
	// MaxLookback bounds the default accrual window when a device has no
	// transactions and no creation time to fall back on (e.g. "720h").
	MaxLookback string `mapstructure:"MAX_LOOKBACK"`
	// MaxWindow caps the length of an explicitly requested accrual window (e.g. "168h").
	MaxWindow string `mapstructure:"MAX_WINDOW"`
	// AdvanceOnZeroCredits controls whether a window that earned zero credits
	// still advances the watermark. Default true; set false to revisit such windows.
	AdvanceOnZeroCredits bool `mapstructure:"ADVANCE_ON_ZERO_CREDITS"`
	// ProcessorWorkers is the size of the per-tick device worker pool.
	ProcessorWorkers int `mapstructure:"PROCESSOR_WORKERS"`

	// WalletCacheTTL is how long a resolved API key stays cached (e.g. "5m").
	WalletCacheTTL string `mapstructure:"WALLET_CACHE_TTL"`

	// Telemetry ingest (optional). When Kafka brokers are set, the server publishes
	// accepted telemetry to Kafka and the worker consumes it into the time-series store.
	// KafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for sensor samples (default carbon-telemetry).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the ingest worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC endpoint for traces and metrics (empty disables export).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
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
	v.SetDefault("PROCESS_INTERVAL", "1h")
	v.SetDefault("MIN_ACCRUAL_INTERVAL", "24h")
	v.SetDefault("MAX_LOOKBACK", "720h") // 30d
	v.SetDefault("MAX_WINDOW", "168h")   // 7d
	v.SetDefault("ADVANCE_ON_ZERO_CREDITS", true)
	v.SetDefault("PROCESSOR_WORKERS", 4)
	v.SetDefault("WALLET_CACHE_TTL", "5m")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "carbon-telemetry")
	v.SetDefault("KAFKA_GROUP_ID", "carbon-ingest-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.ProcessorWorkers <= 0 {
		return nil, errors.New("config: PROCESSOR_WORKERS must be positive")
	}

	return &cfg, nil
}

// ProcessIntervalDuration parses ProcessInterval. Returns 1h if unset or invalid.
func (c *Config) ProcessIntervalDuration() time.Duration {
	return durationOr(c.ProcessInterval, time.Hour)
}

// MinAccrualIntervalDuration parses MinAccrualInterval. Returns 24h if unset or invalid.
func (c *Config) MinAccrualIntervalDuration() time.Duration {
	return durationOr(c.MinAccrualInterval, 24*time.Hour)
}

// MaxLookbackDuration parses MaxLookback. Returns 720h if unset or invalid.
func (c *Config) MaxLookbackDuration() time.Duration {
	return durationOr(c.MaxLookback, 720*time.Hour)
}

// MaxWindowDuration parses MaxWindow. Returns 168h if unset or invalid.
func (c *Config) MaxWindowDuration() time.Duration {
	return durationOr(c.MaxWindow, 168*time.Hour)
}

// WalletCacheTTLDuration parses WalletCacheTTL. Returns 5m if unset or invalid.
func (c *Config) WalletCacheTTLDuration() time.Duration {
	return durationOr(c.WalletCacheTTL, 5*time.Minute)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka ingest is enabled (non-empty list) and to create the reader/writer.
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
