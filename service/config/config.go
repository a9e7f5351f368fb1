package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Solana configuration. Multiple equivalent RPC endpoints may be given;
	// the distributor rotates through them on rate limits and stale blockhashes.
	SolanaRPCEndpoints []string

	// Temporal configuration (checkpoint housekeeping)
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Distribution configuration
	BatchSize     int
	MaxAttempts   int
	BackoffBase   time.Duration
	SubmitTimeout time.Duration

	// Housekeeping configuration
	CheckpointTTL time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Solana configuration
	endpoints := os.Getenv("SOLANA_RPC_ENDPOINTS")
	if endpoints == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_ENDPOINTS is required"))
	} else {
		cfg.SolanaRPCEndpoints = splitAndTrim(endpoints)
		if len(cfg.SolanaRPCEndpoints) == 0 {
			errs = append(errs, fmt.Errorf("SOLANA_RPC_ENDPOINTS must contain at least one endpoint"))
		}
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solspray-housekeeping")

	// Distribution configuration
	batchSize, err := parseInt("BATCH_SIZE", 4)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.BatchSize = batchSize
	}

	maxAttempts, err := parseInt("MAX_ATTEMPTS", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxAttempts = maxAttempts
	}

	backoffBase, err := parseDuration("BACKOFF_BASE", "1s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.BackoffBase = backoffBase
	}

	submitTimeout, err := parseDuration("SUBMIT_TIMEOUT", "3s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SubmitTimeout = submitTimeout
	}

	// Housekeeping configuration
	checkpointTTL, err := parseDuration("CHECKPOINT_TTL", "72h")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.CheckpointTTL = checkpointTTL
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}

	if len(c.SolanaRPCEndpoints) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCEndpoints is required"))
	}

	seen := make(map[string]struct{}, len(c.SolanaRPCEndpoints))
	for _, ep := range c.SolanaRPCEndpoints {
		if _, dup := seen[ep]; dup {
			errs = append(errs, fmt.Errorf("SolanaRPCEndpoints contains duplicate endpoint %q", ep))
		}
		seen[ep] = struct{}{}
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if c.BatchSize < 1 || c.BatchSize > 32 {
		errs = append(errs, fmt.Errorf("BatchSize must be between 1 and 32, got %d", c.BatchSize))
	}

	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("MaxAttempts must be at least 1, got %d", c.MaxAttempts))
	}

	if c.BackoffBase < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("BackoffBase must be at least 100ms, got %v", c.BackoffBase))
	}

	if c.SubmitTimeout < time.Second {
		errs = append(errs, fmt.Errorf("SubmitTimeout must be at least 1 second, got %v", c.SubmitTimeout))
	}

	if c.CheckpointTTL < time.Hour {
		errs = append(errs, fmt.Errorf("CheckpointTTL must be at least 1 hour, got %v", c.CheckpointTTL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitAndTrim splits a comma-separated list, trimming whitespace and dropping empties.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
