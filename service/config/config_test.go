package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SOLANA_RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://api.mainnet-beta.solana.com"}, cfg.SolanaRPCEndpoints)
	assert.Equal(t, ":8080", cfg.ServerAddr) // Default
	assert.Equal(t, "info", cfg.LogLevel)    // Default
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.BackoffBase)
	assert.Equal(t, 3*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, 72*time.Hour, cfg.CheckpointTTL)
}

func TestLoad_MultipleEndpoints(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SOLANA_RPC_ENDPOINTS", "https://rpc-a.example.com, https://rpc-b.example.com ,https://rpc-c.example.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://rpc-a.example.com",
		"https://rpc-b.example.com",
		"https://rpc-c.example.com",
	}, cfg.SolanaRPCEndpoints)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	os.Setenv("SOLANA_RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
}

func TestLoad_MissingEndpoints(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SOLANA_RPC_ENDPOINTS is required")
}

func TestLoad_InvalidBackoffBase(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SOLANA_RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
	os.Setenv("BACKOFF_BASE", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SOLANA_RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
	os.Setenv("BATCH_SIZE", "100")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "BatchSize must be between 1 and 32")
}

func TestLoad_CustomValues(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SOLANA_RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	os.Setenv("TEMPORAL_HOST", "temporal.example.com:7233")
	os.Setenv("BATCH_SIZE", "5")
	os.Setenv("MAX_ATTEMPTS", "3")
	os.Setenv("SUBMIT_TIMEOUT", "5s")
	os.Setenv("CHECKPOINT_TTL", "24h")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, "temporal.example.com:7233", cfg.TemporalHost)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, 24*time.Hour, cfg.CheckpointTTL)
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		DatabaseURL:        "postgres://localhost/test",
		SolanaRPCEndpoints: []string{"https://api.mainnet-beta.solana.com"},
		TemporalHost:       "localhost:7233",
		TemporalNamespace:  "default",
		TemporalTaskQueue:  "solspray-housekeeping",
		BatchSize:          4,
		MaxAttempts:        5,
		BackoffBase:        time.Second,
		SubmitTimeout:      3 * time.Second,
		CheckpointTTL:      72 * time.Hour,
	}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := &Config{
		SolanaRPCEndpoints: []string{"https://api.mainnet-beta.solana.com"},
		TemporalHost:       "localhost:7233",
		TemporalNamespace:  "default",
		TemporalTaskQueue:  "solspray-housekeeping",
		BatchSize:          4,
		MaxAttempts:        5,
		BackoffBase:        time.Second,
		SubmitTimeout:      3 * time.Second,
		CheckpointTTL:      72 * time.Hour,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabaseURL is required")
}

func TestValidate_DuplicateEndpoints(t *testing.T) {
	cfg := &Config{
		DatabaseURL:        "postgres://localhost/test",
		SolanaRPCEndpoints: []string{"https://rpc.example.com", "https://rpc.example.com"},
		TemporalHost:       "localhost:7233",
		TemporalNamespace:  "default",
		TemporalTaskQueue:  "solspray-housekeeping",
		BatchSize:          4,
		MaxAttempts:        5,
		BackoffBase:        time.Second,
		SubmitTimeout:      3 * time.Second,
		CheckpointTTL:      72 * time.Hour,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate endpoint")
}

func TestValidate_TooShortSubmitTimeout(t *testing.T) {
	cfg := &Config{
		DatabaseURL:        "postgres://localhost/test",
		SolanaRPCEndpoints: []string{"https://api.mainnet-beta.solana.com"},
		TemporalHost:       "localhost:7233",
		TemporalNamespace:  "default",
		TemporalTaskQueue:  "solspray-housekeeping",
		BatchSize:          4,
		MaxAttempts:        5,
		BackoffBase:        time.Second,
		SubmitTimeout:      500 * time.Millisecond,
		CheckpointTTL:      72 * time.Hour,
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be at least 1 second")
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("SOLANA_RPC_ENDPOINTS", "https://api.mainnet-beta.solana.com")
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("SOLANA_RPC_ENDPOINTS")
	os.Unsetenv("SERVER_ADDR")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("NATS_URL")
	os.Unsetenv("TEMPORAL_HOST")
	os.Unsetenv("BATCH_SIZE")
	os.Unsetenv("MAX_ATTEMPTS")
	os.Unsetenv("BACKOFF_BASE")
	os.Unsetenv("SUBMIT_TIMEOUT")
	os.Unsetenv("CHECKPOINT_TTL")
}
