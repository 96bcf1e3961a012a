// Package config provides environment-aware configuration management.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration, loaded once at startup and
// read-only afterwards.
type Config struct {
	// Identity, returned by getSystemStatus
	ApplicationName        string
	ApplicationDisplayName string
	ApplicationEnvironment string

	// HTTP
	HTTPAddr       string
	MetricsEnabled bool
	RestrictAccess bool

	// Database
	DatabaseURL string
	LockTimeout time.Duration

	// Crypto
	ActivationIDIterations   int
	ActivationCodeIterations int
	TokenIDIterations        int
	RecoveryCodeIterations   int
	ActivationValidity       time.Duration

	SignatureMaxFailedAttempts   int64
	SignatureValidationLookahead int
	TokenTimestampValidity       time.Duration
	RecoveryMaxFailedAttempts    int64
	RecoveryPUKCount             int

	// Empty disables at-rest encryption of server private keys.
	MasterDBEncryptionKey string

	// Callbacks
	CallbackQueueSize   int
	CallbackWorkers     int
	CallbackHTTPTimeout time.Duration

	// Background jobs
	ExpirySweepSchedule string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, optionally preloading a
// .env file named by POWERAUTH_ENV_FILE.
func Load() (*Config, error) {
	if envFile := os.Getenv("POWERAUTH_ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		ApplicationName:        getEnv("POWERAUTH_APPLICATION_NAME", "powerauth-server"),
		ApplicationDisplayName: getEnv("POWERAUTH_APPLICATION_DISPLAY_NAME", "PowerAuth Server"),
		ApplicationEnvironment: getEnv("POWERAUTH_APPLICATION_ENVIRONMENT", "development"),

		HTTPAddr:       getEnv("POWERAUTH_HTTP_ADDR", ":8080"),
		MetricsEnabled: getEnvBool("POWERAUTH_METRICS_ENABLED", true),
		RestrictAccess: getEnvBool("POWERAUTH_RESTRICT_ACCESS", false),

		DatabaseURL: getEnv("POWERAUTH_DATABASE_URL", ""),
		LockTimeout: getEnvDuration("POWERAUTH_LOCK_TIMEOUT", 10*time.Second),

		ActivationIDIterations:   getEnvInt("POWERAUTH_ACTIVATION_ID_ITERATIONS", 10),
		ActivationCodeIterations: getEnvInt("POWERAUTH_ACTIVATION_CODE_ITERATIONS", 10),
		TokenIDIterations:        getEnvInt("POWERAUTH_TOKEN_ID_ITERATIONS", 10),
		RecoveryCodeIterations:   getEnvInt("POWERAUTH_RECOVERY_CODE_ITERATIONS", 10),
		ActivationValidity:       getEnvDuration("POWERAUTH_ACTIVATION_VALIDITY", 2*time.Minute),

		SignatureMaxFailedAttempts:   int64(getEnvInt("POWERAUTH_SIGNATURE_MAX_FAILED_ATTEMPTS", 5)),
		SignatureValidationLookahead: getEnvInt("POWERAUTH_SIGNATURE_VALIDATION_LOOKAHEAD", 20),
		TokenTimestampValidity:       getEnvDuration("POWERAUTH_TOKEN_TIMESTAMP_VALIDITY", 2*time.Hour),
		RecoveryMaxFailedAttempts:    int64(getEnvInt("POWERAUTH_RECOVERY_MAX_FAILED_ATTEMPTS", 5)),
		RecoveryPUKCount:             getEnvInt("POWERAUTH_RECOVERY_PUK_COUNT", 1),

		MasterDBEncryptionKey: getEnv("POWERAUTH_MASTER_DB_ENCRYPTION_KEY", ""),

		CallbackQueueSize:   getEnvInt("POWERAUTH_CALLBACK_QUEUE_SIZE", 1024),
		CallbackWorkers:     getEnvInt("POWERAUTH_CALLBACK_WORKERS", 5),
		CallbackHTTPTimeout: getEnvDuration("POWERAUTH_CALLBACK_HTTP_TIMEOUT", 5*time.Second),

		ExpirySweepSchedule: getEnv("POWERAUTH_EXPIRY_SWEEP_SCHEDULE", "@every 1m"),

		LogLevel:  getEnv("POWERAUTH_LOG_LEVEL", "info"),
		LogFormat: getEnv("POWERAUTH_LOG_FORMAT", "text"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("POWERAUTH_DATABASE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
