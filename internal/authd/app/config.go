package app

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/storefrontlabs/authd/pkg/jwtx"
)

type Config struct {
	Issuer      string // Optional: issuer claim for tokens (default: authd)
	TokenSecret string // Required: HMAC secret all tokens are signed with

	AccessTokenTTL  time.Duration // Optional: access token lifetime (default: 6h)
	PendingTokenTTL time.Duration // Optional: pending token lifetime (default: 5m)

	DatabaseFile string // Optional: path to SQLite database file (default: ./authd.db)
	PepperFile   string // Optional: path to pepper file for password hashing (default: ./pepper)

	// Optional: when both are set and the store is empty, an admin account
	// is seeded at startup.
	SeedAdminEmail    string
	SeedAdminPassword string

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// ErrMissingTokenSecret is returned by LoadConfig when AUTHD_TOKEN_SECRET is
// unset. There is no usable default for signing material.
var ErrMissingTokenSecret = errors.New("AUTHD_TOKEN_SECRET must be set")

func LoadConfig() (Config, error) {
	cfg := Config{
		Issuer:      getEnvOrDefault("AUTHD_ISSUER", "authd"),
		TokenSecret: os.Getenv("AUTHD_TOKEN_SECRET"),

		AccessTokenTTL:  getEnvDurationOrDefault("AUTHD_ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		PendingTokenTTL: getEnvDurationOrDefault("AUTHD_PENDING_TOKEN_TTL", jwtx.DefaultPendingTokenTTL),

		DatabaseFile: getEnvOrDefault("AUTHD_DATABASE_FILE", "authd.db"),
		PepperFile:   getEnvOrDefault("AUTHD_PEPPER_FILE", "pepper"),

		SeedAdminEmail:    os.Getenv("AUTHD_SEED_ADMIN_EMAIL"),
		SeedAdminPassword: os.Getenv("AUTHD_SEED_ADMIN_PASSWORD"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if cfg.TokenSecret == "" {
		return Config{}, ErrMissingTokenSecret
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
