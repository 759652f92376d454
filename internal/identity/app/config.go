package app

import (
	"os"
	"strconv"
	"time"

	"github.com/authlane/identity/internal/identity/config"
	"github.com/authlane/identity/pkg/cryptox"
)

// Config is the process-level configuration loaded from the environment.
// The sign-in and issuance settings live inside Settings and go through the
// config.Provider so they can be hot reloaded; everything else is fixed for
// the process lifetime.
type Config struct {
	Settings config.Settings

	DatabaseFile         string        // Path to SQLite database file (default: ./identity.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired challenge sweep interval (default: 1h)
}

// LoadConfig reads the environment. Validation happens when the settings go
// into the provider, not here.
func LoadConfig() Config {
	return Config{
		Settings:             loadSettings(),
		DatabaseFile:         getEnvOrDefault("IDENTITY_DATABASE_FILE", "identity.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// loadSettings builds one settings snapshot from the environment. Called at
// startup and again on SIGHUP.
func loadSettings() config.Settings {
	return config.Settings{
		JwtKey:                  os.Getenv("IDENTITY_JWT_KEY"),
		JwtIssuer:               getEnvOrDefault("IDENTITY_JWT_ISSUER", "http://localhost:8080"),
		JwtExpireDays:           getEnvIntOrDefault("IDENTITY_JWT_EXPIRE_DAYS", 7),
		MaxFailedAccessAttempts: uint(getEnvIntOrDefault("IDENTITY_MAX_FAILED_ATTEMPTS", 5)),
		LockoutDuration:         getEnvDurationOrDefault("IDENTITY_LOCKOUT_DURATION", 5*time.Minute),
		PasswordScheme:          getEnvOrDefault("IDENTITY_PASSWORD_SCHEME", cryptox.SchemeSHA1SHA512),
	}
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

	// Duration syntax first (e.g. "1h", "30m", "90s").
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers mean minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
