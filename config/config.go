package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	HTTP     HTTPConfig
	Session  SessionConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path
}

// HTTPConfig contains HTTP server settings.
type HTTPConfig struct {
	Address string // listen address (e.g., ":8080")
}

// SessionConfig contains session-related settings.
type SessionConfig struct {
	Secret string        // signs session cookie tokens
	Expiry time.Duration // how long a session stays valid
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.Session.Secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for SESSION_SECRET in
// development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.Session.Secret == "" {
		cfg.Session.Secret = "dev-secret-change-me"
	}
	return cfg, nil
}

func load() (*Config, error) {
	expiry, err := time.ParseDuration(getEnv("SESSION_EXPIRY", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid duration for SESSION_EXPIRY: %w", err)
	}
	return &Config{
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "database.db"),
		},
		HTTP: HTTPConfig{
			Address: getEnv("LISTEN_ADDRESS", ":8080"),
		},
		Session: SessionConfig{
			Secret: getEnv("SESSION_SECRET", ""),
			Expiry: expiry,
		},
	}, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s, HTTP: %s, Session: *** (masked) *** expiry=%s}",
		c.Database.Path, c.HTTP.Address, c.Session.Expiry)
}
