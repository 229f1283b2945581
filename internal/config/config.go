// internal/config/config.go
//
// Environment configuration for the hangman server.
// All values come from environment variables (main loads .env first via
// godotenv). Unset or empty variables fall back to defaults; malformed
// numbers fall back too and are reported by Validate.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultJWTSecret is only acceptable outside production.
const DefaultJWTSecret = "dev_secret_change_me"

// Config holds application configuration.
type Config struct {
	Env          string
	Port         string
	LogLevel     string
	LogFormat    string // json | console
	ClientOrigin string

	StoreDriver string // memory | sqlite | postgres | mysql
	DBPath      string
	DatabaseURL string

	JWTSecret    string
	JWTExpiresIn time.Duration
	CookieName   string

	DictionaryDir     string
	DefaultDictionary string

	MaxSessionsPerUser int
	MaxGamesPerSession int
	DefaultMaxMisses   int
	IdempotencyTTL     time.Duration

	invalid []string
}

// Load reads configuration from the environment.
func Load() *Config {
	c := &Config{
		Env:               getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "5175"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		ClientOrigin:      getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", "memory")),
		DBPath:            getEnv("DB_PATH", "./data/hangman.db"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         getEnv("JWT_SECRET", DefaultJWTSecret),
		CookieName:        getEnv("COOKIE_NAME", "hangman_token"),
		DictionaryDir:     os.Getenv("DICTIONARY_DIR"),
		DefaultDictionary: getEnv("DEFAULT_DICTIONARY", "dict_ro_basic"),
	}
	c.JWTExpiresIn = time.Duration(c.envInt("JWT_EXPIRES_DAYS", 14)) * 24 * time.Hour
	c.MaxSessionsPerUser = c.envInt("MAX_SESSIONS_PER_USER", 10)
	c.MaxGamesPerSession = c.envInt("MAX_GAMES_PER_SESSION", 100)
	c.DefaultMaxMisses = c.envInt("DEFAULT_MAX_MISSES", 6)
	c.IdempotencyTTL = time.Duration(c.envInt("IDEMPOTENCY_TTL_MINUTES", 60)) * time.Minute
	return c
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// StoreTarget is the connection target for the selected SQL driver.
func (c *Config) StoreTarget() string {
	if c.StoreDriver == "sqlite" || c.StoreDriver == "sqlite3" {
		return c.DBPath
	}
	return c.DatabaseURL
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	for _, msg := range c.invalid {
		errs = append(errs, errors.New(msg))
	}
	positive := []struct {
		name string
		v    int
	}{
		{"JWT_EXPIRES_DAYS", int(c.JWTExpiresIn / (24 * time.Hour))},
		{"MAX_SESSIONS_PER_USER", c.MaxSessionsPerUser},
		{"MAX_GAMES_PER_SESSION", c.MaxGamesPerSession},
		{"DEFAULT_MAX_MISSES", c.DefaultMaxMisses},
		{"IDEMPOTENCY_TTL_MINUTES", int(c.IdempotencyTTL / time.Minute)},
	}
	for _, p := range positive {
		if p.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.v))
		}
	}
	switch c.StoreDriver {
	case "memory", "sqlite", "sqlite3":
	case "postgres", "postgresql", "mysql":
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", c.StoreDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if c.Production() && c.JWTSecret == DefaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envInt parses an integer variable. Malformed values keep the default and
// are recorded for Validate.
func (c *Config) envInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		c.invalid = append(c.invalid, fmt.Sprintf("%s: %q is not an integer", key, v))
		return defaultValue
	}
	return n
}
