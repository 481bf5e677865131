// Package config loads application configuration from the
// environment. Every variable is prefixed WARDEN_ and carries a
// usable default except the secrets, which must be set explicitly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Admin    AdminConfig

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string

	// MetricsEnabled controls prometheus registration and the
	// /metrics route.
	MetricsEnabled bool

	// RebuildSchedule is an optional cron expression for periodic
	// cache rebuilds on top of the mutation-driven ones. Empty
	// disables the schedule.
	RebuildSchedule string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// PostgresConfig holds the relational store configuration.
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds the authorization cache configuration.
type RedisConfig struct {
	URL string
}

// AuthConfig holds the session and password hashing configuration.
type AuthConfig struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
}

// AdminConfig seeds the bootstrap administrator account. The account
// is only created when it does not exist yet, so rotating the
// password here does not touch a live deployment.
type AdminConfig struct {
	Email    string
	Password string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("WARDEN_ADDR", ":8080"),
			ReadTimeout:     getEnvDuration("WARDEN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("WARDEN_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("WARDEN_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Postgres: PostgresConfig{
			URL:          getEnv("WARDEN_POSTGRES_URL", "postgres://localhost:5432/warden?sslmode=disable"),
			MaxOpenConns: getEnvInt("WARDEN_POSTGRES_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("WARDEN_POSTGRES_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL: getEnv("WARDEN_REDIS_URL", "redis://localhost:6379/0"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("WARDEN_JWT_SECRET", ""),
			TokenTTL:   getEnvDuration("WARDEN_TOKEN_TTL", 24*time.Hour),
			BcryptCost: getEnvInt("WARDEN_BCRYPT_COST", 8),
		},
		Admin: AdminConfig{
			Email:    getEnv("WARDEN_ADMIN_EMAIL", "admin@localhost"),
			Password: getEnv("WARDEN_ADMIN_PASSWORD", ""),
		},
		LogLevel:        getEnv("WARDEN_LOG_LEVEL", "info"),
		MetricsEnabled:  getEnvBool("WARDEN_METRICS_ENABLED", true),
		RebuildSchedule: getEnv("WARDEN_REBUILD_SCHEDULE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration for unusable values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Postgres.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("WARDEN_JWT_SECRET is required")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

// getEnv returns a string environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
