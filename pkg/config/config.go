// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/orgdeck/orgdeck/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Jobs     JobsConfig

	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds the optional permission-cache Redis configuration
type RedisConfig struct {
	Addr     string // empty disables the L2 cache
	Password string
	DB       int
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	TokenTTL   time.Duration
	BcryptCost int

	// PermissionCacheTTL bounds staleness of resolved bundles; a permission
	// update invalidates eagerly, the TTL covers writers on other nodes.
	PermissionCacheTTL time.Duration
	PermissionCacheSize int
}

// JobsConfig holds background job schedules (cron format)
type JobsConfig struct {
	InvitationCleanupSchedule string
	TokenCleanupSchedule      string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("ORGDECK_HOST", "0.0.0.0"),
			Port:            getEnv("ORGDECK_PORT", "8080"),
			ReadTimeout:     getEnvDuration("ORGDECK_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("ORGDECK_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("ORGDECK_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("ORGDECK_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("ORGDECK_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("ORGDECK_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("ORGDECK_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("ORGDECK_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("ORGDECK_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("ORGDECK_REDIS_ADDR", ""),
			Password: getEnv("ORGDECK_REDIS_PASSWORD", ""),
			DB:       getEnvInt("ORGDECK_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenTTL:            getEnvDuration("ORGDECK_TOKEN_TTL", 30*24*time.Hour),
			BcryptCost:          getEnvInt("ORGDECK_BCRYPT_COST", 12),
			PermissionCacheTTL:  getEnvDuration("ORGDECK_PERMISSION_CACHE_TTL", 5*time.Minute),
			PermissionCacheSize: getEnvInt("ORGDECK_PERMISSION_CACHE_SIZE", 1024),
		},
		Jobs: JobsConfig{
			InvitationCleanupSchedule: getEnv("ORGDECK_INVITATION_CLEANUP_SCHEDULE", "30 0 * * *"),
			TokenCleanupSchedule:      getEnv("ORGDECK_TOKEN_CLEANUP_SCHEDULE", "45 0 * * *"),
		},
		LogLevel:       parseLogLevel(getEnv("ORGDECK_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("ORGDECK_METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("ORGDECK_POSTGRES_URL is required")
	}
	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 10 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
