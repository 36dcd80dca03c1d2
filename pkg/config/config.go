package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Permissions   PermissionsConfig
	Observability ObservabilityConfig
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
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration; Redis carries the catalog-changed
// rebuild channel and the optional authorization read cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PermissionsConfig holds permission engine configuration
type PermissionsConfig struct {
	// EagerBuild populates the resolution cache at startup instead of
	// lazily on first access.
	EagerBuild bool
	// RebuildSchedule is a cron spec for periodic wholesale rebuilds.
	// Empty disables the schedule.
	RebuildSchedule string
	// SeedPath points at a YAML rule seed file; empty disables seeding.
	SeedPath string
	// WatchSeed re-applies the seed file on change (development only).
	WatchSeed bool
	// AuthzCacheSize bounds the in-process authorization record cache.
	AuthzCacheSize int
	// AuthzCacheTTL bounds staleness of Redis-cached authorization records.
	AuthzCacheTTL time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Permissions:   loadPermissionsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("AUTH_HOST", "0.0.0.0"),
		Port:            getEnv("AUTH_PORT", "8080"),
		ReadTimeout:     getEnvDuration("AUTH_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("AUTH_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("AUTH_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("AUTH_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("AUTH_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("AUTH_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("AUTH_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("AUTH_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("AUTH_POSTGRES_CONN_LIFETIME", 30*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("AUTH_REDIS_ADDR", ""),
		Password: getEnv("AUTH_REDIS_PASSWORD", ""),
		DB:       getEnvInt("AUTH_REDIS_DB", 0),
	}
}

func loadPermissionsConfig() PermissionsConfig {
	return PermissionsConfig{
		EagerBuild:      getEnvBool("AUTH_PERMISSIONS_EAGER_BUILD", true),
		RebuildSchedule: getEnv("AUTH_PERMISSIONS_REBUILD_SCHEDULE", "@every 15m"),
		SeedPath:        getEnv("AUTH_PERMISSIONS_SEED_PATH", ""),
		WatchSeed:       getEnvBool("AUTH_PERMISSIONS_WATCH_SEED", false),
		AuthzCacheSize:  getEnvInt("AUTH_AUTHZ_CACHE_SIZE", 1024),
		AuthzCacheTTL:   getEnvDuration("AUTH_AUTHZ_CACHE_TTL", 5*time.Minute),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("AUTH_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("AUTH_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("AUTH_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("AUTH_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("AUTH_OTEL_SERVICE_NAME", "auth-api"),
		OTelServiceVersion: getEnv("AUTH_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("AUTH_OTEL_INSECURE", true),
	}
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
		return fmt.Errorf("postgres URL is required")
	}

	if c.Permissions.WatchSeed && c.Permissions.SeedPath == "" {
		return fmt.Errorf("seed path is required when seed watching is enabled")
	}
	if c.Permissions.AuthzCacheSize <= 0 {
		return fmt.Errorf("authz cache size must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
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
