// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/craftwork-crm/craftwork/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Session       SessionConfig
	Cache         CacheConfig
	Audit         AuditConfig
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

// RedisConfig holds redis configuration for the session store
type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

// SessionConfig holds session lifetime settings
type SessionConfig struct {
	TTL time.Duration
}

// CacheConfig holds organization snapshot cache settings
type CacheConfig struct {
	OrgSnapshotSize int
	OrgSnapshotTTL  time.Duration
}

// AuditConfig holds audit trail settings. The database sink is always on;
// FileDir enables a secondary newline-delimited JSON sink when set.
type AuditConfig struct {
	FileDir string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	TracingEnabled  bool
	TracingEndpoint string
	ServiceName     string
	ServiceVersion  string
	TracingInsecure bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CRAFTWORK_HOST", "0.0.0.0"),
			Port:            getEnv("CRAFTWORK_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CRAFTWORK_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CRAFTWORK_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CRAFTWORK_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CRAFTWORK_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CRAFTWORK_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("CRAFTWORK_POSTGRES_URL", ""),
			MaxOpenConns:    getEnvInt("CRAFTWORK_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns:    getEnvInt("CRAFTWORK_POSTGRES_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("CRAFTWORK_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("CRAFTWORK_REDIS_URL", "redis://localhost:6379/0"),
			Password: getEnv("CRAFTWORK_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CRAFTWORK_REDIS_DB", -1),
			PoolSize: getEnvInt("CRAFTWORK_REDIS_POOL_SIZE", 0),
		},
		Session: SessionConfig{
			TTL: getEnvDuration("CRAFTWORK_SESSION_TTL", 12*time.Hour),
		},
		Cache: CacheConfig{
			OrgSnapshotSize: getEnvInt("CRAFTWORK_ORG_CACHE_SIZE", 1024),
			OrgSnapshotTTL:  getEnvDuration("CRAFTWORK_ORG_CACHE_TTL", 30*time.Second),
		},
		Audit: AuditConfig{
			FileDir: getEnv("CRAFTWORK_AUDIT_FILE_DIR", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:        observability.ParseLogLevel(getEnv("CRAFTWORK_LOG_LEVEL", "info")),
			MetricsEnabled:  getEnvBool("CRAFTWORK_METRICS_ENABLED", true),
			TracingEnabled:  getEnvBool("CRAFTWORK_TRACING_ENABLED", false),
			TracingEndpoint: getEnv("CRAFTWORK_TRACING_ENDPOINT", "localhost:4317"),
			ServiceName:     getEnv("CRAFTWORK_SERVICE_NAME", "craftwork"),
			ServiceVersion:  getEnv("CRAFTWORK_SERVICE_VERSION", "1.0.0"),
			TracingInsecure: getEnvBool("CRAFTWORK_TRACING_INSECURE", true),
		},
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
		return fmt.Errorf("postgres URL is required")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Cache.OrgSnapshotSize <= 0 {
		return fmt.Errorf("org cache size must be positive")
	}
	if c.Observability.TracingEnabled && c.Observability.TracingEndpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	return nil
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
