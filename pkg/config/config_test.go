package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CRAFTWORK_POSTGRES_URL", "postgres://localhost/craftwork_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 1024, cfg.Cache.OrgSnapshotSize)
	assert.Equal(t, 30*time.Second, cfg.Cache.OrgSnapshotTTL)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.TracingEnabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("CRAFTWORK_POSTGRES_URL", "postgres://db.internal/craftwork")
	t.Setenv("CRAFTWORK_PORT", "8888")
	t.Setenv("CRAFTWORK_SESSION_TTL", "1h")
	t.Setenv("CRAFTWORK_ORG_CACHE_SIZE", "64")
	t.Setenv("CRAFTWORK_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, 64, cfg.Cache.OrgSnapshotSize)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfigMissingDatabase(t *testing.T) {
	t.Setenv("CRAFTWORK_POSTGRES_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL is required")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{
				URL: "postgres://localhost/craftwork",
			},
			Redis:   RedisConfig{URL: "redis://localhost:6379"},
			Session: SessionConfig{TTL: time.Hour},
			Cache:   CacheConfig{OrgSnapshotSize: 16, OrgSnapshotTTL: time.Second},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("same port for server and health", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero session TTL", func(t *testing.T) {
		cfg := valid()
		cfg.Session.TTL = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("tracing enabled without endpoint", func(t *testing.T) {
		cfg := valid()
		cfg.Observability.TracingEnabled = true
		cfg.Observability.TracingEndpoint = ""
		assert.Error(t, cfg.Validate())
	})
}
