package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, CacheBackendFile, cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.Freshness)
	assert.Equal(t, 10*time.Second, cfg.Registry.Timeout)
	assert.False(t, cfg.Registry.InsecureSkipVerify)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention.MaxAge)
	assert.True(t, cfg.Site.ArchiveEnabled)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitegen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
registry:
  base_url: "https://registry.example"
  timeout: 3s
  insecure_skip_verify: true
cache:
  backend: memory
  freshness: 1h
site:
  archive_enabled: false
`), 0o600))

	t.Setenv("SITEGEN_CACHE_FRESHNESS", "30m")
	t.Setenv("SITEGEN_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://registry.example", cfg.Registry.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Registry.Timeout)
	assert.True(t, cfg.Registry.InsecureSkipVerify)
	assert.Equal(t, CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Cache.Freshness, "env wins over file")
	assert.False(t, cfg.Site.ArchiveEnabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SITEGEN_REGISTRY_TIMEOUT", "soon")
	t.Setenv("SITEGEN_ARCHIVE_ENABLED", "maybe")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Registry.Timeout)
	assert.True(t, cfg.Site.ArchiveEnabled)
}

func TestValidate(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		cfg := Default()
		cfg.Cache.Backend = "etcd"
		assert.ErrorContains(t, cfg.Validate(), "unknown cache backend")
	})

	t.Run("redis backend needs url", func(t *testing.T) {
		cfg := Default()
		cfg.Cache.Backend = CacheBackendRedis
		assert.ErrorContains(t, cfg.Validate(), "redis.url")
	})

	t.Run("postgres backend needs dsn", func(t *testing.T) {
		cfg := Default()
		cfg.Cache.Backend = CacheBackendPostgres
		assert.ErrorContains(t, cfg.Validate(), "postgres.dsn")
	})

	t.Run("non positive freshness", func(t *testing.T) {
		cfg := Default()
		cfg.Cache.Freshness = 0
		assert.ErrorContains(t, cfg.Validate(), "freshness")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
