package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3008", cfg.Registry.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Registry.Timeout)
	assert.Equal(t, int64(10<<20), cfg.Registry.MaxDocumentBytes)
	assert.Equal(t, "memory", cfg.Lock.Backend)
	assert.Equal(t, "memory", cfg.Audit.Backend)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EDUVERIFY_REGISTRY_BASE_URL", "http://registry.internal:3008/")
	t.Setenv("EDUVERIFY_LOG_FORMAT", "text")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "http://registry.internal:3008", cfg.Registry.BaseURL, "trailing slash trimmed")
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("registry:\n  base_url: http://file-registry:9000\nlock:\n  backend: memory\n"), 0o600))

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://file-registry:9000", cfg.Registry.BaseURL)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("redis lock requires url", func(t *testing.T) {
		v, err := NewViper("")
		require.NoError(t, err)
		v.Set("lock.backend", "redis")
		_, err = Load(v)
		assert.ErrorContains(t, err, "redis.url")
	})

	t.Run("postgres audit requires dsn", func(t *testing.T) {
		v, err := NewViper("")
		require.NoError(t, err)
		v.Set("audit.backend", "postgres")
		_, err = Load(v)
		assert.ErrorContains(t, err, "postgres_dsn")
	})

	t.Run("unknown lock backend", func(t *testing.T) {
		v, err := NewViper("")
		require.NoError(t, err)
		v.Set("lock.backend", "etcd")
		_, err = Load(v)
		assert.Error(t, err)
	})

	t.Run("missing explicit config file fails", func(t *testing.T) {
		_, err := NewViper(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadKafkaBrokersFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EDUVERIFY_AUDIT_KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092, kafka-1:9092")

	v, err := NewViper("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Audit.KafkaBrokers)
}
