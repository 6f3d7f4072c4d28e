// Package config loads runtime configuration from defaults, an optional YAML
// file, EDUVERIFY_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	platformstrings "eduverify/pkg/platform/strings"
)

// EnvPrefix namespaces environment overrides, e.g. EDUVERIFY_REGISTRY_BASE_URL.
const EnvPrefix = "EDUVERIFY"

// Config is the complete runtime configuration.
type Config struct {
	Server   Server
	Registry Registry
	Lock     Lock
	Redis    RedisConfig
	Audit    Audit
	Log      Log
}

// Server captures HTTP adapter configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Registry configures the remote certificate registry client.
type Registry struct {
	BaseURL             string
	Timeout             time.Duration
	ReadRetryMaxElapsed time.Duration
	MaxDocumentBytes    int64
	BreakerFailures     int
	BreakerSuccesses    int
	BreakerCooldown     time.Duration
}

// Lock selects the per-student mutation lock backend.
type Lock struct {
	Backend string // memory | redis
	TTL     time.Duration
}

// RedisConfig configures the shared redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Audit configures the certificate lifecycle audit trail.
type Audit struct {
	Backend       string // memory | postgres
	PostgresDSN   string
	KafkaBrokers  []string
	KafkaTopic    string
	RelayInterval time.Duration
	RelayBatch    int

	// VerifySampleRate is the fraction of verification lookups recorded.
	VerifySampleRate float64
}

// Log configures the slog handler.
type Log struct {
	Level  string
	Format string // json | text
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("registry.base_url", "http://localhost:3008")
	v.SetDefault("registry.timeout", 15*time.Second)
	v.SetDefault("registry.read_retry_max_elapsed", 2*time.Second)
	v.SetDefault("registry.max_document_bytes", int64(10<<20))
	v.SetDefault("registry.breaker_failures", 5)
	v.SetDefault("registry.breaker_successes", 2)
	v.SetDefault("registry.breaker_cooldown", 10*time.Second)

	v.SetDefault("lock.backend", "memory")
	v.SetDefault("lock.ttl", 2*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("audit.backend", "memory")
	v.SetDefault("audit.postgres_dsn", "")
	v.SetDefault("audit.kafka_brokers", []string{})
	v.SetDefault("audit.kafka_topic", "eduverify.audit")
	v.SetDefault("audit.relay_interval", 5*time.Second)
	v.SetDefault("audit.relay_batch", 100)
	v.SetDefault("audit.verify_sample_rate", 1.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// NewViper returns a viper instance with defaults and environment binding.
// When cfgFile is empty, an optional eduverify.yaml in the working directory
// is read if present.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("eduverify")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load materializes a Config from v and validates it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Registry: Registry{
			BaseURL:             strings.TrimRight(v.GetString("registry.base_url"), "/"),
			Timeout:             v.GetDuration("registry.timeout"),
			ReadRetryMaxElapsed: v.GetDuration("registry.read_retry_max_elapsed"),
			MaxDocumentBytes:    v.GetInt64("registry.max_document_bytes"),
			BreakerFailures:     v.GetInt("registry.breaker_failures"),
			BreakerSuccesses:    v.GetInt("registry.breaker_successes"),
			BreakerCooldown:     v.GetDuration("registry.breaker_cooldown"),
		},
		Lock: Lock{
			Backend: strings.ToLower(v.GetString("lock.backend")),
			TTL:     v.GetDuration("lock.ttl"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Audit: Audit{
			Backend:       strings.ToLower(v.GetString("audit.backend")),
			PostgresDSN:   v.GetString("audit.postgres_dsn"),
			KafkaBrokers:  platformstrings.SplitList(v.GetStringSlice("audit.kafka_brokers")),
			KafkaTopic:    v.GetString("audit.kafka_topic"),
			RelayInterval: v.GetDuration("audit.relay_interval"),
			RelayBatch:    v.GetInt("audit.relay_batch"),

			VerifySampleRate: v.GetFloat64("audit.verify_sample_rate"),
		},
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.Registry.BaseURL == "" {
		return errors.New("registry.base_url is required")
	}
	if c.Registry.MaxDocumentBytes <= 0 {
		return errors.New("registry.max_document_bytes must be positive")
	}
	switch c.Lock.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return errors.New("lock.backend=redis requires redis.url")
		}
	default:
		return fmt.Errorf("unknown lock.backend %q", c.Lock.Backend)
	}
	switch c.Audit.Backend {
	case "memory":
	case "postgres":
		if c.Audit.PostgresDSN == "" {
			return errors.New("audit.backend=postgres requires audit.postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown audit.backend %q", c.Audit.Backend)
	}
	return nil
}
