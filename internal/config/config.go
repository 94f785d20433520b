// Package config loads flagcore's top-level configuration: cache, audit,
// store, server, and logging settings, via github.com/spf13/viper with
// FLAGCORE_* environment overrides, the same shape as the teacher's
// internal/config.Config (profile/storage/server/database/.../log
// sections, viper.SetDefault + Validate()).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vitaliisemenov/flagcore/internal/audit"
	"github.com/vitaliisemenov/flagcore/internal/cache"
	"github.com/vitaliisemenov/flagcore/internal/store"
	flagsync "github.com/vitaliisemenov/flagcore/internal/sync"
	"github.com/vitaliisemenov/flagcore/pkg/logger"
)

// Config is flagcore's top-level configuration surface (spec.md's
// SPEC_FULL §2.2): Cache, Audit, Store, Server, Sync, Log.
type Config struct {
	Cache  CacheConfig  `mapstructure:"cache"`
	Audit  AuditConfig  `mapstructure:"audit"`
	Store  StoreConfig  `mapstructure:"store"`
	Server ServerConfig `mapstructure:"server"`
	Sync   SyncConfig   `mapstructure:"sync"`
	Log    LogConfig    `mapstructure:"log"`
}

// CacheConfig mirrors internal/cache.Config's tuning knobs.
type CacheConfig struct {
	MaxSize    int           `mapstructure:"max_size"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	MinTTL     time.Duration `mapstructure:"min_ttl"`
	MaxTTL     time.Duration `mapstructure:"max_ttl"`
	StaleTTL   time.Duration `mapstructure:"stale_ttl"`

	L2Enabled     bool          `mapstructure:"l2_enabled"`
	L2TTL         time.Duration `mapstructure:"l2_ttl"`
	L2Compression bool          `mapstructure:"l2_compression"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisPoolSize int           `mapstructure:"redis_pool_size"`
	RedisMinIdle  int           `mapstructure:"redis_min_idle"`
}

// ToCacheConfig converts to internal/cache.Config.
func (c CacheConfig) ToCacheConfig() cache.Config {
	return cache.Config{
		MaxSize:       c.MaxSize,
		DefaultTTL:    c.DefaultTTL,
		MinTTL:        c.MinTTL,
		MaxTTL:        c.MaxTTL,
		StaleTTL:      c.StaleTTL,
		L2Enabled:     c.L2Enabled,
		L2TTL:         c.L2TTL,
		L2Compression: c.L2Compression,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		RedisPoolSize: c.RedisPoolSize,
		RedisMinIdle:  c.RedisMinIdle,
	}
}

// AuditConfig mirrors internal/audit.Config, with retention expressed as
// a day count on the wire (mapstructure/env-friendly) rather than a
// raw duration.
type AuditConfig struct {
	MaxRecords        int  `mapstructure:"max_records"`
	RetentionDays     int  `mapstructure:"retention_days"`
	EvaluationLogging bool `mapstructure:"evaluation_logging"`
}

// ToAuditConfig converts to internal/audit.Config.
func (a AuditConfig) ToAuditConfig() audit.Config {
	return audit.Config{
		MaxRecords:        a.MaxRecords,
		Retention:         time.Duration(a.RetentionDays) * 24 * time.Hour,
		EvaluationLogging: a.EvaluationLogging,
	}
}

// StoreConfig selects and configures the durable store backend.
type StoreConfig struct {
	Backend     string `mapstructure:"backend"`
	NodeID      string `mapstructure:"node_id"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ToStoreConfig converts to internal/store.Config.
func (s StoreConfig) ToStoreConfig() store.Config {
	return store.Config{
		Backend:     store.Backend(s.Backend),
		NodeID:      s.NodeID,
		SQLitePath:  s.SQLitePath,
		PostgresDSN: s.PostgresDSN,
	}
}

// ServerConfig configures the façade's HTTP surface.
type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// SyncConfig configures the optional background poller against a
// remote flag source (internal/sync.Poller). Transport is "none"
// (no polling), "sse", or "push"; RemoteURL feeds the chosen
// transport's source constructor.
type SyncConfig struct {
	Transport    string        `mapstructure:"transport"`
	RemoteURL    string        `mapstructure:"remote_url"`
	Interval     time.Duration `mapstructure:"interval"`
	WarmupPeriod time.Duration `mapstructure:"warmup_period"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BaseBackoff  time.Duration `mapstructure:"base_backoff"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"`
	ActorID      string        `mapstructure:"actor_id"`
}

// ToPollerConfig converts to internal/sync.Config's fields, minus
// Transport/RemoteURL which cmd/flagcored uses to select and build a
// RemoteSource before constructing the Poller.
func (s SyncConfig) ToPollerConfig() flagsync.Config {
	return flagsync.Config{
		Interval:     s.Interval,
		WarmupPeriod: s.WarmupPeriod,
		FetchTimeout: s.FetchTimeout,
		MaxRetries:   s.MaxRetries,
		BaseBackoff:  s.BaseBackoff,
		MaxBackoff:   s.MaxBackoff,
		ActorID:      s.ActorID,
	}
}

// LogConfig configures pkg/logger's slog setup.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerConfig converts to pkg/logger.Config.
func (l LogConfig) ToLoggerConfig() logger.Config {
	return logger.Config{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		Filename:   l.Filename,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
	}
}

// Load reads configuration from configPath (if non-empty) and
// environment variables prefixed FLAGCORE_ (with "." replaced by "_"),
// applying defaults first, same precedence order as the teacher's
// LoadConfig.
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("flagcore")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("cache.max_size", 1000)
	viper.SetDefault("cache.default_ttl", "300s")
	viper.SetDefault("cache.min_ttl", "1s")
	viper.SetDefault("cache.max_ttl", "86400s")
	viper.SetDefault("cache.stale_ttl", "60s")
	viper.SetDefault("cache.l2_enabled", false)
	viper.SetDefault("cache.l2_ttl", "1h")
	viper.SetDefault("cache.l2_compression", true)
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.redis_db", 0)
	viper.SetDefault("cache.redis_pool_size", 50)
	viper.SetDefault("cache.redis_min_idle", 10)

	viper.SetDefault("audit.max_records", 100000)
	viper.SetDefault("audit.retention_days", 90)
	viper.SetDefault("audit.evaluation_logging", false)

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.node_id", "")
	viper.SetDefault("store.sqlite_path", "")
	viper.SetDefault("store.postgres_dsn", "")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown_timeout", "30s")

	viper.SetDefault("sync.transport", "none")
	viper.SetDefault("sync.remote_url", "")
	viper.SetDefault("sync.interval", "5m")
	viper.SetDefault("sync.warmup_period", "30s")
	viper.SetDefault("sync.fetch_timeout", "30s")
	viper.SetDefault("sync.max_retries", 5)
	viper.SetDefault("sync.base_backoff", "30s")
	viper.SetDefault("sync.max_backoff", "5m")
	viper.SetDefault("sync.actor_id", "sync-poller")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.filename", "")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)
}

// Validate checks the invariants the teacher's StorageConfig/CacheConfig
// validators check: TTL orderings, capacity bounds, a valid backend
// selection and node ID.
func (c *Config) Validate() error {
	if c.Cache.MaxSize <= 0 {
		return fmt.Errorf("config: cache.max_size must be > 0")
	}
	if c.Cache.MinTTL <= 0 || c.Cache.MinTTL > c.Cache.DefaultTTL {
		return fmt.Errorf("config: cache.min_ttl must be > 0 and <= cache.default_ttl")
	}
	if c.Cache.MaxTTL < c.Cache.DefaultTTL {
		return fmt.Errorf("config: cache.max_ttl must be >= cache.default_ttl")
	}

	if c.Audit.MaxRecords <= 0 {
		return fmt.Errorf("config: audit.max_records must be > 0")
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("config: audit.retention_days must be >= 0")
	}

	switch store.Backend(c.Store.Backend) {
	case store.BackendMemory, "":
	case store.BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("config: store.sqlite_path required when store.backend=sqlite")
		}
	case store.BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("config: store.postgres_dsn required when store.backend=postgres")
		}
	default:
		return fmt.Errorf("config: invalid store.backend %q (must be memory, sqlite, or postgres)", c.Store.Backend)
	}
	if c.Store.Backend != string(store.BackendMemory) && c.Store.Backend != "" && c.Store.NodeID == "" {
		return fmt.Errorf("config: store.node_id required for durable backends")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("config: server.host must not be empty")
	}

	switch c.Sync.Transport {
	case "none", "":
	case "sse", "push":
		if c.Sync.RemoteURL == "" {
			return fmt.Errorf("config: sync.remote_url required when sync.transport=%s", c.Sync.Transport)
		}
	default:
		return fmt.Errorf("config: invalid sync.transport %q (must be none, sse, or push)", c.Sync.Transport)
	}

	if c.Log.Level == "" {
		return fmt.Errorf("config: log.level must not be empty")
	}

	return nil
}
