// Package cache implements flagcore's two-tier cache: a bounded
// in-process L1 (approximate-LRU, hashicorp/golang-lru) and an optional
// Redis-backed L2 for cross-restart and cross-node sharing. It never
// returns an error from its public Get/Put surface -- a miss is a
// value, not a failure (spec.md §7) -- though L2 I/O failures are
// logged and treated as a miss.
//
// Grounded on pkg/history/cache (Manager/L1Cache/L2Cache/Config/errors),
// with LRU eviction generalized from
// internal/infrastructure/template/cache.go's hashicorp/golang-lru usage.
package cache

import (
	"fmt"
	"time"
)

// Config holds the cache's tuning knobs, mirroring spec.md §4.3's
// {max_size, default_ttl_ms, min_ttl_ms, max_ttl_ms, stale_ttl_ms} plus
// the teacher's Redis connection settings for the optional L2 tier.
type Config struct {
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

// DefaultConfig mirrors spec.md §4.3's documented defaults
// (300000/1000/86400000/60000 ms, max_size 1000).
func DefaultConfig() Config {
	return Config{
		MaxSize:       1000,
		DefaultTTL:    300 * time.Second,
		MinTTL:        1 * time.Second,
		MaxTTL:        86400 * time.Second,
		StaleTTL:      60 * time.Second,
		L2Enabled:     false,
		L2TTL:         1 * time.Hour,
		L2Compression: true,
		RedisAddr:     "localhost:6379",
		RedisDB:       0,
		RedisPoolSize: 50,
		RedisMinIdle:  10,
	}
}

// Validate checks the ordering invariants spec.md §4.3's adaptive-policy
// formula depends on (min ≤ default ≤ max).
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("cache: max_size must be > 0")
	}
	if c.DefaultTTL <= 0 {
		return fmt.Errorf("cache: default_ttl must be > 0")
	}
	if c.MinTTL <= 0 || c.MinTTL > c.DefaultTTL {
		return fmt.Errorf("cache: min_ttl must be > 0 and <= default_ttl")
	}
	if c.MaxTTL < c.DefaultTTL {
		return fmt.Errorf("cache: max_ttl must be >= default_ttl")
	}
	if c.StaleTTL < 0 {
		return fmt.Errorf("cache: stale_ttl must be >= 0")
	}
	if c.L2Enabled && c.L2TTL <= 0 {
		return fmt.Errorf("cache: l2_ttl must be > 0 when L2 is enabled")
	}
	return nil
}
