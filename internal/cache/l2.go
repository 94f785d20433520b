package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
)

// l2Tier is the optional Redis-backed distributed tier, grounded on
// pkg/history/cache.L2Cache: gzip-compressed JSON blobs, a fixed TTL
// independent of the L1 policy math (L2 exists to survive process
// restarts and to share warm state across nodes, not to carry the full
// CacheEntry bookkeeping).
type l2Tier struct {
	client      *redis.Client
	ttl         time.Duration
	compression bool
	logger      *slog.Logger
}

func newL2Tier(cfg Config, logger *slog.Logger) (*l2Tier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdle,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}

	return &l2Tier{client: client, ttl: cfg.L2TTL, compression: cfg.L2Compression, logger: logger}, nil
}

// newL2TierFromClient wires an already-constructed redis client, used by
// tests against miniredis so they don't depend on a live server.
func newL2TierFromClient(client *redis.Client, ttl time.Duration, compression bool, logger *slog.Logger) *l2Tier {
	if logger == nil {
		logger = slog.Default()
	}
	return &l2Tier{client: client, ttl: ttl, compression: compression, logger: logger}
}

func (t *l2Tier) get(ctx context.Context, key string) (flagtypes.WithMeta, bool) {
	data, err := t.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return flagtypes.WithMeta{}, false
	}
	if err != nil {
		t.logger.Warn("cache l2 get failed", "key", key, "error", err)
		return flagtypes.WithMeta{}, false
	}

	if t.compression {
		data, err = gunzip(data)
		if err != nil {
			t.logger.Warn("cache l2 decompress failed", "key", key, "error", err)
			return flagtypes.WithMeta{}, false
		}
	}

	var value flagtypes.WithMeta
	if err := json.Unmarshal(data, &value); err != nil {
		t.logger.Warn("cache l2 unmarshal failed", "key", key, "error", err)
		return flagtypes.WithMeta{}, false
	}
	return value, true
}

func (t *l2Tier) set(ctx context.Context, key string, value flagtypes.WithMeta) error {
	data, err := json.Marshal(value)
	if err != nil {
		return wrapL2("marshal", err)
	}
	if t.compression {
		data, err = gzipBytes(data)
		if err != nil {
			return wrapL2("compress", err)
		}
	}
	if err := t.client.Set(ctx, key, data, t.ttl).Err(); err != nil {
		return wrapL2("set", err)
	}
	return nil
}

func (t *l2Tier) remove(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return wrapL2("del", err)
	}
	return nil
}

func (t *l2Tier) close() error { return t.client.Close() }

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
