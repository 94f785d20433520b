package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vitaliisemenov/flagcore/internal/store/memorystore"
	"github.com/vitaliisemenov/flagcore/internal/store/postgresstore"
	"github.com/vitaliisemenov/flagcore/internal/store/sqlitestore"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// Backend selects which durable implementation NewStore builds.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Config configures backend selection, grounded on the teacher's
// profile-switch (internal/storage/factory.go): one struct carrying
// every backend's connection info, with only the selected backend's
// fields consulted.
type Config struct {
	Backend    Backend `mapstructure:"backend"`
	NodeID     string  `mapstructure:"node_id"`
	SQLitePath string  `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// NewStore builds the configured backend. Callers that want graceful
// degradation on failure should use NewFallbackStore instead.
func NewStore(ctx context.Context, cfg Config, logger *slog.Logger, now version.Clock) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return Instrument(memorystore.New(cfg.NodeID, logger, now), string(BackendMemory)), nil
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("store: sqlite backend requires sqlite_path")
		}
		s, err := sqlitestore.Open(ctx, cfg.SQLitePath, cfg.NodeID, logger, now)
		if err != nil {
			return nil, err
		}
		return Instrument(s, string(BackendSQLite)), nil
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("store: postgres backend requires postgres_dsn")
		}
		s, err := postgresstore.Open(ctx, cfg.PostgresDSN, cfg.NodeID, logger, now)
		if err != nil {
			return nil, err
		}
		return Instrument(s, string(BackendPostgres)), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// NewFallbackStore builds the configured backend, degrading to an
// in-memory store (with a Warn log) on initialization failure -- the
// same graceful-degradation contract as the teacher's
// NewFallbackStorage, generalized to cover both durable backends
// instead of just one.
func NewFallbackStore(ctx context.Context, cfg Config, logger *slog.Logger, now version.Clock) Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backend == BackendMemory || cfg.Backend == "" {
		return Instrument(memorystore.New(cfg.NodeID, logger, now), string(BackendMemory))
	}

	s, err := NewStore(ctx, cfg, logger, now)
	if err != nil {
		logger.Warn("durable store initialization failed, degrading to in-memory store",
			"backend", cfg.Backend, "error", err)
		return Instrument(memorystore.New(cfg.NodeID, logger, now), string(BackendMemory))
	}
	return s
}
