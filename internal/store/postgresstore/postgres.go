// Package postgresstore implements store.Store over PostgreSQL via
// pgxpool, for multi-node durable deployments.
//
// Grounded on internal/config.PostgreSQLConfigStorage: pool-per-store,
// transaction-per-write for atomicity, pgx.ErrNoRows handling. The
// advisory-lock pattern from PostgreSQLLockManager is not adopted here
// -- spec.md's merge contract is per-key last-writer-wins, not a
// cluster-wide mutex, so the transaction around each Merge call is
// sufficient isolation.
package postgresstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitaliisemenov/flagcore/internal/flagerrors"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/store/mergehelper"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// Store implements store.Store over a pgxpool.Pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	nodeID string
	nowFn  version.Clock
}

// Open connects to Postgres at dsn, runs pending migrations, and
// returns a ready Store. now defaults to the wall clock.
func Open(ctx context.Context, dsn string, nodeID string, logger *slog.Logger, now version.Clock) (*Store, error) {
	if dsn == "" {
		return nil, flagerrors.New(flagerrors.StorageError, "postgresstore: dsn must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}

	if err := migrate(dsn); err != nil {
		return nil, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: migrate", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: ping", err)
	}

	s := &Store{pool: pool, logger: logger, nodeID: nodeID, nowFn: now}
	if err := s.ensureVersionRow(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("postgres store opened")
	return s, nil
}

func (s *Store) ensureVersionRow(ctx context.Context) error {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM store_version WHERE id = 1`).Scan(&count)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "postgresstore: check version row", err)
	}
	if count > 0 {
		return nil
	}
	v := version.Make(s.nodeID, "init", s.nowFn)
	_, err = s.pool.Exec(ctx,
		`INSERT INTO store_version (id, version, timestamp, node_id, checksum) VALUES (1, $1, $2, $3, $4)`,
		v.Version, v.Timestamp, v.NodeID, v.Checksum)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "postgresstore: seed version row", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (flagtypes.WithMeta, bool, error) {
	var flagJSON, metaJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT flag_json, meta_json FROM flags WHERE key = $1`, key).
		Scan(&flagJSON, &metaJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return flagtypes.WithMeta{}, false, nil
	}
	if err != nil {
		return flagtypes.WithMeta{}, false, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: get", err)
	}
	entry, err := decodeEntry(flagJSON, metaJSON)
	if err != nil {
		return flagtypes.WithMeta{}, false, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: decode row", err)
	}
	return entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry flagtypes.WithMeta) error {
	flagJSON, metaJSON, err := encodeEntry(entry)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "postgresstore: encode entry", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "postgresstore: begin tx", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO flags (key, flag_json, meta_json, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE SET flag_json = EXCLUDED.flag_json, meta_json = EXCLUDED.meta_json, updated_at = EXCLUDED.updated_at
`, key, flagJSON, metaJSON)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "postgresstore: set", err)
	}
	if err := s.bumpVersionTx(ctx, tx, "set:"+key); err != nil {
		return err
	}
	return wrapPG("postgresstore: commit set", tx.Commit(ctx))
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: begin tx", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM flags WHERE key = $1`, key)
	if err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: delete", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	if err := s.bumpVersionTx(ctx, tx, "delete:"+key); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: commit delete", err)
	}
	return true, nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM flags WHERE key = $1`, key).Scan(&count)
	if err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: has", err)
	}
	return count > 0, nil
}

func (s *Store) List(ctx context.Context) ([]flagtypes.WithMeta, error) {
	rows, err := s.pool.Query(ctx, `SELECT flag_json, meta_json FROM flags`)
	if err != nil {
		return nil, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: list", err)
	}
	defer rows.Close()

	out := []flagtypes.WithMeta{}
	for rows.Next() {
		var flagJSON, metaJSON []byte
		if err := rows.Scan(&flagJSON, &metaJSON); err != nil {
			return nil, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: scan row", err)
		}
		entry, err := decodeEntry(flagJSON, metaJSON)
		if err != nil {
			return nil, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: decode row", err)
		}
		out = append(out, entry)
	}
	return out, wrapPG("postgresstore: iterate rows", rows.Err())
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM flags`)
	if err != nil {
		return nil, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: keys", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: scan key", err)
		}
		out = append(out, key)
	}
	return out, wrapPG("postgresstore: iterate keys", rows.Err())
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM flags`).Scan(&count)
	return count, wrapPG("postgresstore: count", err)
}

func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "postgresstore: begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM flags`); err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "postgresstore: clear", err)
	}
	if err := s.bumpVersionTx(ctx, tx, "clear"); err != nil {
		return err
	}
	return wrapPG("postgresstore: commit clear", tx.Commit(ctx))
}

func (s *Store) GetVersion(ctx context.Context) (version.Vector, error) {
	var v version.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT version, timestamp, node_id, checksum FROM store_version WHERE id = 1`).
		Scan(&v.Version, &v.Timestamp, &v.NodeID, &v.Checksum)
	if err != nil {
		return version.Vector{}, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: get version", err)
	}
	return v, nil
}

func (s *Store) SetVersion(ctx context.Context, v version.Vector) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE store_version SET version=$1, timestamp=$2, node_id=$3, checksum=$4 WHERE id = 1`,
		v.Version, v.Timestamp, v.NodeID, v.Checksum)
	return wrapPG("postgresstore: set version", err)
}

// Merge applies the spec's merge contract inside one transaction, the
// same accept/reject decision as every other backend via mergehelper.
func (s *Store) Merge(ctx context.Context, remote []flagtypes.WithMeta) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: begin merge tx", err)
	}
	defer tx.Rollback(ctx)

	accepted := 0
	for _, entry := range remote {
		var flagJSON, metaJSON []byte
		err := tx.QueryRow(ctx, `SELECT flag_json, meta_json FROM flags WHERE key = $1`, entry.Flag.Key).
			Scan(&flagJSON, &metaJSON)
		exists := err == nil
		var local flagtypes.WithMeta
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return 0, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: merge lookup", err)
		}
		if exists {
			local, err = decodeEntry(flagJSON, metaJSON)
			if err != nil {
				return 0, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: merge decode", err)
			}
		}
		if !mergehelper.Accept(local, exists, entry) {
			continue
		}
		newFlagJSON, newMetaJSON, err := encodeEntry(entry)
		if err != nil {
			return 0, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: merge encode", err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO flags (key, flag_json, meta_json, updated_at) VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE SET flag_json = EXCLUDED.flag_json, meta_json = EXCLUDED.meta_json, updated_at = EXCLUDED.updated_at
`, entry.Flag.Key, newFlagJSON, newMetaJSON)
		if err != nil {
			return 0, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: merge write", err)
		}
		accepted++
	}
	if accepted > 0 {
		if err := s.bumpVersionTx(ctx, tx, "merge"); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, flagerrors.Wrap(flagerrors.StorageError, "postgresstore: commit merge", err)
	}
	return accepted, nil
}

// Compact runs VACUUM (ANALYZE), reclaiming dead tuples while
// preserving all accepted data, per spec.md §6.
func (s *Store) Compact(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `VACUUM ANALYZE flags`)
	return wrapPG("postgresstore: compact", err)
}

// Flush is a no-op: every committed transaction is already durable
// once Postgres acknowledges commit.
func (s *Store) Flush(_ context.Context) error { return nil }

func (s *Store) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

func (s *Store) bumpVersionTx(ctx context.Context, tx pgx.Tx, seed string) error {
	var current version.Vector
	err := tx.QueryRow(ctx,
		`SELECT version, timestamp, node_id, checksum FROM store_version WHERE id = 1`).
		Scan(&current.Version, &current.Timestamp, &current.NodeID, &current.Checksum)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "postgresstore: read version for bump", err)
	}
	next := version.Increment(current, seed, s.nowFn)
	_, err = tx.Exec(ctx,
		`UPDATE store_version SET version=$1, timestamp=$2, node_id=$3, checksum=$4 WHERE id = 1`,
		next.Version, next.Timestamp, next.NodeID, next.Checksum)
	return wrapPG("postgresstore: bump version", err)
}

func wrapPG(message string, err error) error {
	if err == nil {
		return nil
	}
	return flagerrors.Wrap(flagerrors.StorageError, message, err)
}

func encodeEntry(entry flagtypes.WithMeta) ([]byte, []byte, error) {
	fb, err := json.Marshal(entry.Flag)
	if err != nil {
		return nil, nil, err
	}
	mb, err := json.Marshal(entry.Meta)
	if err != nil {
		return nil, nil, err
	}
	return fb, mb, nil
}

func decodeEntry(flagJSON, metaJSON []byte) (flagtypes.WithMeta, error) {
	var entry flagtypes.WithMeta
	if err := json.Unmarshal(flagJSON, &entry.Flag); err != nil {
		return flagtypes.WithMeta{}, err
	}
	if err := json.Unmarshal(metaJSON, &entry.Meta); err != nil {
		return flagtypes.WithMeta{}, err
	}
	return entry, nil
}
