// Package sqlitestore implements store.Store over a SQLite database,
// for single-node durable deployments that don't need Postgres.
//
// Grounded on internal/storage/sqlite.SQLiteStorage: WAL mode, pure-Go
// driver, goose-managed schema, shared-cache DSN. Generalized from the
// alert table to a flag table (key, flag_json, meta_json) plus a
// single-row store_version table holding the top-level VersionVector.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vitaliisemenov/flagcore/internal/flagerrors"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/store/mergehelper"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// Store implements store.Store over a SQLite file. The connection pool
// serializes writes the way the teacher's SQLiteStorage relies on
// SQLite's own locking rather than an in-process mutex for data access;
// mu here only protects the *sql.DB pointer across Close.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
	nodeID string
	nowFn  version.Clock
	mu     sync.RWMutex
}

// Open creates or opens a SQLite-backed store at path, running pending
// migrations. now defaults to the wall clock.
func Open(ctx context.Context, path string, nodeID string, logger *slog.Logger, now version.Clock) (*Store, error) {
	if path == "" {
		return nil, flagerrors.New(flagerrors.StorageError, "sqlitestore: path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: create parent directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: open database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: ping database", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: enable foreign keys", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: migrate", err)
	}

	s := &Store{db: db, logger: logger, path: path, nodeID: nodeID, nowFn: now}

	if err := s.ensureVersionRow(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite store opened", "path", path, "wal_mode", true)
	return s, nil
}

func (s *Store) ensureVersionRow(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM store_version WHERE id = 1").Scan(&count); err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: check version row", err)
	}
	if count > 0 {
		return nil
	}
	v := version.Make(s.nodeID, "init", s.nowFn)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO store_version (id, version, timestamp, node_id, checksum) VALUES (1, ?, ?, ?, ?)`,
		v.Version, v.Timestamp, v.NodeID, v.Checksum)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: seed version row", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (flagtypes.WithMeta, bool, error) {
	var flagJSON, metaJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT flag_json, meta_json FROM flags WHERE key = ?`, key).Scan(&flagJSON, &metaJSON)
	if err == sql.ErrNoRows {
		return flagtypes.WithMeta{}, false, nil
	}
	if err != nil {
		return flagtypes.WithMeta{}, false, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: get", err)
	}
	entry, err := decodeEntry(flagJSON, metaJSON)
	if err != nil {
		return flagtypes.WithMeta{}, false, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: decode row", err)
	}
	return entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry flagtypes.WithMeta) error {
	flagJSON, metaJSON, err := encodeEntry(entry)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: encode entry", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: begin tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO flags (key, flag_json, meta_json, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET flag_json = excluded.flag_json, meta_json = excluded.meta_json, updated_at = excluded.updated_at
`, key, flagJSON, metaJSON, s.nowFn())
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: set", err)
	}
	if err := s.bumpVersionTx(ctx, tx, "set:"+key); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: commit set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: begin tx", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM flags WHERE key = ?`, key)
	if err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: delete", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return false, nil
	}
	if err := s.bumpVersionTx(ctx, tx, "delete:"+key); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: commit delete", err)
	}
	return true, nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flags WHERE key = ?`, key).Scan(&count); err != nil {
		return false, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: has", err)
	}
	return count > 0, nil
}

func (s *Store) List(ctx context.Context) ([]flagtypes.WithMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT flag_json, meta_json FROM flags`)
	if err != nil {
		return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: list", err)
	}
	defer rows.Close()

	out := []flagtypes.WithMeta{}
	for rows.Next() {
		var flagJSON, metaJSON string
		if err := rows.Scan(&flagJSON, &metaJSON); err != nil {
			return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: scan row", err)
		}
		entry, err := decodeEntry(flagJSON, metaJSON)
		if err != nil {
			return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: decode row", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM flags`)
	if err != nil {
		return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: keys", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: scan key", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flags`).Scan(&count); err != nil {
		return 0, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: count", err)
	}
	return count, nil
}

func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM flags`); err != nil {
		return flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: clear", err)
	}
	if err := s.bumpVersionTx(ctx, tx, "clear"); err != nil {
		return err
	}
	return wrapStorage("sqlitestore: commit clear", tx.Commit())
}

func (s *Store) GetVersion(ctx context.Context) (version.Vector, error) {
	var v version.Vector
	err := s.db.QueryRowContext(ctx,
		`SELECT version, timestamp, node_id, checksum FROM store_version WHERE id = 1`).
		Scan(&v.Version, &v.Timestamp, &v.NodeID, &v.Checksum)
	if err != nil {
		return version.Vector{}, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: get version", err)
	}
	return v, nil
}

func (s *Store) SetVersion(ctx context.Context, v version.Vector) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE store_version SET version=?, timestamp=?, node_id=?, checksum=? WHERE id = 1`,
		v.Version, v.Timestamp, v.NodeID, v.Checksum)
	return wrapStorage("sqlitestore: set version", err)
}

// Merge applies the spec's merge contract inside one transaction: each
// remote entry is written iff mergehelper.Accept says so; the store
// version is bumped once at the end if anything was accepted.
func (s *Store) Merge(ctx context.Context, remote []flagtypes.WithMeta) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: begin merge tx", err)
	}
	defer tx.Rollback()

	accepted := 0
	for _, entry := range remote {
		var metaJSON string
		var flagJSON string
		err := tx.QueryRowContext(ctx, `SELECT flag_json, meta_json FROM flags WHERE key = ?`, entry.Flag.Key).
			Scan(&flagJSON, &metaJSON)
		var local flagtypes.WithMeta
		exists := err == nil
		if err != nil && err != sql.ErrNoRows {
			return 0, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: merge lookup", err)
		}
		if exists {
			local, err = decodeEntry(flagJSON, metaJSON)
			if err != nil {
				return 0, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: merge decode", err)
			}
		}
		if !mergehelper.Accept(local, exists, entry) {
			continue
		}
		newFlagJSON, newMetaJSON, err := encodeEntry(entry)
		if err != nil {
			return 0, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: merge encode", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO flags (key, flag_json, meta_json, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET flag_json = excluded.flag_json, meta_json = excluded.meta_json, updated_at = excluded.updated_at
`, entry.Flag.Key, newFlagJSON, newMetaJSON, s.nowFn())
		if err != nil {
			return 0, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: merge write", err)
		}
		accepted++
	}
	if accepted > 0 {
		if err := s.bumpVersionTx(ctx, tx, "merge"); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, flagerrors.Wrap(flagerrors.StorageError, "sqlitestore: commit merge", err)
	}
	return accepted, nil
}

// Compact runs SQLite's VACUUM, reclaiming space from deleted rows
// while preserving all accepted data, per spec.md §6.
func (s *Store) Compact(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `VACUUM`)
	return wrapStorage("sqlitestore: compact", err)
}

// Flush checkpoints the WAL into the main database file
// (PRAGMA wal_checkpoint(TRUNCATE)); every prior Exec has already
// committed by the time it returns.
func (s *Store) Flush(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return wrapStorage("sqlitestore: flush", err)
}

func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return wrapStorage("sqlitestore: close", err)
}

func (s *Store) bumpVersionTx(ctx context.Context, tx *sql.Tx, seed string) error {
	var current version.Vector
	err := tx.QueryRowContext(ctx,
		`SELECT version, timestamp, node_id, checksum FROM store_version WHERE id = 1`).
		Scan(&current.Version, &current.Timestamp, &current.NodeID, &current.Checksum)
	if err != nil {
		return wrapStorage("sqlitestore: read version for bump", err)
	}
	next := version.Increment(current, seed, s.nowFn)
	_, err = tx.ExecContext(ctx,
		`UPDATE store_version SET version=?, timestamp=?, node_id=?, checksum=? WHERE id = 1`,
		next.Version, next.Timestamp, next.NodeID, next.Checksum)
	return wrapStorage("sqlitestore: bump version", err)
}

// wrapStorage wraps a non-nil error as a StorageError; a nil err passes
// through as nil rather than becoming a non-nil *Error with a nil cause.
func wrapStorage(message string, err error) error {
	if err == nil {
		return nil
	}
	return flagerrors.Wrap(flagerrors.StorageError, message, err)
}

func encodeEntry(entry flagtypes.WithMeta) (flagJSON string, metaJSON string, err error) {
	fb, err := json.Marshal(entry.Flag)
	if err != nil {
		return "", "", err
	}
	mb, err := json.Marshal(entry.Meta)
	if err != nil {
		return "", "", err
	}
	return string(fb), string(mb), nil
}

func decodeEntry(flagJSON, metaJSON string) (flagtypes.WithMeta, error) {
	var entry flagtypes.WithMeta
	if err := json.Unmarshal([]byte(flagJSON), &entry.Flag); err != nil {
		return flagtypes.WithMeta{}, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &entry.Meta); err != nil {
		return flagtypes.WithMeta{}, err
	}
	return entry, nil
}
