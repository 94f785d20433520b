// Package memorystore implements store.Store backed by an in-memory
// map. Data is lost on restart; it exists for development/testing and
// as a graceful-degradation fallback when a durable backend fails to
// initialize (internal/store/factory.go).
//
// Grounded on internal/storage/memory.MemoryStorage: RWMutex-guarded
// map, deep-copy on every read and write so callers can't mutate
// internal state through a returned value. Unlike the teacher, this
// store does not evict at capacity — bounding the working set is the
// cache's job (internal/cache), not the store's, per spec.md §2.
package memorystore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/store/mergehelper"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// Store implements store.Store over a map guarded by a single RWMutex,
// per spec.md §5's "the store mutex guards the flags map and version."
type Store struct {
	mu      sync.RWMutex
	flags   map[string]flagtypes.WithMeta
	ver     version.Vector
	logger  *slog.Logger
	nodeID  string
	nowFn   version.Clock
}

// New constructs an empty Store. now defaults to the wall clock; tests
// inject a controllable one (spec.md §9).
func New(nodeID string, logger *slog.Logger, now version.Clock) *Store {
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		flags:  make(map[string]flagtypes.WithMeta),
		ver:    version.Make(nodeID, "init", now),
		logger: logger,
		nodeID: nodeID,
		nowFn:  now,
	}
}

func (s *Store) Get(_ context.Context, key string) (flagtypes.WithMeta, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.flags[key]
	if !ok {
		return flagtypes.WithMeta{}, false, nil
	}
	return entry.Clone(), true, nil
}

func (s *Store) Set(_ context.Context, key string, entry flagtypes.WithMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = entry.Clone()
	s.ver = version.Increment(s.ver, "set:"+key, s.nowFn)
	return nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[key]; !ok {
		return false, nil
	}
	delete(s.flags, key)
	s.ver = version.Increment(s.ver, "delete:"+key, s.nowFn)
	return true, nil
}

func (s *Store) Has(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flags[key]
	return ok, nil
}

func (s *Store) List(_ context.Context) ([]flagtypes.WithMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]flagtypes.WithMeta, 0, len(s.flags))
	for _, entry := range s.flags {
		out = append(out, entry.Clone())
	}
	return out, nil
}

func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.flags))
	for key := range s.flags {
		out = append(out, key)
	}
	return out, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flags), nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = make(map[string]flagtypes.WithMeta)
	s.ver = version.Increment(s.ver, "clear", s.nowFn)
	return nil
}

func (s *Store) GetVersion(_ context.Context) (version.Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ver, nil
}

func (s *Store) SetVersion(_ context.Context, v version.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ver = v
	return nil
}

// Merge applies the merge contract from spec.md §4.5, delegating the
// accept/reject decision to mergehelper so every backend agrees.
func (s *Store) Merge(_ context.Context, remote []flagtypes.WithMeta) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := 0
	for _, entry := range remote {
		local, exists := s.flags[entry.Flag.Key]
		if !mergehelper.Accept(local, exists, entry) {
			continue
		}
		s.flags[entry.Flag.Key] = entry.Clone()
		accepted++
	}
	if accepted > 0 {
		s.ver = version.Increment(s.ver, "merge", s.nowFn)
	}
	return accepted, nil
}

// Compact is a no-op: an in-memory map has no underlying layout to
// reorder or reclaim.
func (s *Store) Compact(_ context.Context) error { return nil }

// Flush is a no-op: there is nothing to durably persist.
func (s *Store) Flush(_ context.Context) error { return nil }

// Close discards the map. Safe to call more than once.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = nil
	return nil
}
