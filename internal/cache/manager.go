package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/metrics"
)

// Stats mirrors spec.md §4.3's stats() result: {hits, misses, stale_hits,
// evictions, size}; hit_rate = hits/(hits+misses), or 0 with no traffic.
type Stats struct {
	Hits      uint64
	Misses    uint64
	StaleHits uint64
	Evictions uint64
	Size      int
}

// HitRate returns hits/(hits+misses), or 0 if there has been no
// traffic. StaleHits is tracked separately and excluded from both
// halves of the ratio, per spec.md §4.3's fixed formula -- a stale hit
// still returns a (stale) value rather than falling through to the
// store, but it is not counted as a fresh hit here.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Manager is the two-tier cache facade, grounded on
// pkg/history/cache.Manager: L1 (mandatory, in-process) first, L2
// (optional, Redis) on L1 miss. The L1 mutex guards entries and stats
// together (spec.md §5's "the cache mutex guards entries and stats");
// L2 network calls always happen with that mutex released.
type Manager struct {
	mu  sync.Mutex
	l1  *l1Tier
	l2  *l2Tier
	cfg Config

	stats  Stats
	logger *slog.Logger
	nowFn  func() time.Time
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithClock overrides the manager's clock, for deterministic tests
// (spec.md §9's clock-seam requirement).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.nowFn = now }
}

// withL2 attaches a pre-built L2 tier (e.g. over a miniredis client in
// tests, via newL2TierFromClient); production wiring goes through
// NewManager's cfg.L2Enabled path.
func withL2(tier *l2Tier) Option {
	return func(m *Manager) { m.l2 = tier }
}

// NewManager constructs a Manager from cfg. L2 initialization failure
// degrades to L1-only and logs a warning, matching the teacher's
// graceful-degradation philosophy (pkg/history/cache.NewManager).
func NewManager(cfg Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l1, err := newL1Tier(cfg.MaxSize)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		l1:     l1,
		cfg:    cfg,
		logger: logger,
		nowFn:  time.Now,
	}

	if cfg.L2Enabled {
		l2, err := newL2Tier(cfg, logger)
		if err != nil {
			logger.Warn("cache: L2 init failed, continuing L1-only", "error", err)
		} else {
			m.l2 = l2
		}
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Put inserts or overwrites key's entry, per spec.md §4.3: evict if
// needed, then insert. Never returns an error; L2 write failures are
// logged and otherwise ignored, since L1 still carries the entry.
func (m *Manager) Put(ctx context.Context, key string, value flagtypes.WithMeta, policy flagtypes.ExpiryPolicy, lastChanged *time.Time) {
	now := m.nowFn()
	entry := newEntry(value, policy, now, m.cfg, lastChanged)

	m.mu.Lock()
	evicted := m.l1.put(key, entry)
	m.stats.Evictions += uint64(evicted)
	m.stats.Size = m.l1.len()
	size := m.stats.Size
	m.mu.Unlock()

	metrics.RecordCacheEviction("l1", evicted)
	metrics.SetCacheSize("l1", size)

	if m.l2 != nil {
		start := time.Now()
		if err := m.l2.set(ctx, key, value.Clone()); err != nil {
			metrics.RecordCacheError("l2", "set")
			m.logger.Warn("cache l2 set failed", "key", key, "error", err)
		}
		metrics.CacheLatency.WithLabelValues("l2", "set").Observe(time.Since(start).Seconds())
	}
}

// Get returns (value, state, found). A miss (not found, or Expired) is a
// value, never an error, per spec.md §4.3/§7.
func (m *Manager) Get(ctx context.Context, key string) (flagtypes.WithMeta, State, bool) {
	now := m.nowFn()

	m.mu.Lock()
	entry, found := m.l1.get(key)
	if found {
		state := entry.stateAt(now)
		if state == StateExpired {
			m.l1.remove(key)
			found = false
		} else {
			entry.touch(now)
			if entry.Policy == flagtypes.PolicySliding {
				entry.reanchor(now, m.cfg)
			}
			if state == StateFresh {
				m.stats.Hits++
			} else {
				m.stats.StaleHits++
			}
			value := entry.Value.Clone()
			m.mu.Unlock()
			metrics.RecordCacheHit("l1", string(state))
			return value, state, true
		}
	}
	m.mu.Unlock()
	metrics.RecordCacheMiss("l1")

	if m.l2 == nil {
		m.mu.Lock()
		m.stats.Misses++
		m.mu.Unlock()
		return flagtypes.WithMeta{}, StateExpired, false
	}

	value, ok := m.l2.get(ctx, key)
	if !ok {
		metrics.RecordCacheMiss("l2")
		m.mu.Lock()
		m.stats.Misses++
		m.mu.Unlock()
		return flagtypes.WithMeta{}, StateExpired, false
	}

	metrics.RecordCacheHit("l2", string(StateFresh))
	m.mu.Lock()
	m.stats.Hits++
	m.mu.Unlock()
	m.Put(ctx, key, value, flagtypes.PolicyAbsolute, nil)
	return value, StateFresh, true
}

// GetFresh ignores stale entries, returning found=false for a Stale hit.
func (m *Manager) GetFresh(ctx context.Context, key string) (flagtypes.WithMeta, bool) {
	value, state, found := m.Get(ctx, key)
	if !found || state != StateFresh {
		return flagtypes.WithMeta{}, false
	}
	return value, true
}

// GetWithStale returns (value, isStale, found), treating a Stale hit as
// found=true with isStale=true -- stale-while-revalidate's read side.
func (m *Manager) GetWithStale(ctx context.Context, key string) (flagtypes.WithMeta, bool, bool) {
	value, state, found := m.Get(ctx, key)
	if !found {
		return flagtypes.WithMeta{}, false, false
	}
	return value, state == StateStale, true
}

// Remove deletes key from both tiers, returning whether L1 held it.
func (m *Manager) Remove(ctx context.Context, key string) bool {
	m.mu.Lock()
	removed := m.l1.remove(key)
	m.stats.Size = m.l1.len()
	m.mu.Unlock()

	if m.l2 != nil {
		if err := m.l2.remove(ctx, key); err != nil {
			metrics.RecordCacheError("l2", "del")
			m.logger.Warn("cache l2 remove failed", "key", key, "error", err)
		}
	}
	return removed
}

// PurgeExpired drops all L1 entries with now >= stale_at, returning the
// count dropped, per spec.md §4.3. L2 entries expire on their own Redis
// TTL and are not separately purged.
func (m *Manager) PurgeExpired() int {
	now := m.nowFn()
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for _, key := range m.l1.keys() {
		entry, ok := m.l1.peek(key)
		if ok && entry.stateAt(now) == StateExpired {
			m.l1.remove(key)
			dropped++
		}
	}
	m.stats.Size = m.l1.len()
	return dropped
}

// Stats returns a snapshot of {hits, misses, stale_hits, evictions, size}.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.Size = m.l1.len()
	return s
}

// Clear purges the L1 tier entirely (internal/client's purge_cache).
func (m *Manager) Clear() {
	m.mu.Lock()
	m.l1.purge()
	m.stats.Size = 0
	m.mu.Unlock()
}

// Close releases the L2 connection, if any.
func (m *Manager) Close() error {
	if m.l2 == nil {
		return nil
	}
	return m.l2.close()
}
