package cache

import (
	"time"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
)

// State is a CacheEntry's freshness relative to now, per spec.md §4.3.
type State string

const (
	StateFresh   State = "fresh"
	StateStale   State = "stale"
	StateExpired State = "expired"
)

// Entry is CacheEntry⟨T⟩ from spec.md §4.1: {value, cached_at, expires_at,
// stale_at, access_count, last_accessed_at, policy}. Invariants:
// cached_at ≤ expires_at ≤ stale_at; access_count is non-decreasing;
// last_accessed_at is updated on every read.
type Entry[T any] struct {
	Value          T
	CachedAt       time.Time
	ExpiresAt      time.Time
	StaleAt        time.Time
	AccessCount    uint64
	LastAccessedAt time.Time
	Policy         flagtypes.ExpiryPolicy
	LastChanged    *time.Time
}

// newEntry computes expires_at/stale_at per policy at put time
// (spec.md §4.3's three expiry formulas).
func newEntry[T any](value T, policy flagtypes.ExpiryPolicy, now time.Time, cfg Config, lastChanged *time.Time) *Entry[T] {
	e := &Entry[T]{
		Value:          value,
		CachedAt:       now,
		LastAccessedAt: now,
		Policy:         policy,
		LastChanged:    lastChanged,
	}
	e.ExpiresAt, e.StaleAt = computeExpiry(policy, now, cfg, lastChanged)
	return e
}

func computeExpiry(policy flagtypes.ExpiryPolicy, now time.Time, cfg Config, lastChanged *time.Time) (expiresAt, staleAt time.Time) {
	switch policy {
	case flagtypes.PolicyAdaptive:
		stability := 1.0
		if lastChanged != nil {
			stability = now.Sub(*lastChanged).Seconds() / cfg.DefaultTTL.Seconds()
			stability = clamp(stability, 0, 10)
		}
		ttl := time.Duration(float64(cfg.DefaultTTL) * (1 + stability))
		ttl = clampDuration(ttl, cfg.MinTTL, cfg.MaxTTL)
		expiresAt = now.Add(ttl)
		staleAt = expiresAt.Add(cfg.StaleTTL)
	default: // Absolute and Sliding compute identically at put time.
		expiresAt = now.Add(cfg.DefaultTTL)
		staleAt = expiresAt.Add(cfg.StaleTTL)
	}
	return expiresAt, staleAt
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// stateAt reports the entry's freshness relative to now.
func (e *Entry[T]) stateAt(now time.Time) State {
	switch {
	case now.Before(e.ExpiresAt):
		return StateFresh
	case now.Before(e.StaleAt):
		return StateStale
	default:
		return StateExpired
	}
}

// touch records an access: access_count increments, last_accessed_at
// advances to now.
func (e *Entry[T]) touch(now time.Time) {
	e.AccessCount++
	e.LastAccessedAt = now
}

// reanchor re-anchors expires_at/stale_at to now, the Sliding policy's
// on-every-successful-get behavior.
func (e *Entry[T]) reanchor(now time.Time, cfg Config) {
	e.ExpiresAt = now.Add(cfg.DefaultTTL)
	e.StaleAt = e.ExpiresAt.Add(cfg.StaleTTL)
}
