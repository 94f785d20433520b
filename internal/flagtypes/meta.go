package flagtypes

import (
	"time"

	"github.com/vitaliisemenov/flagcore/internal/version"
)

// ExpiryPolicy selects how a cache/store entry's TTL is (re)computed.
// The policy lives on FlagMeta because sync/store decide it per entry;
// the cache applies it (internal/cache).
type ExpiryPolicy string

const (
	PolicyAbsolute ExpiryPolicy = "absolute"
	PolicySliding  ExpiryPolicy = "sliding"
	PolicyAdaptive ExpiryPolicy = "adaptive"
)

// Meta is the replication/lifecycle envelope around a Flag.
//
// ExpiresAt is advisory only (spec.md §9 Open Question (c)): evaluation
// never consults it. It exists so a host can layer its own expiry
// enforcement on top without the core needing to know about it.
type Meta struct {
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	Version          version.Vector `json:"version"`
	ExpiresAt        *time.Time     `json:"expiresAt,omitempty"`
	ExpiryPolicy     ExpiryPolicy   `json:"expiryPolicy"`
	LastEvaluatedAt  *time.Time     `json:"lastEvaluatedAt,omitempty"`
	EvaluationCount  uint64         `json:"evaluationCount"`
}

// WithMeta pairs a Flag with its Meta: the unit of storage and
// replication (spec.md §3). The store owns this value; the cache holds
// an independent copy.
type WithMeta struct {
	Flag Flag `json:"flag"`
	Meta Meta `json:"meta"`
}

// Clone returns a deep-enough copy so that callers holding a WithMeta
// from the cache or store can mutate their copy without racing the
// owner's internal state. Slices/maps are copied; Value's JSON payload
// is copied defensively.
func (w WithMeta) Clone() WithMeta {
	clone := w
	if w.Flag.Variants != nil {
		clone.Flag.Variants = append([]string(nil), w.Flag.Variants...)
	}
	if w.Flag.Rules != nil {
		clone.Flag.Rules = append([]TargetingRule(nil), w.Flag.Rules...)
	}
	if w.Flag.Tags != nil {
		clone.Flag.Tags = append([]string(nil), w.Flag.Tags...)
	}
	if w.Flag.Percentage != nil {
		p := *w.Flag.Percentage
		clone.Flag.Percentage = &p
	}
	if w.Flag.Value.JSON != nil {
		clone.Flag.Value.JSON = append([]byte(nil), w.Flag.Value.JSON...)
	}
	if w.Flag.DefaultValue.JSON != nil {
		clone.Flag.DefaultValue.JSON = append([]byte(nil), w.Flag.DefaultValue.JSON...)
	}
	if w.Meta.ExpiresAt != nil {
		t := *w.Meta.ExpiresAt
		clone.Meta.ExpiresAt = &t
	}
	if w.Meta.LastEvaluatedAt != nil {
		t := *w.Meta.LastEvaluatedAt
		clone.Meta.LastEvaluatedAt = &t
	}
	return clone
}
