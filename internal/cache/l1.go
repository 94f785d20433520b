package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
)

// l1Tier is the in-process tier: an hashicorp/golang-lru-backed bounded
// map. Unlike the teacher's hand-rolled evictOldest linear scan
// (pkg/history/cache.L1Cache), eviction cost here is O(1) per evicted
// entry regardless of map size.
//
// l1Tier is not safe for concurrent use on its own -- callers (Manager)
// serialize access under a single mutex, per spec.md §5's
// one-mutex-per-component discipline, so entry mutation (touch/reanchor)
// and map access stay consistent under one lock.
type l1Tier struct {
	cache   *lru.Cache[string, *Entry[flagtypes.WithMeta]]
	maxSize int
}

func newL1Tier(maxSize int) (*l1Tier, error) {
	c, err := lru.New[string, *Entry[flagtypes.WithMeta]](maxSize)
	if err != nil {
		return nil, err
	}
	return &l1Tier{cache: c, maxSize: maxSize}, nil
}

func (t *l1Tier) get(key string) (*Entry[flagtypes.WithMeta], bool) {
	return t.cache.Get(key)
}

func (t *l1Tier) peek(key string) (*Entry[flagtypes.WithMeta], bool) {
	return t.cache.Peek(key)
}

// put evicts the floor(maxSize/10) (at least one) least-recently-accessed entries when
// at capacity, then inserts, per spec.md §4.3's evict-if-needed rule. It
// returns the number of entries evicted.
func (t *l1Tier) put(key string, e *Entry[flagtypes.WithMeta]) int {
	evicted := 0
	if _, exists := t.cache.Peek(key); !exists && t.cache.Len() >= t.maxSize {
		toEvict := t.maxSize / 10
		if toEvict < 1 {
			toEvict = 1
		}
		for i := 0; i < toEvict && t.cache.Len() > 0; i++ {
			if _, _, ok := t.cache.RemoveOldest(); ok {
				evicted++
			}
		}
	}
	t.cache.Add(key, e)
	return evicted
}

func (t *l1Tier) remove(key string) bool {
	return t.cache.Remove(key)
}

func (t *l1Tier) len() int { return t.cache.Len() }

func (t *l1Tier) keys() []string { return t.cache.Keys() }

func (t *l1Tier) purge() { t.cache.Purge() }
