package evaluator

import (
	"regexp"
	"sync"
)

// regexCache memoizes compiled patterns by source text, the same
// cache-by-pattern shape as internal/business/routing.RegexCache in the
// teacher, generalized from route matchers to targeting rules. A bounded
// size keeps a pathological rule set (many distinct, attacker-controlled
// patterns) from growing the cache without limit.
type regexCache struct {
	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
	maxSize  int
}

func newRegexCache(maxSize int) *regexCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &regexCache{
		patterns: make(map[string]*regexp.Regexp),
		maxSize:  maxSize,
	}
}

// compile returns a compiled regexp for pattern, using the cache when
// possible. Invalid patterns return (nil, false) -- callers must treat
// this as "rule does not match", never as a reason to abort evaluation
// (spec.md §7).
func (c *regexCache) compile(pattern string) (*regexp.Regexp, bool) {
	c.mu.RLock()
	re, ok := c.patterns[pattern]
	c.mu.RUnlock()
	if ok {
		return re, true
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}

	c.mu.Lock()
	if len(c.patterns) >= c.maxSize {
		// Approximate bound: drop one arbitrary entry rather than grow
		// unbounded. Map iteration order is already randomized by Go.
		for k := range c.patterns {
			delete(c.patterns, k)
			break
		}
	}
	c.patterns[pattern] = re
	c.mu.Unlock()

	return re, true
}

var defaultRegexCache = newRegexCache(1000)
