package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
)

func TestL1TierEvictsApproximateTenPercentAtCapacity(t *testing.T) {
	tier, err := newL1Tier(10)
	require.NoError(t, err)

	cfg := Config{DefaultTTL: time.Minute, StaleTTL: time.Minute, MinTTL: time.Second, MaxTTL: time.Hour}
	now := time.Unix(0, 0)

	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		tier.put(key, newEntry(flagtypes.WithMeta{Flag: flagtypes.Flag{Key: key}}, flagtypes.PolicyAbsolute, now, cfg, nil))
	}
	assert.Equal(t, 10, tier.len())

	evicted := tier.put("overflow", newEntry(flagtypes.WithMeta{Flag: flagtypes.Flag{Key: "overflow"}}, flagtypes.PolicyAbsolute, now, cfg, nil))
	assert.GreaterOrEqual(t, evicted, 1)
	assert.LessOrEqual(t, tier.len(), 10)
}

func TestL1TierPeekFindsAndRemoveDeletes(t *testing.T) {
	tier, err := newL1Tier(10)
	require.NoError(t, err)

	cfg := Config{DefaultTTL: time.Minute, StaleTTL: time.Minute, MinTTL: time.Second, MaxTTL: time.Hour}
	now := time.Unix(0, 0)
	tier.put("a", newEntry(flagtypes.WithMeta{Flag: flagtypes.Flag{Key: "a"}}, flagtypes.PolicyAbsolute, now, cfg, nil))

	_, ok := tier.peek("a")
	assert.True(t, ok)
	assert.True(t, tier.remove("a"))
	_, ok = tier.peek("a")
	assert.False(t, ok)
}
