package memorystore_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/store/memorystore"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(n *int64) version.Clock {
	return func() int64 { return *n }
}

func testEntry(key string, ver version.Vector) flagtypes.WithMeta {
	return flagtypes.WithMeta{
		Flag: flagtypes.Flag{
			Key:   key,
			Kind:  flagtypes.KindFlagBoolean,
			State: flagtypes.StateEnabled,
			Value: flagtypes.BoolValue(true),
		},
		Meta: flagtypes.Meta{Version: ver},
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	entry := testEntry("flag-a", version.Make("node-a", "seed", fixedClock(&clock)))
	require.NoError(t, s.Set(ctx, "flag-a", entry))

	got, ok, err := s.Get(ctx, "flag-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "flag-a", got.Flag.Key)
}

func TestGetMissingReturnsFalseNoError(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	_, ok, err := s.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	entry := testEntry("flag-a", version.Make("node-a", "seed", fixedClock(&clock)))
	entry.Flag.Tags = []string{"a"}
	require.NoError(t, s.Set(ctx, "flag-a", entry))

	got, _, _ := s.Get(ctx, "flag-a")
	got.Flag.Tags[0] = "mutated"

	again, _, _ := s.Get(ctx, "flag-a")
	assert.Equal(t, "a", again.Flag.Tags[0])
}

func TestDeleteReportsExistence(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	ok, err := s.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "flag-a", testEntry("flag-a", version.Vector{})))
	ok, err = s.Delete(ctx, "flag-a")
	require.NoError(t, err)
	assert.True(t, ok)

	has, _ := s.Has(ctx, "flag-a")
	assert.False(t, has)
}

func TestCountKeysList(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	require.NoError(t, s.Set(ctx, "a", testEntry("a", version.Vector{})))
	require.NoError(t, s.Set(ctx, "b", testEntry("b", version.Vector{})))

	count, _ := s.Count(ctx)
	assert.Equal(t, 2, count)

	keys, _ := s.Keys(ctx)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	list, _ := s.List(ctx)
	assert.Len(t, list, 2)
}

func TestClearEmptiesStore(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	require.NoError(t, s.Set(ctx, "a", testEntry("a", version.Vector{})))
	require.NoError(t, s.Clear(ctx))

	count, _ := s.Count(ctx)
	assert.Equal(t, 0, count)
}

func TestSetIncrementsStoreVersion(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	before, _ := s.GetVersion(ctx)
	require.NoError(t, s.Set(ctx, "a", testEntry("a", version.Vector{})))
	after, _ := s.GetVersion(ctx)

	assert.True(t, version.IsNewer(after, before))
}

func TestMergeAcceptsNewerAndNewEntries(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	local := testEntry("flag-a", version.Vector{Version: 2, Timestamp: 10, NodeID: "A", Checksum: "x"})
	require.NoError(t, s.Set(ctx, "flag-a", local))

	remoteNewer := testEntry("flag-a", version.Vector{Version: 3, Timestamp: 5, NodeID: "B", Checksum: "y"})
	remoteNew := testEntry("flag-b", version.Vector{Version: 1, Timestamp: 1, NodeID: "B", Checksum: "z"})

	accepted, err := s.Merge(ctx, []flagtypes.WithMeta{remoteNewer, remoteNew})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)

	got, _, _ := s.Get(ctx, "flag-a")
	assert.Equal(t, uint64(3), got.Meta.Version.Version)
}

func TestMergeRejectsOlderOrEqual(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	local := testEntry("flag-a", version.Vector{Version: 5, Timestamp: 10, NodeID: "A", Checksum: "x"})
	require.NoError(t, s.Set(ctx, "flag-a", local))

	remoteOlder := testEntry("flag-a", version.Vector{Version: 2, Timestamp: 1, NodeID: "B", Checksum: "y"})
	accepted, err := s.Merge(ctx, []flagtypes.WithMeta{remoteOlder})
	require.NoError(t, err)
	assert.Equal(t, 0, accepted)
}

func TestMergeIsIdempotentOnSecondPass(t *testing.T) {
	ctx := context.Background()
	clock := int64(1000)
	s := memorystore.New("node-a", silentLogger(), fixedClock(&clock))

	remote := []flagtypes.WithMeta{testEntry("flag-a", version.Vector{Version: 1, Timestamp: 1, NodeID: "B", Checksum: "z"})}

	first, err := s.Merge(ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	second, err := s.Merge(ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, 0, second)
}
