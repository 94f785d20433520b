package sqlitestore_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/store/sqlitestore"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	ctx := context.Background()
	path := t.TempDir() + "/flags.db"
	s, err := sqlitestore.Open(ctx, path, "node-a", silentLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func testEntry(key string) flagtypes.WithMeta {
	return flagtypes.WithMeta{
		Flag: flagtypes.Flag{
			Key:   key,
			Kind:  flagtypes.KindFlagBoolean,
			State: flagtypes.StateEnabled,
			Value: flagtypes.BoolValue(true),
			Tags:  []string{"t1"},
		},
		Meta: flagtypes.Meta{Version: version.Vector{Version: 1, Timestamp: 1, NodeID: "node-a", Checksum: "aa"}},
	}
}

func TestOpenCreatesVersionRow(t *testing.T) {
	s := newTestStore(t)
	v, err := s.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), v.Version)
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "flag-a", testEntry("flag-a")))

	got, ok, err := s.Get(ctx, "flag-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "flag-a", got.Flag.Key)
	assert.Equal(t, []string{"t1"}, got.Flag.Tags)
}

func TestGetMissingReturnsFalseNoError(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSetIsUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entry := testEntry("flag-a")
	require.NoError(t, s.Set(ctx, "flag-a", entry))

	entry.Flag.State = flagtypes.StateDisabled
	require.NoError(t, s.Set(ctx, "flag-a", entry))

	got, _, _ := s.Get(ctx, "flag-a")
	assert.Equal(t, flagtypes.StateDisabled, got.Flag.State)

	count, _ := s.Count(ctx)
	assert.Equal(t, 1, count)
}

func TestDeleteReportsExistence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "flag-a", testEntry("flag-a")))
	ok, err = s.Delete(ctx, "flag-a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSetIncrementsStoreVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	before, _ := s.GetVersion(ctx)
	require.NoError(t, s.Set(ctx, "flag-a", testEntry("flag-a")))
	after, _ := s.GetVersion(ctx)

	assert.True(t, version.IsNewer(after, before))
}

func TestMergeAcceptsNewerAndNewEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	local := testEntry("flag-a")
	local.Meta.Version = version.Vector{Version: 2, Timestamp: 10, NodeID: "A", Checksum: "x"}
	require.NoError(t, s.Set(ctx, "flag-a", local))

	remoteNewer := testEntry("flag-a")
	remoteNewer.Meta.Version = version.Vector{Version: 3, Timestamp: 5, NodeID: "B", Checksum: "y"}
	remoteNew := testEntry("flag-b")
	remoteNew.Meta.Version = version.Vector{Version: 1, Timestamp: 1, NodeID: "B", Checksum: "z"}

	accepted, err := s.Merge(ctx, []flagtypes.WithMeta{remoteNewer, remoteNew})
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
}

func TestMergeRejectsOlderOrEqual(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	local := testEntry("flag-a")
	local.Meta.Version = version.Vector{Version: 5, Timestamp: 10, NodeID: "A", Checksum: "x"}
	require.NoError(t, s.Set(ctx, "flag-a", local))

	remoteOlder := testEntry("flag-a")
	remoteOlder.Meta.Version = version.Vector{Version: 2, Timestamp: 1, NodeID: "B", Checksum: "y"}

	accepted, err := s.Merge(ctx, []flagtypes.WithMeta{remoteOlder})
	require.NoError(t, err)
	assert.Equal(t, 0, accepted)
}

func TestListAndKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "a", testEntry("a")))
	require.NoError(t, s.Set(ctx, "b", testEntry("b")))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestClearEmptiesStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "a", testEntry("a")))
	require.NoError(t, s.Clear(ctx))

	count, _ := s.Count(ctx)
	assert.Equal(t, 0, count)
}

func TestCompactAndFlushDoNotError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Set(ctx, "a", testEntry("a")))

	assert.NoError(t, s.Compact(ctx))
	assert.NoError(t, s.Flush(ctx))
}
