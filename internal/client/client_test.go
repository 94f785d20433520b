package client_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/flagcore/internal/audit"
	"github.com/vitaliisemenov/flagcore/internal/cache"
	"github.com/vitaliisemenov/flagcore/internal/client"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/store/memorystore"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	var tick int64 = 1000
	clock := func() int64 {
		tick++
		return tick
	}

	st := memorystore.New("node-a", silentLogger(), clock)
	cacheCfg := cache.DefaultConfig()
	cacheCfg.MaxSize = 100
	cacheMgr, err := cache.NewManager(cacheCfg, silentLogger())
	require.NoError(t, err)
	auditLog := audit.New(audit.Config{MaxRecords: 1000, Retention: 24 * time.Hour, EvaluationLogging: true}, nil)

	return client.New("node-a", st, cacheMgr, auditLog, silentLogger(), clock)
}

func boolFlag(key string, value bool) flagtypes.Flag {
	return flagtypes.Flag{
		Key:          key,
		Kind:         flagtypes.KindFlagBoolean,
		State:        flagtypes.StateEnabled,
		Value:        flagtypes.BoolValue(value),
		DefaultValue: flagtypes.BoolValue(false),
	}
}

func TestCreateFlagThenEvaluate(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.CreateFlag(ctx, boolFlag("dark_mode", true), "alice")
	require.NoError(t, err)

	result := c.Evaluate(ctx, "dark_mode", flagtypes.EvaluationContext{})
	assert.Equal(t, flagtypes.ReasonFallthrough, result.Reason)
	assert.True(t, result.Value.AsBool())
}

func TestCreateFlagRejectsDuplicateKey(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.CreateFlag(ctx, boolFlag("dark_mode", true), "alice")
	require.NoError(t, err)

	_, err = c.CreateFlag(ctx, boolFlag("dark_mode", false), "alice")
	assert.Error(t, err)
}

func TestDisableFlagChangesEvaluation(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.CreateFlag(ctx, boolFlag("dark_mode", true), "alice")
	require.NoError(t, err)

	ok, err := c.DisableFlag(ctx, "dark_mode", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	result := c.Evaluate(ctx, "dark_mode", flagtypes.EvaluationContext{})
	assert.Equal(t, flagtypes.ReasonFlagDisabled, result.Reason)
	assert.False(t, result.Value.AsBool())
}

func TestEvaluateUnknownFlagNeverErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	result := c.Evaluate(ctx, "missing", flagtypes.EvaluationContext{})
	assert.Equal(t, flagtypes.ReasonFlagNotFound, result.Reason)
	assert.False(t, result.Value.AsBool())
}

func TestUpdateFlagBumpsVersion(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	created, err := c.CreateFlag(ctx, boolFlag("dark_mode", true), "alice")
	require.NoError(t, err)

	updated, ok, err := c.UpdateFlag(ctx, "dark_mode", flagtypes.BoolValue(false), "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, version.IsNewer(updated.Meta.Version, created.Meta.Version))

	result := c.Evaluate(ctx, "dark_mode", flagtypes.EvaluationContext{})
	assert.False(t, result.Value.AsBool())
}

func TestDeleteFlagReportsExistence(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	ok, err := c.DeleteFlag(ctx, "missing", "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.CreateFlag(ctx, boolFlag("dark_mode", true), "alice")
	require.NoError(t, err)

	ok, err = c.DeleteFlag(ctx, "dark_mode", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	_, found := c.GetFlag(ctx, "dark_mode")
	assert.False(t, found)
}

func TestEvaluateBoolFallsBackToDefaultOnMiss(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	assert.True(t, c.EvaluateBool(ctx, "missing", flagtypes.EvaluationContext{}, true))
}

func TestMergeRemoteAcceptsNewerAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.CreateFlag(ctx, boolFlag("dark_mode", false), "alice")
	require.NoError(t, err)

	existing, _ := c.GetFlag(ctx, "dark_mode")
	remote := existing
	remote.Flag.Value = flagtypes.BoolValue(true)
	remote.Meta.Version = version.Vector{
		Version:   existing.Meta.Version.Version + 10,
		Timestamp: existing.Meta.Version.Timestamp + 10,
		NodeID:    "node-b",
		Checksum:  "ffffffff",
	}

	accepted, err := c.MergeRemote(ctx, []flagtypes.WithMeta{remote}, "sync")
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)

	result := c.Evaluate(ctx, "dark_mode", flagtypes.EvaluationContext{})
	assert.True(t, result.Value.AsBool())

	accepted, err = c.MergeRemote(ctx, []flagtypes.WithMeta{remote}, "sync")
	require.NoError(t, err)
	assert.Equal(t, 0, accepted)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.CreateFlag(ctx, boolFlag("dark_mode", true), "alice")
	require.NoError(t, err)

	entries, _, err := c.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = c.DeleteFlag(ctx, "dark_mode", "alice")
	require.NoError(t, err)

	require.NoError(t, c.Restore(ctx, entries))

	restored, found := c.GetFlag(ctx, "dark_mode")
	require.True(t, found)
	assert.True(t, restored.Flag.Value.AsBool())
}

func TestPurgeCacheAndAuditDoNotError(t *testing.T) {
	c := newTestClient(t)
	assert.GreaterOrEqual(t, c.PurgeCache(), 0)
	assert.GreaterOrEqual(t, c.PurgeAudit(), 0)
}
