package audit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitaliisemenov/flagcore/internal/audit"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func aliceActor() audit.Actor {
	return audit.Actor{Type: audit.ActorUser, ID: "alice"}
}

func nodeContext() audit.Context {
	return audit.Context{NodeID: "node-a"}
}

func TestAppendSetsChecksumAndVerifies(t *testing.T) {
	now := time.Unix(1000, 0)
	log := audit.New(audit.DefaultConfig(), fixedClock(&now))

	record := log.LogCreated("flag-a", aliceActor(), nodeContext(), flagtypes.BoolValue(true), map[string]interface{}{"kind": "boolean"})
	assert.NotEmpty(t, record.ID)
	assert.NotEmpty(t, record.Checksum)
	assert.True(t, record.Verify())
	require.NotNil(t, record.NewValue)
	assert.True(t, record.NewValue.AsBool())
}

func TestAppendTamperedRecordFailsVerify(t *testing.T) {
	now := time.Unix(1000, 0)
	log := audit.New(audit.DefaultConfig(), fixedClock(&now))

	record := log.LogCreated("flag-a", aliceActor(), nodeContext(), flagtypes.BoolValue(true), nil)
	record.FlagKey = "flag-b"
	assert.False(t, record.Verify())
}

func TestLogUpdatedCarriesPreviousAndNewValue(t *testing.T) {
	now := time.Unix(1000, 0)
	log := audit.New(audit.DefaultConfig(), fixedClock(&now))

	record := log.LogUpdated("flag-a", aliceActor(), nodeContext(), flagtypes.BoolValue(false), flagtypes.BoolValue(true), nil)
	require.NotNil(t, record.PreviousValue)
	require.NotNil(t, record.NewValue)
	assert.False(t, record.PreviousValue.AsBool())
	assert.True(t, record.NewValue.AsBool())
}

func TestEvaluationLoggingNoOpByDefault(t *testing.T) {
	now := time.Unix(1000, 0)
	log := audit.New(audit.DefaultConfig(), fixedClock(&now))

	_, logged := log.LogEvaluated("flag-a", nodeContext(), flagtypes.EvaluationResult{})
	assert.False(t, logged)
	assert.Equal(t, 0, log.Len())
}

func TestEvaluationLoggingWhenEnabled(t *testing.T) {
	now := time.Unix(1000, 0)
	cfg := audit.DefaultConfig()
	cfg.EvaluationLogging = true
	log := audit.New(cfg, fixedClock(&now))

	recCtx := audit.Context{NodeID: "node-a", CorrelationID: "corr-1"}
	record, logged := log.LogEvaluated("flag-a", recCtx, flagtypes.EvaluationResult{Reason: flagtypes.ReasonFallthrough})
	assert.True(t, logged)
	assert.Equal(t, 1, log.Len())
	assert.Equal(t, "corr-1", record.Context.CorrelationID)
	assert.Equal(t, audit.ActorSystem, record.Actor.Type)
}

func TestAppendDropsOldestTenPercentAtCapacity(t *testing.T) {
	now := time.Unix(1000, 0)
	cfg := audit.DefaultConfig()
	cfg.MaxRecords = 10
	log := audit.New(cfg, fixedClock(&now))

	var first string
	for i := 0; i < 10; i++ {
		r := log.LogCreated("flag-a", audit.Actor{}, nodeContext(), flagtypes.Value{}, nil)
		if i == 0 {
			first = r.ID
		}
		now = now.Add(time.Millisecond)
	}
	require.Equal(t, 10, log.Len())

	log.LogCreated("flag-a", audit.Actor{}, nodeContext(), flagtypes.Value{}, nil)
	assert.Equal(t, 10, log.Len(), "capacity hit drops the oldest 10%% then appends, staying at max_records")

	page := log.Query(audit.Filter{}, "", 0)
	for _, r := range page.Records {
		assert.NotEqual(t, first, r.ID, "oldest record should have been dropped")
	}
}

func TestPurgeDropsRecordsOlderThanRetention(t *testing.T) {
	now := time.Unix(1000000, 0)
	cfg := audit.DefaultConfig()
	cfg.Retention = time.Hour
	log := audit.New(cfg, fixedClock(&now))

	log.LogCreated("old", audit.Actor{}, nodeContext(), flagtypes.Value{}, nil)
	now = now.Add(2 * time.Hour)
	log.LogCreated("new", audit.Actor{}, nodeContext(), flagtypes.Value{}, nil)

	dropped := log.Purge()
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, log.Len())
}

func TestQueryFiltersAndSortsDescending(t *testing.T) {
	now := time.Unix(1000, 0)
	log := audit.New(audit.DefaultConfig(), fixedClock(&now))

	log.LogCreated("flag-a", audit.Actor{Type: audit.ActorUser, ID: "alice"}, nodeContext(), flagtypes.Value{}, nil)
	now = now.Add(time.Second)
	log.LogCreated("flag-b", audit.Actor{Type: audit.ActorUser, ID: "bob"}, nodeContext(), flagtypes.Value{}, nil)
	now = now.Add(time.Second)
	log.LogUpdated("flag-a", audit.Actor{Type: audit.ActorUser, ID: "alice"}, nodeContext(), flagtypes.Value{}, flagtypes.Value{}, nil)

	page := log.Query(audit.Filter{FlagKey: "flag-a"}, "", 0)
	require.Len(t, page.Records, 2)
	assert.Equal(t, audit.EventUpdated, page.Records[0].EventType)
	assert.Equal(t, audit.EventCreated, page.Records[1].EventType)
}

func TestQueryCursorPagination(t *testing.T) {
	now := time.Unix(1000, 0)
	log := audit.New(audit.DefaultConfig(), fixedClock(&now))

	for i := 0; i < 5; i++ {
		log.LogCreated("flag-a", audit.Actor{}, nodeContext(), flagtypes.Value{}, nil)
		now = now.Add(time.Second)
	}

	firstPage := log.Query(audit.Filter{}, "", 2)
	require.Len(t, firstPage.Records, 2)
	assert.True(t, firstPage.HasMore)

	secondPage := log.Query(audit.Filter{}, firstPage.NextCursor, 2)
	require.Len(t, secondPage.Records, 2)
	assert.True(t, secondPage.HasMore)

	for _, r := range secondPage.Records {
		for _, seen := range firstPage.Records {
			assert.NotEqual(t, seen.ID, r.ID)
		}
	}
}

func TestQueryEventTypeFilter(t *testing.T) {
	now := time.Unix(1000, 0)
	log := audit.New(audit.DefaultConfig(), fixedClock(&now))

	log.LogCreated("flag-a", audit.Actor{}, nodeContext(), flagtypes.Value{}, nil)
	log.LogDeleted("flag-a", audit.Actor{}, nodeContext(), flagtypes.Value{})

	page := log.Query(audit.Filter{EventTypes: []audit.EventType{audit.EventDeleted}}, "", 0)
	require.Len(t, page.Records, 1)
	assert.Equal(t, audit.EventDeleted, page.Records[0].EventType)
}

func TestQueryActorIDFilter(t *testing.T) {
	now := time.Unix(1000, 0)
	log := audit.New(audit.DefaultConfig(), fixedClock(&now))

	log.LogCreated("flag-a", audit.Actor{Type: audit.ActorUser, ID: "alice"}, nodeContext(), flagtypes.Value{}, nil)
	log.LogCreated("flag-b", audit.Actor{Type: audit.ActorUser, ID: "bob"}, nodeContext(), flagtypes.Value{}, nil)

	page := log.Query(audit.Filter{ActorID: "bob"}, "", 0)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "flag-b", page.Records[0].FlagKey)
}
