// Package audit implements the append-only, checksummed audit log of
// spec.md §4.4: bounded by max_records and a retention window, each
// record self-checksummed (not chained), queryable by flag key, event
// type, actor, and time range.
//
// Grounded on internal/config/update_storage.go's calculateHash pattern
// (hash over a marshaled struct for integrity checking) and
// pkg/history/security.AuditLogger's event taxonomy, generalized from
// HTTP security events to flag mutation/evaluation events.
package audit

import (
	"encoding/json"
	"time"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// EventType is one of the fixed audit event kinds spec.md §4.4 names.
type EventType string

const (
	EventCreated          EventType = "created"
	EventUpdated          EventType = "updated"
	EventDeleted          EventType = "deleted"
	EventEvaluated        EventType = "evaluated"
	EventExpired          EventType = "expired"
	EventSynced           EventType = "synced"
	EventConflictResolved EventType = "conflict_resolved"
)

// ActorType is one of spec.md §3's three actor kinds attributing a
// mutation or evaluation to the thing that caused it.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorSystem ActorType = "system"
	ActorAPI    ActorType = "api"
)

// Actor identifies who or what caused a Record's event, per spec.md §3's
// {type, id, ip?}.
type Actor struct {
	Type ActorType `json:"type"`
	ID   string    `json:"id,omitempty"`
	IP   string    `json:"ip,omitempty"`
}

// Context carries the ambient request/node information spec.md §3 fixes
// for AuditRecord.context: {node_id, environment, user_agent?,
// correlation_id?}.
type Context struct {
	NodeID        string `json:"nodeId"`
	Environment   string `json:"environment,omitempty"`
	UserAgent     string `json:"userAgent,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Record is one append-only audit entry. Checksum covers every other
// field, JSON-canonicalized; it is excluded from its own input.
// PreviousValue/NewValue are populated for value-changing events
// (created/updated/deleted); Details carries event-specific data that
// doesn't fit the fixed fields (e.g. a synced record's source version).
type Record struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	EventType     EventType              `json:"eventType"`
	FlagKey       string                 `json:"flagKey"`
	PreviousValue *flagtypes.Value       `json:"previousValue,omitempty"`
	NewValue      *flagtypes.Value       `json:"newValue,omitempty"`
	Actor         Actor                  `json:"actor"`
	Context       Context                `json:"context"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Checksum      string                 `json:"checksum"`
}

// checksumInput renders every field except Checksum, in a fixed field
// order, so the hash is stable regardless of map key iteration order
// inside Details (json.Marshal on map[string]interface{} sorts keys).
func (r Record) checksumInput() string {
	type canonical struct {
		ID            string                 `json:"id"`
		Timestamp     int64                  `json:"timestamp"`
		EventType     EventType              `json:"eventType"`
		FlagKey       string                 `json:"flagKey"`
		PreviousValue *flagtypes.Value       `json:"previousValue,omitempty"`
		NewValue      *flagtypes.Value       `json:"newValue,omitempty"`
		Actor         Actor                  `json:"actor"`
		Context       Context                `json:"context"`
		Details       map[string]interface{} `json:"details,omitempty"`
	}
	data, err := json.Marshal(canonical{
		ID:            r.ID,
		Timestamp:     r.Timestamp.UnixNano(),
		EventType:     r.EventType,
		FlagKey:       r.FlagKey,
		PreviousValue: r.PreviousValue,
		NewValue:      r.NewValue,
		Actor:         r.Actor,
		Context:       r.Context,
		Details:       r.Details,
	})
	if err != nil {
		// json.Marshal only fails on un-marshalable types (channels,
		// funcs); Details is caller-controlled data, not code, so this
		// is not expected to occur on the append path in practice, but
		// degrading to the ID keeps checksum total rather than panicking.
		return r.ID
	}
	return string(data)
}

// withChecksum returns r with Checksum computed over its other fields.
func (r Record) withChecksum() Record {
	r.Checksum = version.Checksum(r.checksumInput())
	return r
}

// Verify recomputes the checksum and reports whether it still matches,
// letting a consumer re-validate a record without trusting the stored
// checksum (spec.md §4.4: "consumers can re-validate by recomputing").
func (r Record) Verify() bool {
	return r.Checksum == version.Checksum(r.checksumInput())
}
