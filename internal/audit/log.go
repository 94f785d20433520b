package audit

import (
	"sort"
	"sync"
	"time"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/metrics"
)

// Config tunes the log per spec.md §4.4's documented defaults.
type Config struct {
	MaxRecords        int           `mapstructure:"max_records"`
	Retention         time.Duration `mapstructure:"retention"`
	EvaluationLogging bool          `mapstructure:"evaluation_logging"`
}

// DefaultConfig matches spec.md §4.4: max_records 100000, retention 90 days.
func DefaultConfig() Config {
	return Config{
		MaxRecords:        100000,
		Retention:         90 * 24 * time.Hour,
		EvaluationLogging: false,
	}
}

// Log is the append-only, bounded, checksummed audit log. A single mutex
// guards records, per spec.md §5's "the audit mutex guards records."
type Log struct {
	mu      sync.Mutex
	records []Record
	cfg     Config
	nowFn   func() time.Time
}

// New constructs a Log. now defaults to time.Now; tests inject a fixed
// or controllable clock (spec.md §9).
func New(cfg Config, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{cfg: cfg, nowFn: now}
}

// append fills in r's ID/Timestamp/Checksum, enforces max_records, and
// stores it.
func (l *Log) append(r Record) Record {
	now := l.nowFn()
	r.ID = newID(now.UnixMilli())
	r.Timestamp = now
	r = r.withChecksum()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.MaxRecords > 0 && len(l.records) >= l.cfg.MaxRecords {
		keep := int(float64(l.cfg.MaxRecords) * 0.9)
		if keep < 0 {
			keep = 0
		}
		drop := len(l.records) - keep
		if drop > 0 {
			l.records = append([]Record(nil), l.records[drop:]...)
			metrics.RecordAuditPurge("capacity", drop)
		}
	}
	l.records = append(l.records, r)
	metrics.RecordAuditAppend(string(r.EventType))
	metrics.SetAuditSize(len(l.records))
	return r
}

// LogCreated records a flag's creation, with its initial value as NewValue.
func (l *Log) LogCreated(flagKey string, actor Actor, recCtx Context, newValue flagtypes.Value, details map[string]interface{}) Record {
	return l.append(Record{EventType: EventCreated, FlagKey: flagKey, Actor: actor, Context: recCtx, NewValue: &newValue, Details: details})
}

// LogUpdated records a flag mutation, carrying both the value it
// replaced and the value it now holds.
func (l *Log) LogUpdated(flagKey string, actor Actor, recCtx Context, previousValue, newValue flagtypes.Value, details map[string]interface{}) Record {
	return l.append(Record{EventType: EventUpdated, FlagKey: flagKey, Actor: actor, Context: recCtx, PreviousValue: &previousValue, NewValue: &newValue, Details: details})
}

// LogDeleted records a flag's removal, carrying the value it held.
func (l *Log) LogDeleted(flagKey string, actor Actor, recCtx Context, previousValue flagtypes.Value) Record {
	return l.append(Record{EventType: EventDeleted, FlagKey: flagKey, Actor: actor, Context: recCtx, PreviousValue: &previousValue})
}

// LogEvaluated is a no-op unless cfg.EvaluationLogging is true, per
// spec.md §4.4, returning the zero Record when skipped.
func (l *Log) LogEvaluated(flagKey string, recCtx Context, result flagtypes.EvaluationResult) (Record, bool) {
	if !l.cfg.EvaluationLogging {
		return Record{}, false
	}
	value := result.Value
	return l.append(Record{
		EventType: EventEvaluated,
		FlagKey:   flagKey,
		Actor:     Actor{Type: ActorSystem},
		Context:   recCtx,
		NewValue:  &value,
		Details:   map[string]interface{}{"reason": string(result.Reason)},
	}), true
}

func (l *Log) LogExpired(flagKey string, recCtx Context) Record {
	return l.append(Record{EventType: EventExpired, FlagKey: flagKey, Actor: Actor{Type: ActorSystem}, Context: recCtx})
}

// LogSynced records a remote entry accepted by a merge, carrying the
// value it was merged to.
func (l *Log) LogSynced(flagKey string, actor Actor, recCtx Context, newValue flagtypes.Value, details map[string]interface{}) Record {
	return l.append(Record{EventType: EventSynced, FlagKey: flagKey, Actor: actor, Context: recCtx, NewValue: &newValue, Details: details})
}

func (l *Log) LogConflictResolved(flagKey string, recCtx Context, details map[string]interface{}) Record {
	return l.append(Record{EventType: EventConflictResolved, FlagKey: flagKey, Actor: Actor{Type: ActorSystem}, Context: recCtx, Details: details})
}

// Purge drops records with timestamp < now - retention, returning the
// count dropped.
func (l *Log) Purge() int {
	if l.cfg.Retention <= 0 {
		return 0
	}
	cutoff := l.nowFn().Add(-l.cfg.Retention)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.records[:0:0]
	dropped := 0
	for _, r := range l.records {
		if r.Timestamp.Before(cutoff) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	l.records = kept
	metrics.RecordAuditPurge("retention", dropped)
	metrics.SetAuditSize(len(l.records))
	return dropped
}

// Len returns the current record count.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// snapshot returns a defensive copy of all records, newest first, for
// Query to filter/paginate over without holding the lock during
// filtering.
func (l *Log) snapshot() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
