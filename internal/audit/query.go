package audit

import "time"

// Filter narrows a Query to records matching every populated field, per
// spec.md §4.4's {flag_key, event_types[], actor_id, start_time, end_time}.
type Filter struct {
	FlagKey    string
	EventTypes []EventType
	ActorID    string
	StartTime  *time.Time
	EndTime    *time.Time
}

func (f Filter) matches(r Record) bool {
	if f.FlagKey != "" && r.FlagKey != f.FlagKey {
		return false
	}
	if f.ActorID != "" && r.Actor.ID != f.ActorID {
		return false
	}
	if len(f.EventTypes) > 0 {
		found := false
		for _, et := range f.EventTypes {
			if r.EventType == et {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.StartTime != nil && r.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && r.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}

// Page is one page of query results, plus the cursor to pass as the
// next request's Cursor to continue.
type Page struct {
	Records    []Record
	NextCursor string
	HasMore    bool
}

// Query filters, sorts descending by timestamp, and cursor-paginates,
// per spec.md §4.4. cursor, if non-empty, is a record ID: results skip
// up to and including the record with that ID. limit <= 0 means
// unbounded (a single page holding every matching record).
func (l *Log) Query(filter Filter, cursor string, limit int) Page {
	records := l.snapshot()

	matched := make([]Record, 0, len(records))
	for _, r := range records {
		if filter.matches(r) {
			matched = append(matched, r)
		}
	}

	start := 0
	if cursor != "" {
		for i, r := range matched {
			if r.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start > len(matched) {
		start = len(matched)
	}
	remaining := matched[start:]

	if limit <= 0 || limit >= len(remaining) {
		return Page{Records: remaining, HasMore: false}
	}

	page := remaining[:limit]
	next := page[len(page)-1].ID
	return Page{Records: page, NextCursor: next, HasMore: true}
}
