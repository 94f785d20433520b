package audit

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// newID builds a sortable record ID: a 12-hex-char millisecond timestamp
// prefix, a '-', and a 12-hex-char random suffix (spec.md §4.4). IDs sort
// lexicographically the same as by time, up to random collision
// probability within the same millisecond.
func newID(nowMillis int64) string {
	return fmt.Sprintf("%012x-%s", nowMillis, randomSuffix())
}

// randomSuffix derives 12 hex characters (6 bytes) from a fresh UUID,
// the same "real random source, hex-encode, truncate" approach the
// teacher uses for opaque IDs elsewhere in the pack.
func randomSuffix() string {
	id := uuid.New()
	return hex.EncodeToString(id[:6])
}
