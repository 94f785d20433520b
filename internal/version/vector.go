// Package version implements VersionVector: a monotone, totally ordered
// (version, timestamp, node, checksum) tuple used to order and merge
// replicated flag definitions across nodes.
//
// Grounded on internal/config's PostgreSQL config-versioning pattern in
// the teacher repo (monotone version counter, content hash for integrity)
// generalized into a standalone, replicated-safe comparator.
package version

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Vector is the wire/storage representation of a VersionVector.
type Vector struct {
	Version   uint64 `json:"version"`
	Timestamp int64  `json:"timestamp"`
	NodeID    string `json:"nodeId"`
	Checksum  string `json:"checksum"`
}

// Checksum computes the fixed reference hash for VersionVector and
// AuditRecord checksums: FNV-1a, 32-bit, rendered as 8 lowercase hex
// chars. FNV-1a is stdlib-available, deterministic across platforms and
// Go versions, and matches the "pick one and keep it stable" contract
// in spec.md §4.1 without pulling in a dependency whose only job here
// would be an 8-character checksum.
func Checksum(seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return fmt.Sprintf("%08x", h.Sum32())
}

// Clock is the seam tests inject to control "now" (spec.md §9).
type Clock func() int64

// Make creates the first vector for a node.
func Make(nodeID, seedValue string, now Clock) Vector {
	return Vector{
		Version:   1,
		Timestamp: now(),
		NodeID:    nodeID,
		Checksum:  Checksum(seedValue),
	}
}

// Increment produces the next vector for the same node. The node ID is
// preserved; version strictly grows.
func Increment(v Vector, seedValue string, now Clock) Vector {
	return Vector{
		Version:   v.Version + 1,
		Timestamp: now(),
		NodeID:    v.NodeID,
		Checksum:  Checksum(seedValue),
	}
}

// Compare implements the total order fixed by spec.md §4.1: primary key
// version, tiebreak timestamp, tiebreak node ID, tiebreak checksum.
// Returns -1, 0, or 1.
func Compare(a, b Vector) int {
	if a.Version != b.Version {
		if a.Version < b.Version {
			return -1
		}
		return 1
	}
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	if a.NodeID != b.NodeID {
		if a.NodeID < b.NodeID {
			return -1
		}
		return 1
	}
	if a.Checksum != b.Checksum {
		if a.Checksum < b.Checksum {
			return -1
		}
		return 1
	}
	return 0
}

// IsNewer reports whether a strictly outranks b under Compare.
func IsNewer(a, b Vector) bool {
	return Compare(a, b) > 0
}

// Merge reconciles a local and remote vector after a sync round. The
// winner of Compare seeds node/checksum continuity; the returned
// version is one past the higher of the two inputs, stamped with the
// current time.
func Merge(local, remote Vector, now Clock) Vector {
	winner := local
	if Compare(remote, local) > 0 {
		winner = remote
	}
	maxVersion := local.Version
	if remote.Version > maxVersion {
		maxVersion = remote.Version
	}
	return Vector{
		Version:   maxVersion + 1,
		Timestamp: now(),
		NodeID:    winner.NodeID,
		Checksum:  winner.Checksum,
	}
}

// String renders the colon-delimited wire format:
// "{version}:{timestamp}:{nodeId}:{checksum}".
func (v Vector) String() string {
	return fmt.Sprintf("%d:%d:%s:%s", v.Version, v.Timestamp, v.NodeID, v.Checksum)
}

// Parse is the total inverse of String: it never panics, returning an
// error on any malformed input (wrong field count, non-numeric version
// or timestamp, or a node ID containing a colon).
func Parse(s string) (Vector, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return Vector{}, fmt.Errorf("version: malformed vector %q: expected 4 colon-delimited fields, got %d", s, len(parts))
	}
	ver, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Vector{}, fmt.Errorf("version: malformed vector %q: bad version: %w", s, err)
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Vector{}, fmt.Errorf("version: malformed vector %q: bad timestamp: %w", s, err)
	}
	nodeID := parts[2]
	checksum := parts[3]
	if checksum == "" {
		return Vector{}, fmt.Errorf("version: malformed vector %q: empty checksum", s)
	}
	return Vector{Version: ver, Timestamp: ts, NodeID: nodeID, Checksum: checksum}, nil
}
