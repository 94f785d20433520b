// Package sync drives the merge/sync protocol: periodically (or on a
// push/SSE signal) fetching a remote flag batch and feeding it to the
// client façade's MergeRemote. Concrete RemoteSource transports live in
// the sse and push subpackages.
package sync

import (
	"context"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// Batch is the wire payload for a remote fetch (spec.md §6): a set of
// entries plus the remote's top-level version vector.
type Batch struct {
	Flags   []flagtypes.WithMeta `json:"flags"`
	Version version.Vector      `json:"version"`
}

// RemoteSource is the host-supplied remote fetch collaborator spec.md
// §6 describes as "a function returning [FlagWithMeta] plus the remote
// VersionVector." Poller calls Fetch on an interval; sse.Source and
// push.Source are the two concrete transports this module ships.
type RemoteSource interface {
	Fetch(ctx context.Context) (Batch, error)
}

// Merger is the subset of the client façade Poller depends on, kept
// narrow so tests can fake it without building a full Client.
type Merger interface {
	MergeRemote(ctx context.Context, remote []flagtypes.WithMeta, actorID string) (int, error)
}
