// Package store defines the CRUD + version + merge contract every
// backend (memorystore, sqlitestore, postgresstore) must satisfy, per
// spec.md §4.5/§6. The core treats the store as an opaque collaborator;
// only the merge contract is normative.
package store

import (
	"context"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// Store is the contract the client façade consumes. Implementations
// must be atomic per operation. Flush must durably persist every prior
// mutation before returning; Compact must preserve all accepted data
// and may reorder underlying storage, per spec.md §6.
//
// The memory implementation is synchronous under the hood but still
// exposes this context-aware interface so callers don't special-case
// backends; durable implementations use ctx for cancellation/timeout
// of the underlying I/O.
type Store interface {
	Get(ctx context.Context, key string) (flagtypes.WithMeta, bool, error)
	Set(ctx context.Context, key string, entry flagtypes.WithMeta) error
	Delete(ctx context.Context, key string) (bool, error)
	Has(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]flagtypes.WithMeta, error)
	Keys(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error

	GetVersion(ctx context.Context) (version.Vector, error)
	SetVersion(ctx context.Context, v version.Vector) error

	// Merge applies remote entries per the merge contract (spec.md
	// §4.5): a remote entry is written iff no local entry exists for
	// its key, or the remote's meta.version is strictly newer than the
	// local one's. Returns the count of entries written. Any accepted
	// write increments the store's top-level version with seed "merge".
	Merge(ctx context.Context, remote []flagtypes.WithMeta) (int, error)

	Compact(ctx context.Context) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}
