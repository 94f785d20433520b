// Package mergehelper holds the version-vector comparison shared by
// every store backend's Merge, so memorystore/sqlitestore/postgresstore
// don't each reimplement the accept/reject decision from spec.md §4.5.
package mergehelper

import (
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
	"github.com/vitaliisemenov/flagcore/internal/version"
)

// Accept reports whether remote should be written over local per the
// merge contract: write iff no local entry exists, or remote.Meta.Version
// is strictly newer than local.Meta.Version.
func Accept(local flagtypes.WithMeta, localExists bool, remote flagtypes.WithMeta) bool {
	if !localExists {
		return true
	}
	return version.IsNewer(remote.Meta.Version, local.Meta.Version)
}
