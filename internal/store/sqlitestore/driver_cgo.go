//go:build cgo_sqlite

package sqlitestore

// Importing mattn/go-sqlite3 registers the "sqlite3" driver name under
// the cgo_sqlite build tag, an alternate to the default pure-Go
// modernc.org/sqlite driver used by Open. Useful on platforms where the
// cgo driver measurably outperforms the pure-Go one; Open's DSN uses
// the "sqlite" driver name regardless, so switching drivers means
// building with this tag and changing that one string, not rewriting
// call sites.
import (
	_ "github.com/mattn/go-sqlite3"
)
