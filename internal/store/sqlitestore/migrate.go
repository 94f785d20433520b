package sqlitestore

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrate applies every pending migration, mirroring the teacher's
// goose.SetDialect + goose.Up pair (internal/database/migrations.go),
// adapted to an embedded filesystem so the package is self-contained
// instead of depending on a migrations/ directory relative to cwd.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("sqlitestore: set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("sqlitestore: apply migrations: %w", err)
	}
	return nil
}
