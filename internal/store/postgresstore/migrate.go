package postgresstore

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrate applies pending migrations via a plain database/sql
// connection, mirroring the teacher's internal/database.RunMigrations
// (goose needs *sql.DB; runtime operations use a pgxpool.Pool instead,
// same split the teacher documents as "need a DB wrapper for goose").
func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("postgresstore: open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("postgresstore: set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("postgresstore: apply migrations: %w", err)
	}
	return nil
}
