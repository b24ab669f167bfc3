package db

import (
	"database/sql"
	"fmt"
)

// migrations are applied in order after schema creation, per dialect.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = map[Dialect][]string{
	SQLite:   {},
	Postgres: {},
}

// Migrate creates the schema and runs the migrations. It is meant to run
// once at startup, never on the request path.
func Migrate(db *sql.DB, d Dialect) error {
	if err := EnsureSchema(db, d); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	for i, m := range migrations[d] {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
