package db

import (
	"database/sql"
	"fmt"
)

// sqliteSchema is the full SQLite schema. Prices are stored as TEXT so they
// round-trip exactly.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL CHECK (name <> ''),
    price       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image       TEXT NOT NULL DEFAULT '',
    sold        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL,
    sold_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_items_active
    ON items(created_at DESC) WHERE sold = FALSE;

CREATE TABLE IF NOT EXISTS referral_codes (
    code       TEXT PRIMARY KEY,
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS referral_usage (
    user_code TEXT NOT NULL,
    used_code TEXT NOT NULL,
    used_at   DATETIME NOT NULL,
    PRIMARY KEY (user_code, used_code)
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// postgresSchema mirrors sqliteSchema using native PostgreSQL types.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS items (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL CHECK (name <> ''),
    price       NUMERIC NOT NULL CHECK (price > 0),
    description TEXT NOT NULL DEFAULT '',
    image       TEXT NOT NULL DEFAULT '',
    sold        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    sold_at     TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_items_active
    ON items(created_at DESC) WHERE sold = FALSE;

CREATE TABLE IF NOT EXISTS referral_codes (
    code       TEXT PRIMARY KEY,
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS referral_usage (
    user_code TEXT NOT NULL,
    used_code TEXT NOT NULL,
    used_at   TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (user_code, used_code)
);

CREATE INDEX IF NOT EXISTS idx_referral_usage_user
    ON referral_usage(user_code);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at TIMESTAMPTZ NOT NULL
);
`

// Schema returns the schema for a dialect.
func Schema(d Dialect) (string, error) {
	switch d {
	case SQLite:
		return sqliteSchema, nil
	case Postgres:
		return postgresSchema, nil
	default:
		return "", fmt.Errorf("no schema for dialect %q", d)
	}
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB, d Dialect) error {
	schema, err := Schema(d)
	if err != nil {
		return err
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
