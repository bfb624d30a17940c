package db

import "fmt"

// sqliteSchema is the full database schema for SQLite.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    kind       TEXT NOT NULL CHECK (kind IN ('game', 'book')),
    owner_id   INTEGER NOT NULL,
    title      TEXT NOT NULL,
    author     TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL,
    notes      TEXT NOT NULL DEFAULT '',
    rating     INTEGER CHECK (rating BETWEEN 0 AND 10),
    reason     TEXT NOT NULL DEFAULT '',
    progress   TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    ended_at   DATETIME
);

CREATE INDEX IF NOT EXISTS idx_items_owner_kind_status ON items(owner_id, kind, status);

CREATE TABLE IF NOT EXISTS limits (
    owner_id INTEGER NOT NULL,
    kind     TEXT NOT NULL CHECK (kind IN ('game', 'book')),
    value    INTEGER NOT NULL CHECK (value > 0),
    PRIMARY KEY (owner_id, kind)
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

// postgresSchema mirrors sqliteSchema for PostgreSQL.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id            BIGSERIAL PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id         BIGSERIAL PRIMARY KEY,
    kind       TEXT NOT NULL CHECK (kind IN ('game', 'book')),
    owner_id   BIGINT NOT NULL,
    title      TEXT NOT NULL,
    author     TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL,
    notes      TEXT NOT NULL DEFAULT '',
    rating     INTEGER CHECK (rating BETWEEN 0 AND 10),
    reason     TEXT NOT NULL DEFAULT '',
    progress   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    ended_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_items_owner_kind_status ON items(owner_id, kind, status);

CREATE TABLE IF NOT EXISTS limits (
    owner_id BIGINT NOT NULL,
    kind     TEXT NOT NULL CHECK (kind IN ('game', 'book')),
    value    INTEGER NOT NULL CHECK (value > 0),
    PRIMARY KEY (owner_id, kind)
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(d *DB) error {
	schema := sqliteSchema
	if d.Dialect == Postgres {
		schema = postgresSchema
	}
	if _, err := d.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
