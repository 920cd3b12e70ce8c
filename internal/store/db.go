// Package store is the sqlx-backed persistence layer: workflows and their
// versions, drafts, and the schedule registry. SQLite is the default
// desktop storage; Postgres is supported for shared installs.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config selects the driver and its data source.
type Config struct {
	Driver string // DriverSQLite (default) or DriverPostgres
	Path   string // SQLite database file path
	DSN    string // Postgres connection string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS workflows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	workflow_id INTEGER NOT NULL REFERENCES workflows (id) ON DELETE CASCADE,
	version INTEGER NOT NULL,
	definition_json TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_drafts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	version INTEGER NOT NULL DEFAULT 1,
	data_json TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_schedules (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	workflow_id INTEGER NOT NULL,
	cron TEXT NOT NULL,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	profile TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	last_run_at TIMESTAMP,
	next_run_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS workflows (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_versions (
	id BIGSERIAL PRIMARY KEY,
	workflow_id BIGINT NOT NULL REFERENCES workflows (id) ON DELETE CASCADE,
	version INTEGER NOT NULL,
	definition_json TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_drafts (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	version INTEGER NOT NULL DEFAULT 1,
	data_json TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_schedules (
	id BIGSERIAL PRIMARY KEY,
	workflow_id BIGINT NOT NULL,
	cron TEXT NOT NULL,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	profile TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	last_run_at TIMESTAMPTZ,
	next_run_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
`

// Open connects to the configured database and ensures the schema exists.
func Open(cfg Config) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	switch cfg.Driver {
	case "", DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", cfg.Path)
		db, err = sqlx.Connect(DriverSQLite, dsn)
	case DriverPostgres:
		db, err = sqlx.Connect(DriverPostgres, cfg.DSN)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables for the connected driver if they do not exist.
func Migrate(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == DriverPostgres {
		schema = postgresSchema
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// insertID runs an INSERT and returns the generated id, papering over the
// LastInsertId vs RETURNING split between the drivers. The query uses ?
// placeholders and must not carry a RETURNING clause.
func insertID(ctx context.Context, db *sqlx.DB, query string, args ...any) (int64, error) {
	if db.DriverName() == DriverPostgres {
		var id int64
		err := db.QueryRowxContext(ctx, db.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
