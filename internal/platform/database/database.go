// Package database opens the backing SQL database and applies the schema.
// Postgres is the production target; sqlite backs local development and the
// unit-test suites so store behavior is exercised against a real database.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database named by url. postgres:// URLs use lib/pq;
// everything else is passed to the sqlite3 driver as a DSN.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	driver := "sqlite3"
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		driver = "postgres"
	}

	db, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	if driver == "sqlite3" {
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY
		// under the concurrent request handlers.
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// Schema is the portable DDL shared by postgres and sqlite. JSON content is
// stored as TEXT so both engines accept it unchanged.
const Schema = `
CREATE TABLE IF NOT EXISTS report_snapshots (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	created_by TEXT NOT NULL DEFAULT '',
	row_count  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS report_archives (
	id                TEXT PRIMARY KEY,
	report_id         TEXT NOT NULL,
	filename          TEXT NOT NULL,
	file_path         TEXT NOT NULL UNIQUE,
	created_at        TIMESTAMP NOT NULL,
	related_entity_id TEXT,
	file_size_bytes   BIGINT NOT NULL,
	checksum_sha256   TEXT NOT NULL,
	user_id           TEXT
);

CREATE TABLE IF NOT EXISTS compliance_log (
	id         TEXT PRIMARY KEY,
	timestamp  TIMESTAMP NOT NULL,
	event_type TEXT NOT NULL,
	severity   TEXT NOT NULL,
	component  TEXT NOT NULL,
	details    TEXT NOT NULL DEFAULT '{}',
	user_id    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS inventory_parts (
	id        TEXT PRIMARY KEY,
	part_name TEXT,
	tag_color TEXT,
	location  TEXT
);
`

// Migrate applies the schema. Statements are idempotent so repeated startup
// is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(Schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
