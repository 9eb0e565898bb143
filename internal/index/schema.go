// Package index records the outcome of the last build in SQLite so the
// preview server, the MCP tools and the backlinks command can query it
// without recompiling the site. FTS5 search is used when built with the
// sqlite_fts5 tag.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS builds (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	pages       INTEGER NOT NULL DEFAULT 0,
	assets      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pages (
	title       TEXT PRIMARY KEY,
	source_path TEXT NOT NULL,
	output_path TEXT NOT NULL,
	fingerprint TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	build_id    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS backlinks (
	target   TEXT NOT NULL,
	source   TEXT NOT NULL,
	count    INTEGER NOT NULL,
	position INTEGER NOT NULL,
	UNIQUE(target, source)
);

CREATE INDEX IF NOT EXISTS idx_backlinks_target ON backlinks(target, position);
CREATE INDEX IF NOT EXISTS idx_builds_finished ON builds(finished_at);
`

// DB wraps a sql.DB with manifest operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
