package driver

import (
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// sqliteDialect backs local smoke runs that need no server. The Identifier
// is the database file path; an in-memory database is forced into shared
// cache so every pooled session sees the same data.
type sqliteDialect struct{}

func (sqliteDialect) Kind() Kind         { return SQLite }
func (sqliteDialect) DriverName() string { return "sqlite3" }
func (sqliteDialect) DefaultPort() int   { return 0 }

func (sqliteDialect) DSN(p ConnParams) string {
	if p.Identifier == "" || p.Identifier == ":memory:" {
		return "file::memory:?cache=shared"
	}
	return "file:" + p.Identifier + "?_busy_timeout=5000"
}

func (sqliteDialect) Statements() Statements {
	return rebound(sqlx.QUESTION)
}

func (sqliteDialect) DDL() string {
	return `CREATE TABLE load_test (
    id           INTEGER PRIMARY KEY,
    thread_id    TEXT    NOT NULL,
    payload      TEXT,
    version      INTEGER NOT NULL DEFAULT 1,
    status       TEXT    DEFAULT 'ACTIVE',
    created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_load_test_thread ON load_test (thread_id, created_at);
CREATE INDEX idx_load_test_created ON load_test (created_at);
`
}
