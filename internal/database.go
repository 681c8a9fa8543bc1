package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS messages (
	session_id       TEXT    NOT NULL,
	id               TEXT    NOT NULL,
	history_sequence INTEGER NOT NULL,
	role             TEXT    NOT NULL,
	partial          INTEGER NOT NULL DEFAULT 0,
	payload          TEXT    NOT NULL,
	updated_at       INTEGER NOT NULL,
	PRIMARY KEY (session_id, id)
);
CREATE INDEX IF NOT EXISTS messages_by_sequence ON messages (session_id, history_sequence);
`

// OpenDatabase opens (creating if needed) the SQLite history database
func OpenDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StorageError{Path: path, Op: "open", Err: err}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, &StorageError{Path: path, Op: "migrate", Err: err}
	}

	return db, nil
}

// Migrate creates the history tables if they do not exist
func Migrate(db *sql.DB) error {
	_, err := db.Exec(historySchema)
	return err
}
