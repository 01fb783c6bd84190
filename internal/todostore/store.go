package todostore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is a handle onto one workspace's todo.db. Operations open a
// transaction and release it on every exit path (spec.md §3 "scoped
// acquisition with guaranteed close on all exit paths").
type Store struct {
	db        *sql.DB
	workspace string
}

const schema = `
CREATE TABLE IF NOT EXISTS todo_items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL CHECK(status IN ('open','done')),
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	completed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_todo_items_status ON todo_items(status);

CREATE TABLE IF NOT EXISTS todo_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	todo_id INTEGER,
	event_type TEXT NOT NULL,
	actor TEXT NOT NULL CHECK(actor IN ('agent','system')),
	tool_name TEXT,
	payload_json TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_todo_events_todo_id ON todo_events(todo_id);
CREATE INDEX IF NOT EXISTS idx_todo_events_event_type ON todo_events(event_type);
CREATE INDEX IF NOT EXISTS idx_todo_events_created_at ON todo_events(created_at);
`

// dbPath returns {workspace}/.agent/todo.db.
func dbPath(workspace string) string {
	return filepath.Join(workspace, ".agent", "todo.db")
}

// CleanupTodoDbOnStartup removes the db file and any sidecars (-wal, -shm,
// -journal). Concurrent access during startup is not required (spec.md
// §4.4).
func CleanupTodoDbOnStartup(workspace string) error {
	path := dbPath(workspace)
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Open creates {workspace}/.agent and opens (creating if absent) the
// todo.db, applying the inline schema. Callers normally call
// CleanupTodoDbOnStartup first so every session starts from an empty
// store.
func Open(workspace string) (*Store, error) {
	dir := filepath.Join(workspace, ".agent")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("todostore: create .agent dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath(workspace))
	if err != nil {
		return nil, fmt.Errorf("todostore: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: single writer, simplest correct concurrency story
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("todostore: apply schema: %w", err)
	}
	return &Store{db: db, workspace: workspace}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
