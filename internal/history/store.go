// Package history records finished runs in an optional SQLite ledger:
// one row per run, per file and per verified engine step.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed run ledger.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at dbPath.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// OpenMemory opens a private in-memory ledger, for tests.
func OpenMemory(ctx context.Context) (*Store, error) {
	// Named so that the pool's connections share it, and unique so that
	// separate stores don't.
	return open(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
}

func open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc.org/sqlite ignores _foreign_keys in the DSN.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		jobs INTEGER NOT NULL,
		threshold INTEGER NOT NULL,
		total INTEGER NOT NULL,
		converged INTEGER NOT NULL,
		aborted INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		corrupted INTEGER NOT NULL,
		engine_failures INTEGER NOT NULL,
		original_bytes INTEGER NOT NULL,
		final_bytes INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		original_size INTEGER NOT NULL,
		final_size INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		corrupted INTEGER NOT NULL,
		engine_failures INTEGER NOT NULL,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_run_id ON tasks(run_id);

	CREATE TABLE IF NOT EXISTS steps (
		task_id INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		iteration INTEGER NOT NULL,
		engine TEXT NOT NULL,
		engine_ok INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		size_before INTEGER NOT NULL,
		size_after INTEGER NOT NULL,
		PRIMARY KEY (task_id, seq),
		FOREIGN KEY (task_id) REFERENCES tasks(id) ON DELETE CASCADE
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
