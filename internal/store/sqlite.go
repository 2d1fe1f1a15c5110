package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// sqliteTier is the primary durable tier: a transactional key-value
// store addressed by (collection, key). NOT an interface - concrete type.
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type sqliteTier struct {
	db *sql.DB
	mu sync.Mutex
}

// openSQLite opens the primary tier at the given path, creating the
// schema if needed. Uses WAL mode for file-based databases.
func openSQLite(dbPath string) (*sqliteTier, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so all pooled connections see the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	t := &sqliteTier{db: db}
	if err := t.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return t, nil
}

func (t *sqliteTier) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		pos INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, key)
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection, pos);
	`
	if _, err := t.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (t *sqliteTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db.Close()
}

// record is one serialized row destined for a collection.
type record struct {
	Key  string
	Data []byte
}

// ReplaceCollection atomically replaces every row of one collection.
// Runs in a single transaction so readers never observe a half-written
// collection.
func (t *sqliteTier) ReplaceCollection(collection string, records []record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback is safe to call even after commit - it's a no-op
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("clear collection %s: %w", collection, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO records (collection, key, pos, data)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.Exec(collection, r.Key, i, string(r.Data)); err != nil {
			return fmt.Errorf("insert %s/%s: %w", collection, r.Key, err)
		}
	}

	return tx.Commit()
}

// ReadCollection returns every row of a collection in insertion order.
func (t *sqliteTier) ReadCollection(collection string) ([][]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows, err := t.db.Query(
		"SELECT data FROM records WHERE collection = ? ORDER BY pos", collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		out = append(out, []byte(data))
	}
	return out, rows.Err()
}

// Count returns the total number of rows across all collections.
func (t *sqliteTier) Count() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int
	err := t.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n)
	return n, err
}

// Clear removes every row from every collection.
func (t *sqliteTier) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.db.Exec("DELETE FROM records")
	return err
}
