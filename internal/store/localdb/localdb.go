// Package localdb provides the SQLite-backed local key/value store.
//
// The database runs embedded (ncruces/go-sqlite3) with WAL enabled so the
// daemon and CLI can read concurrently while writes are in flight. Every key
// is stored under a fixed namespace prefix, which lets several logical stores
// share one database file.
package localdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/daybook-app/daybook/internal/store"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection behind the store.Local contract.
type DB struct {
	conn      *sql.DB
	path      string
	namespace string
}

// Open creates or opens the local database at path, scoped to namespace.
//
// The caller MUST call Close() when done to ensure the WAL is checkpointed.
//
// Example:
//
//	local, err := localdb.Open(".daybook/local.db", "daybook")
//	if err != nil {
//	    return err
//	}
//	defer local.Close()
func Open(path, namespace string) (*DB, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path, namespace: namespace}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if err := db.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (db *DB) scoped(key string) string {
	return db.namespace + ":" + key
}

// Get implements store.Local.
func (db *DB) Get(key string) ([]byte, error) {
	var value []byte
	err := db.conn.QueryRow("SELECT value FROM kv WHERE key = ?", db.scoped(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", store.ErrStorageUnavailable, key, err)
	}
	return value, nil
}

// Set implements store.Local.
func (db *DB) Set(key string, value []byte) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.Exec(query, db.scoped(key), value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", store.ErrStorageUnavailable, key, err)
	}
	return nil
}

// Delete implements store.Local. Deleting an absent key is not an error.
func (db *DB) Delete(key string) error {
	if _, err := db.conn.Exec("DELETE FROM kv WHERE key = ?", db.scoped(key)); err != nil {
		return fmt.Errorf("%w: delete %s: %v", store.ErrStorageUnavailable, key, err)
	}
	return nil
}

// Keys implements store.Local. Returned keys have the namespace stripped.
func (db *DB) Keys(prefix string) ([]string, error) {
	scoped := db.scoped(prefix)
	rows, err := db.conn.Query(
		"SELECT key FROM kv WHERE key >= ? AND key < ? ORDER BY key ASC",
		scoped, scoped+"￿")
	if err != nil {
		return nil, fmt.Errorf("%w: keys %s: %v", store.ErrStorageUnavailable, prefix, err)
	}
	defer rows.Close()

	var keys []string
	strip := len(db.namespace) + 1
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("%w: scan key: %v", store.ErrStorageUnavailable, err)
		}
		keys = append(keys, k[strip:])
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate keys: %v", store.ErrStorageUnavailable, err)
	}
	return keys, nil
}
