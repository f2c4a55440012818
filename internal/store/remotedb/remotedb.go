// Package remotedb provides a SQLite-backed implementation of the remote
// document collection store.
//
// Documents are stored as JSON blobs keyed by "users/{userID}/{collection}"
// plus document key. Range queries order by a top-level JSON field via
// json_extract, and batched writes run in a single transaction.
//
// The store carries a fault-injection hook (SetFailure) so the sync engine
// can be exercised offline in tests and demos without a network.
package remotedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/daybook-app/daybook/internal/store"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// fieldPattern restricts order/filter fields to plain identifiers since they
// are interpolated into json_extract paths.
var fieldPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// DB implements store.Remote on an embedded SQLite database.
type DB struct {
	conn   *sql.DB
	userID string

	failMu  sync.Mutex
	failure error
}

// Open creates or opens the remote document database at path for one user.
//
// The caller MUST call Close() when done.
func Open(path, userID string) (*DB, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
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

	db := &DB{conn: conn, userID: userID}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT NOT NULL,       -- users/{user}/{collection}
		key TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (path, key)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the underlying database connection.
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

// SetFailure forces every subsequent operation to fail with err until called
// again with nil. Used to simulate an unreachable remote.
func (db *DB) SetFailure(err error) {
	db.failMu.Lock()
	db.failure = err
	db.failMu.Unlock()
}

func (db *DB) checkAvailable() error {
	db.failMu.Lock()
	defer db.failMu.Unlock()
	if db.failure != nil {
		return fmt.Errorf("%w: %v", store.ErrRemoteUnavailable, db.failure)
	}
	return nil
}

func (db *DB) path(collection string) string {
	return "users/" + db.userID + "/" + collection
}

// Get implements store.Remote.
func (db *DB) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := db.checkAvailable(); err != nil {
		return nil, err
	}

	var value []byte
	err := db.conn.QueryRowContext(ctx,
		"SELECT value FROM documents WHERE path = ? AND key = ?",
		db.path(collection), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s/%s: %v", store.ErrRemoteUnavailable, collection, key, err)
	}
	return value, nil
}

// Set implements store.Remote.
func (db *DB) Set(ctx context.Context, collection, key string, value []byte) error {
	if err := db.checkAvailable(); err != nil {
		return err
	}

	query := `
	INSERT INTO documents (path, key, value, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(path, key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		db.path(collection), key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: set %s/%s: %v", store.ErrRemoteUnavailable, collection, key, err)
	}
	return nil
}

// Update implements store.Remote. Fails with ErrNotFound for absent documents.
func (db *DB) Update(ctx context.Context, collection, key string, value []byte) error {
	if err := db.checkAvailable(); err != nil {
		return err
	}

	res, err := db.conn.ExecContext(ctx,
		"UPDATE documents SET value = ?, updated_at = ? WHERE path = ? AND key = ?",
		value, time.Now().UTC().Format(time.RFC3339), db.path(collection), key)
	if err != nil {
		return fmt.Errorf("%w: update %s/%s: %v", store.ErrRemoteUnavailable, collection, key, err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete implements store.Remote. Deleting an absent document is not an error.
func (db *DB) Delete(ctx context.Context, collection, key string) error {
	if err := db.checkAvailable(); err != nil {
		return err
	}

	_, err := db.conn.ExecContext(ctx,
		"DELETE FROM documents WHERE path = ? AND key = ?", db.path(collection), key)
	if err != nil {
		return fmt.Errorf("%w: delete %s/%s: %v", store.ErrRemoteUnavailable, collection, key, err)
	}
	return nil
}

// Query implements store.Remote.
func (db *DB) Query(ctx context.Context, collection string, opts store.QueryOptions) (*store.Page, error) {
	if err := db.checkAvailable(); err != nil {
		return nil, err
	}

	orderExpr := "key"
	if opts.OrderBy != "" {
		if !fieldPattern.MatchString(opts.OrderBy) {
			return nil, fmt.Errorf("invalid order field: %s", opts.OrderBy)
		}
		orderExpr = fmt.Sprintf("COALESCE(json_extract(value, '$.%s'), '')", opts.OrderBy)
	}

	conditions := []string{"path = ?"}
	args := []interface{}{db.path(collection)}

	for _, w := range opts.Where {
		if !fieldPattern.MatchString(w.Field) {
			return nil, fmt.Errorf("invalid filter field: %s", w.Field)
		}
		conditions = append(conditions,
			fmt.Sprintf("json_extract(value, '$.%s') = ?", w.Field))
		args = append(args, w.Value)
	}

	cmp := ">"
	dir := "ASC"
	if opts.Descending {
		cmp = "<"
		dir = "DESC"
	}

	if opts.StartAfter != "" {
		ov, k, err := store.DecodeCursor(opts.StartAfter)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, fmt.Sprintf(
			"((%s %s ?) OR (%s = ? AND key %s ?))", orderExpr, cmp, orderExpr, cmp))
		args = append(args, ov, ov, k)
	}

	query := fmt.Sprintf(
		"SELECT key, value, %s FROM documents WHERE %s ORDER BY %s %s, key %s",
		orderExpr, joinAnd(conditions), orderExpr, dir, dir)
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", store.ErrRemoteUnavailable, collection, err)
	}
	defer rows.Close()

	page := &store.Page{}
	var lastOrderValue string
	for rows.Next() {
		var doc store.Doc
		if err := rows.Scan(&doc.Key, &doc.Value, &lastOrderValue); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		page.Docs = append(page.Docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %v", store.ErrRemoteUnavailable, collection, err)
	}

	if opts.Limit > 0 && len(page.Docs) == opts.Limit {
		last := page.Docs[len(page.Docs)-1]
		page.NextCursor = store.EncodeCursor(lastOrderValue, last.Key)
	}
	return page, nil
}

// BatchWrite implements store.Remote. The whole batch runs in one
// transaction; ErrBatchTooLarge for batches over store.MaxBatchSize.
func (db *DB) BatchWrite(ctx context.Context, ops []store.Op) error {
	if len(ops) > store.MaxBatchSize {
		return fmt.Errorf("%w: %d > %d", store.ErrBatchTooLarge, len(ops), store.MaxBatchSize)
	}
	if err := db.checkAvailable(); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin batch: %v", store.ErrRemoteUnavailable, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, op := range ops {
		switch op.Kind {
		case store.OpSet:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO documents (path, key, value, updated_at) VALUES (?, ?, ?, ?)
				ON CONFLICT(path, key) DO UPDATE SET
					value = excluded.value,
					updated_at = excluded.updated_at`,
				db.path(op.Collection), op.Key, op.Value, now)
		case store.OpDelete:
			_, err = tx.ExecContext(ctx,
				"DELETE FROM documents WHERE path = ? AND key = ?",
				db.path(op.Collection), op.Key)
		default:
			err = fmt.Errorf("unknown op kind %d", op.Kind)
		}
		if err != nil {
			return fmt.Errorf("%w: batch op %s/%s: %v", store.ErrRemoteUnavailable, op.Collection, op.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit batch: %v", store.ErrRemoteUnavailable, err)
	}
	return nil
}

// Count returns the number of documents in a collection.
func (db *DB) Count(ctx context.Context, collection string) (int, error) {
	if err := db.checkAvailable(); err != nil {
		return 0, err
	}

	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE path = ?", db.path(collection)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", store.ErrRemoteUnavailable, collection, err)
	}
	return count, nil
}

func joinAnd(conditions []string) string {
	out := conditions[0]
	for _, c := range conditions[1:] {
		out += " AND " + c
	}
	return out
}
