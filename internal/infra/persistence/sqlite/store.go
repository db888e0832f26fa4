// Package sqlite provides an embedded TreeStore backed by a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"catchcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.TreeStore = (*Store)(nil)

// DefaultPath is used when no database path is supplied.
const DefaultPath = "catchcore.db"

// Store persists one JSON encoded tree per operation.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (and creates when missing) the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS catch_tree (
		operation_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catch_tree table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Put stores (or replaces) the tree of an operation.
func (s *Store) Put(ctx context.Context, operationID string, tree *domain.Batch) error {
	if tree == nil {
		return domain.ErrMissingTree
	}
	payload, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode tree %s: %w", operationID, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO catch_tree(operation_id, payload, updated_at) VALUES(?,?,?)
		ON CONFLICT(operation_id) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`,
		operationID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert tree %s: %w", operationID, err)
	}
	return nil
}

// Get loads the tree of an operation.
func (s *Store) Get(ctx context.Context, operationID string) (*domain.Batch, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM catch_tree WHERE operation_id = ?`, operationID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select tree %s: %w", operationID, err)
	}
	var tree domain.Batch
	if err := json.Unmarshal(payload, &tree); err != nil {
		return nil, false, fmt.Errorf("decode tree %s: %w", operationID, err)
	}
	return &tree, true, nil
}

// Delete removes the tree of an operation.
func (s *Store) Delete(ctx context.Context, operationID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catch_tree WHERE operation_id = ?`, operationID)
	if err != nil {
		return false, fmt.Errorf("delete tree %s: %w", operationID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete tree %s: %w", operationID, err)
	}
	return n > 0, nil
}

// List returns the stored operation ids in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT operation_id FROM catch_tree ORDER BY operation_id`)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
