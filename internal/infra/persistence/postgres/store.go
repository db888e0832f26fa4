// Package postgres provides a Postgres-backed TreeStore storing one JSONB tree
// per fishing operation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"catchcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.TreeStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with OpenTreeStore defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/catchcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists trees to Postgres.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN) and ensures the tree table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureTreeTable(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func ensureTreeTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS catch_tree (
		operation_id TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure catch_tree table: %w", err)
	}
	return nil
}

// Put stores (or replaces) the tree of an operation.
func (s *Store) Put(ctx context.Context, operationID string, tree *domain.Batch) error {
	if tree == nil {
		return domain.ErrMissingTree
	}
	payload, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode tree %s: %w", operationID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO catch_tree (operation_id, payload, updated_at) VALUES ($1,$2,$3) ON CONFLICT (operation_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		operationID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert tree %s: %w", operationID, err)
	}
	return nil
}

// Get loads the tree of an operation.
func (s *Store) Get(ctx context.Context, operationID string) (*domain.Batch, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT operation_id, payload FROM catch_tree WHERE operation_id = $1`, operationID)
	if err != nil {
		return nil, false, fmt.Errorf("select tree %s: %w", operationID, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, false, fmt.Errorf("scan tree %s: %w", operationID, err)
		}
		if id != operationID {
			continue
		}
		var tree domain.Batch
		if err := json.Unmarshal(payload, &tree); err != nil {
			return nil, false, fmt.Errorf("decode tree %s: %w", operationID, err)
		}
		return &tree, true, nil
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("select tree %s: %w", operationID, err)
	}
	return nil, false, nil
}

// Delete removes the tree of an operation.
func (s *Store) Delete(ctx context.Context, operationID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catch_tree WHERE operation_id = $1`, operationID)
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

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
