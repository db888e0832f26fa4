// Package badger provides an embedded BadgerDB TreeStore. Trees are stored as
// JSON under the key "tree/<operation id>".
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"catchcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.TreeStore = (*Store)(nil)

const keyPrefix = "tree/"

// ErrPathRequired is returned when a persistent store is opened without a path.
var ErrPathRequired = errors.New("badger: path is required for persistent store")

// Config holds the options of a Badger store.
type Config struct {
	// Path is the database directory, ignored when InMemory is set.
	Path string
	// InMemory keeps all data in memory.
	InMemory bool
	// SyncWrites flushes every write to disk.
	SyncWrites bool
	// Logger receives Badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Store persists trees in BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens a Badger store with cfg.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, ErrPathRequired
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func treeKey(operationID string) []byte { return []byte(keyPrefix + operationID) }

// Put stores (or replaces) the tree of an operation.
func (s *Store) Put(ctx context.Context, operationID string, tree *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tree == nil {
		return domain.ErrMissingTree
	}
	payload, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode tree %s: %w", operationID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(treeKey(operationID), payload)
	})
}

// Get loads the tree of an operation.
func (s *Store) Get(ctx context.Context, operationID string) (*domain.Batch, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var tree *domain.Batch
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(treeKey(operationID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var b domain.Batch
			if err := json.Unmarshal(val, &b); err != nil {
				return fmt.Errorf("decode tree %s: %w", operationID, err)
			}
			tree = &b
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return tree, true, nil
}

// Delete removes the tree of an operation and reports whether it existed.
func (s *Store) Delete(ctx context.Context, operationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var existed bool
	err := s.db.Update(func(txn *badger.Txn) error {
		key := treeKey(operationID)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		existed = true
		return txn.Delete(key)
	})
	return existed, err
}

// List returns the stored operation ids in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	return ids, err
}
