package core

import (
	"context"
	"fmt"
	"os"

	"catchcore/internal/infra/persistence/badger"
	"catchcore/internal/infra/persistence/memory"
	"catchcore/internal/infra/persistence/postgres"
	"catchcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete tree storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBadger   StorageDriver = "badger"   // embedded BadgerDB directory
)

const defaultBadgerPath = "catchcore.badger"

// OpenTreeStore selects a backend using environment variables.
// Defaults to sqlite when unset. The returned close function releases the
// backend and is never nil.
//
//	CATCHCORE_STORAGE_DRIVER: memory|sqlite|postgres|badger (default sqlite)
//	CATCHCORE_SQLITE_PATH: path to sqlite file (default ./catchcore.db)
//	CATCHCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	CATCHCORE_BADGER_PATH: badger directory (default ./catchcore.badger)
func OpenTreeStore(ctx context.Context) (TreeStore, func() error, error) {
	driver := os.Getenv("CATCHCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	noClose := func() error { return nil }
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), noClose, nil
	case StorageSQLite:
		store, err := sqlite.NewStore(os.Getenv("CATCHCORE_SQLITE_PATH"))
		if err != nil {
			return nil, noClose, err
		}
		return store, store.Close, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, os.Getenv("CATCHCORE_POSTGRES_DSN"))
		if err != nil {
			return nil, noClose, err
		}
		return store, store.Close, nil
	case StorageBadger:
		path := os.Getenv("CATCHCORE_BADGER_PATH")
		if path == "" {
			path = defaultBadgerPath
		}
		store, err := badger.Open(badger.Config{Path: path, SyncWrites: true})
		if err != nil {
			return nil, noClose, err
		}
		return store, store.Close, nil
	default:
		return nil, noClose, fmt.Errorf("unknown storage driver %s", driver)
	}
}
