// Package blob exposes the blob storage contract and its backends. Callers
// depend on blob.Store; the infra packages stay behind the constructors here.
package blob

import (
	"catchcore/internal/blob/core"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	// ErrUnsupported indicates an operation isn't supported by a driver.
	ErrUnsupported = core.ErrUnsupported
	// ErrNotFound is wrapped when a key does not exist.
	ErrNotFound = core.ErrNotFound
	// ErrExists is wrapped when Put targets an existing key.
	ErrExists = core.ErrExists
)
