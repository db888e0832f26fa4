package domain

import "context"

// TreeStore is a minimal abstraction over durable backends holding one catch
// tree per fishing operation.
type TreeStore interface {
	// Put stores (or replaces) the tree of an operation.
	Put(ctx context.Context, operationID string, tree *Batch) error
	// Get returns a copy of the stored tree.
	Get(ctx context.Context, operationID string) (*Batch, bool, error)
	// Delete removes a tree and reports whether it existed.
	Delete(ctx context.Context, operationID string) (bool, error)
	// List returns the stored operation ids in ascending order.
	List(ctx context.Context) ([]string, error)
}
