// Package memory provides an in-process TreeStore for tests and ephemeral use.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"catchcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.TreeStore = (*Store)(nil)

// ErrEmptyOperationID is returned when a tree is stored without operation id.
var ErrEmptyOperationID = errors.New("memory: empty operation id")

// Store keeps one cloned tree per operation. Trees are cloned on the way in
// and out so callers never share nodes with the store.
type Store struct {
	mu    sync.RWMutex
	trees map[string]*domain.Batch
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{trees: make(map[string]*domain.Batch)}
}

// Put stores a copy of tree.
func (s *Store) Put(ctx context.Context, operationID string, tree *domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if operationID == "" {
		return ErrEmptyOperationID
	}
	if tree == nil {
		return domain.ErrMissingTree
	}
	cp := tree.Clone()
	s.mu.Lock()
	s.trees[operationID] = cp
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored tree.
func (s *Store) Get(ctx context.Context, operationID string) (*domain.Batch, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	tree, ok := s.trees[operationID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return tree.Clone(), true, nil
}

// Delete removes a tree.
func (s *Store) Delete(ctx context.Context, operationID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trees[operationID]; !ok {
		return false, nil
	}
	delete(s.trees, operationID)
	return true, nil
}

// List returns stored operation ids in ascending order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]string, 0, len(s.trees))
	for id := range s.trees {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}
