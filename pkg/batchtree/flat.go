package batchtree

import (
	"fmt"

	"catchcore/pkg/domain"
)

// FlatBatch is one node of a flattened tree. The batch carries no children;
// ParentIndex is -1 for the root.
type FlatBatch struct {
	Index       int           `json:"index"`
	ParentIndex int           `json:"parentIndex"`
	Depth       int           `json:"depth"`
	Batch       *domain.Batch `json:"batch"`
}

// Flatten lists the nodes of the tree depth-first, parents before children.
func Flatten(root *domain.Batch) []FlatBatch {
	var out []FlatBatch
	var visit func(node *domain.Batch, parent, depth int)
	visit = func(node *domain.Batch, parent, depth int) {
		cp := node.Clone()
		cp.Children = nil
		index := len(out)
		out = append(out, FlatBatch{Index: index, ParentIndex: parent, Depth: depth, Batch: cp})
		for _, child := range node.Children {
			visit(child, index, depth+1)
		}
	}
	if root != nil {
		visit(root, -1, 0)
	}
	return out
}

// FromFlat rebuilds a tree from flattened nodes. Parents must precede their
// children and exactly one root is allowed.
func FromFlat(items []FlatBatch) (*domain.Batch, error) {
	if len(items) == 0 {
		return nil, domain.ErrMissingTree
	}
	nodes := make([]*domain.Batch, len(items))
	var root *domain.Batch
	for i, item := range items {
		if item.Batch == nil {
			return nil, fmt.Errorf("flat batch %d: missing batch", i)
		}
		node := item.Batch.Clone()
		node.Children = nil
		nodes[i] = node
		if item.ParentIndex < 0 {
			if root != nil {
				return nil, fmt.Errorf("flat batch %d: second root", i)
			}
			root = node
			continue
		}
		if item.ParentIndex >= i {
			return nil, fmt.Errorf("flat batch %d: parent %d does not precede it", i, item.ParentIndex)
		}
		parent := nodes[item.ParentIndex]
		parent.Children = append(parent.Children, node)
	}
	if root == nil {
		return nil, domain.ErrMissingTree
	}
	return root, nil
}
