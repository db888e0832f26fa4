package batchtree

import (
	"sort"

	"catchcore/pkg/domain"
)

// RankCounter hands out individual rank orders across a whole tree.
type RankCounter struct {
	next int
}

// NewRankCounter returns a counter starting at start (minimum 1).
func NewRankCounter(start int) *RankCounter {
	if start < 1 {
		start = 1
	}
	return &RankCounter{next: start}
}

// Next returns the current rank and advances the counter.
func (c *RankCounter) Next() int {
	n := c.next
	c.next++
	return n
}

// Peek returns the rank the next individual will receive.
func (c *RankCounter) Peek() int { return c.next }

// Renumber reorders siblings by persistence id and reassigns rank orders and
// labels, numbering individuals from 1 across the whole tree.
func Renumber(root *domain.Batch) {
	RenumberWith(root, NewRankCounter(1))
}

// RenumberWith is Renumber with an explicit individual counter, which is
// advanced as individuals are visited depth-first.
func RenumberWith(node *domain.Batch, counter *RankCounter) {
	if node == nil || len(node.Children) == 0 {
		return
	}
	if counter == nil {
		counter = NewRankCounter(1)
	}
	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i].ID, node.Children[j].ID
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	for i, child := range node.Children {
		switch child.Role {
		case domain.RoleIndividual:
			child.RankOrder = counter.Next()
			child.Label = domain.IndividualLabel(child.RankOrder)
		case domain.RoleSampling:
			child.RankOrder = i + 1
			child.Label = domain.SamplingLabel(node.Label)
		default:
			child.RankOrder = i + 1
		}
		RenumberWith(child, counter)
	}
}
