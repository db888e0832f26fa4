// Package batchtree implements the structural algorithms of a catch batch tree:
// bottom-up derivation of weights, individual counts and sampling ratios, rank
// renumbering, emptiness pruning and predicate search.
//
// All functions mutate the tree in place and never return errors for data
// quality issues; inconsistencies are recorded as a BAD quality flag on the
// offending node.
package batchtree

import (
	"strings"

	"catchcore/pkg/domain"
)

// Walk visits node and its descendants depth-first, parents before children.
// Returning false from fn skips the subtree of the visited node.
func Walk(node *domain.Batch, fn func(b *domain.Batch, depth int) bool) {
	walk(node, 0, fn)
}

func walk(node *domain.Batch, depth int, fn func(*domain.Batch, int) bool) {
	if node == nil {
		return
	}
	if !fn(node, depth) {
		return
	}
	for _, child := range node.Children {
		walk(child, depth+1, fn)
	}
}

// GetSamplingChild returns the sampling child of node, if any.
func GetSamplingChild(node *domain.Batch) *domain.Batch {
	if node == nil {
		return nil
	}
	for _, child := range node.Children {
		if child.IsSampling() {
			return child
		}
	}
	return nil
}

// GetOrCreateSamplingChild returns the sampling child of node. When none exists,
// a new one is created that takes over all existing children.
func GetOrCreateSamplingChild(node *domain.Batch) *domain.Batch {
	if existing := GetSamplingChild(node); existing != nil {
		existing.Label = domain.SamplingLabel(node.Label)
		return existing
	}
	sampling := domain.NewSamplingBatch(node)
	sampling.Children = node.Children
	node.Children = []*domain.Batch{sampling}
	return sampling
}

// EmptyOptions relaxes the emptiness checks.
type EmptyOptions struct {
	IgnoreChildren   bool
	IgnoreTaxonGroup bool
	IgnoreTaxonName  bool
}

// IsNotEmpty reports whether the node holds any user or derived content.
func IsNotEmpty(node *domain.Batch, opts EmptyOptions) bool {
	if node == nil {
		return false
	}
	switch {
	case node.IndividualCount != nil:
		return true
	case !opts.IgnoreTaxonGroup && node.TaxonGroup != nil:
		return true
	case !opts.IgnoreTaxonName && node.TaxonName != nil:
		return true
	case node.SamplingRatio != nil:
		return true
	case node.Weight != nil:
		return true
	case node.MeasurementValues.Any():
		return true
	}
	if opts.IgnoreChildren {
		return false
	}
	for _, child := range node.Children {
		if IsNotEmpty(child, opts) {
			return true
		}
	}
	return false
}

// IsEmpty is the negation of IsNotEmpty.
func IsEmpty(node *domain.Batch, opts EmptyOptions) bool {
	return !IsNotEmpty(node, opts)
}

// CleanTree prunes empty descendants and reports whether node itself is empty,
// ignoring taxon identity. Callers detach node from its parent when true.
func CleanTree(node *domain.Batch) bool {
	return CleanTreeWith(node, EmptyOptions{IgnoreTaxonGroup: true, IgnoreTaxonName: true})
}

// CleanTreeWith is CleanTree with explicit emptiness options.
func CleanTreeWith(node *domain.Batch, opts EmptyOptions) bool {
	if node == nil {
		return true
	}
	var kept []*domain.Batch
	for _, child := range node.Children {
		if !CleanTreeWith(child, opts) {
			kept = append(kept, child)
		}
	}
	node.Children = kept
	self := opts
	self.IgnoreChildren = true
	return len(node.Children) == 0 && IsEmpty(node, self)
}

// Predicate selects batches.
type Predicate func(*domain.Batch) bool

// FindByFilter returns the nodes of the tree matching the predicate, in
// depth-first order. The root itself is a candidate.
func FindByFilter(root *domain.Batch, match Predicate) []*domain.Batch {
	if match == nil {
		return nil
	}
	var out []*domain.Batch
	Walk(root, func(b *domain.Batch, _ int) bool {
		if match(b) {
			out = append(out, b)
		}
		return true
	})
	return out
}

// DeleteByFilter detaches every descendant matching the predicate and returns
// the removed nodes. Removed subtrees are not searched further; the root is
// never removed.
func DeleteByFilter(root *domain.Batch, match Predicate) []*domain.Batch {
	if root == nil || match == nil {
		return nil
	}
	var removed []*domain.Batch
	var kept []*domain.Batch
	for _, child := range root.Children {
		if match(child) {
			removed = append(removed, child)
			continue
		}
		kept = append(kept, child)
		removed = append(removed, DeleteByFilter(child, match)...)
	}
	root.Children = kept
	return removed
}

// BatchFilter is a declarative predicate. Empty fields match everything.
type BatchFilter struct {
	Roles            []domain.Role
	LabelPrefix      string
	TaxonGroupLabels []string
	QualityFlags     []domain.QualityFlag
	// Landing restricts to batches marked as landing (true) or not (false).
	Landing *bool
}

// Match reports whether the batch satisfies every criterion of the filter.
func (f BatchFilter) Match(b *domain.Batch) bool {
	if b == nil {
		return false
	}
	if len(f.Roles) > 0 && !containsRole(f.Roles, b.Role) {
		return false
	}
	if f.LabelPrefix != "" && !strings.HasPrefix(b.Label, f.LabelPrefix) {
		return false
	}
	if len(f.TaxonGroupLabels) > 0 && !domain.ContainsTaxonGroup(f.TaxonGroupLabels, b.TaxonGroupLabel()) {
		return false
	}
	if len(f.QualityFlags) > 0 && !containsFlag(f.QualityFlags, b.QualityFlag) {
		return false
	}
	if f.Landing != nil && b.IsLanding() != *f.Landing {
		return false
	}
	return true
}

// Predicate returns the filter as a Predicate.
func (f BatchFilter) Predicate() Predicate {
	return f.Match
}

func containsRole(roles []domain.Role, r domain.Role) bool {
	for _, candidate := range roles {
		if candidate == r {
			return true
		}
	}
	return false
}

func containsFlag(flags []domain.QualityFlag, q domain.QualityFlag) bool {
	for _, candidate := range flags {
		if candidate == q {
			return true
		}
	}
	return false
}
