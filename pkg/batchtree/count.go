package batchtree

import "catchcore/pkg/domain"

// ComputeIndividualCount derives individual counts bottom-up from the direct
// individual children of each node (an unset individual count counts as 1).
//
// A sampling batch receives the sum. A sorting batch whose stated count is
// lower than the sum is flagged BAD; when its count is unset or greater, a
// sampling child is introduced to hold the partial count.
func ComputeIndividualCount(node *domain.Batch) {
	if node == nil || len(node.Children) == 0 {
		return
	}
	for _, child := range node.Children {
		ComputeIndividualCount(child)
	}
	sum, counted := directIndividualCount(node)

	switch {
	case node.IsSampling():
		setSamplingCount(node, sum)
	case node.IsSorting() && counted:
		stated := node.IndividualCount
		switch {
		case stated != nil && *stated < sum:
			node.QualityFlag = domain.QualityFlagBad
		case stated == nil || *stated > sum:
			sampling := GetOrCreateSamplingChild(node)
			sampling.IndividualCount = domain.IntPtr(sum)
		}
	}
}

// directIndividualCount sums the counts of the direct individual children of
// node. counted is false when node has no individual child.
func directIndividualCount(node *domain.Batch) (sum int, counted bool) {
	for _, child := range node.Children {
		if !child.IsIndividual() {
			continue
		}
		n := 1
		if child.IndividualCount != nil {
			n = *child.IndividualCount
		}
		sum += n
		counted = true
	}
	return sum, counted
}

func setSamplingCount(sampling *domain.Batch, sum int) {
	if sum > 0 {
		sampling.IndividualCount = domain.IntPtr(sum)
	} else {
		sampling.IndividualCount = nil
	}
}

// SumObservedIndividualCount counts the individuals observed in the subtree,
// defaulting an unset individual count to 1.
func SumObservedIndividualCount(node *domain.Batch) int {
	total := 0
	Walk(node, func(b *domain.Batch, _ int) bool {
		if b.IsIndividual() {
			if b.IndividualCount != nil {
				total += *b.IndividualCount
			} else {
				total++
			}
			return false
		}
		return true
	})
	return total
}

// ComputeTree derives individual counts then weights over the whole tree.
func ComputeTree(root *domain.Batch, specs []domain.WeightSpec) {
	if root == nil {
		return
	}
	ComputeIndividualCount(root)
	ComputeWeight(root, specs)
}
