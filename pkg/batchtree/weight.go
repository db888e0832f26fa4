package batchtree

import (
	"math"

	"catchcore/pkg/domain"
)

// RoundHalfUp rounds value to the given number of decimals, sending .5 toward
// positive infinity.
func RoundHalfUp(value float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	p := math.Pow(10, float64(decimals))
	return math.Trunc(value*p+0.5) / p
}

func specsOrDefault(specs []domain.WeightSpec) []domain.WeightSpec {
	if len(specs) == 0 {
		return domain.DefaultWeightSpecs()
	}
	return specs
}

// GetWeight resolves the effective weight of a single node. A weight already
// set on the node wins; otherwise every spec's measurement is a candidate and
// candidates are ranked measured, then estimated, then computed. Ties go to the
// first-listed spec. A nil spec list falls back to the default weight specs.
func GetWeight(node *domain.Batch, specs []domain.WeightSpec) *domain.BatchWeight {
	if node == nil {
		return nil
	}
	if node.Weight != nil {
		return node.Weight
	}
	var (
		best      *domain.BatchWeight
		bestScore = -1
	)
	for _, spec := range specsOrDefault(specs) {
		value, ok := node.MeasurementValues.Float(spec.PmfmID)
		if !ok {
			continue
		}
		method := spec.MethodID
		if method == domain.MethodUnknown {
			method = domain.MethodObservedByObserver
		}
		candidate := &domain.BatchWeight{
			Value:     value,
			Unit:      domain.UnitKilogram,
			MethodID:  method,
			Estimated: method == domain.MethodEstimatedByObserver,
			Computed:  spec.IsComputed || method == domain.MethodCalculated,
		}
		score := 0
		if !candidate.Computed {
			score += 10
		}
		if !candidate.Estimated {
			score++
		}
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best
}

// outputSpec selects the spec describing a derived sum: the weight-length sum
// spec when every contribution is a weight-length computation, otherwise the
// calculated spec.
func outputSpec(specs []domain.WeightSpec, allWeightLength bool) domain.WeightSpec {
	if allWeightLength {
		if spec, ok := domain.FindWeightSpec(specs, domain.MethodCalculatedWeightLengthSum); ok {
			return spec
		}
	}
	if spec, ok := domain.FindWeightSpec(specs, domain.MethodCalculated); ok {
		return spec
	}
	return domain.WeightSpec{MethodID: domain.MethodCalculated, IsComputed: true, MaximumNumberDecimals: domain.DefaultMaximumNumberDecimals}
}

// setComputedWeight stores a derived weight on node and mirrors it into the
// measurement of the spec, dropping stale values of other computed specs.
func setComputedWeight(node *domain.Batch, value float64, spec domain.WeightSpec, specs []domain.WeightSpec) {
	node.Weight = &domain.BatchWeight{
		Value:    value,
		Unit:     domain.UnitKilogram,
		MethodID: spec.MethodID,
		Computed: true,
	}
	if spec.PmfmID == 0 {
		return
	}
	values := node.EnsureMeasurementValues()
	for _, other := range specs {
		if other.IsComputed && other.PmfmID != spec.PmfmID {
			delete(values, other.PmfmID)
		}
	}
	values.SetFloat(spec.PmfmID, value)
}

// ComputeWeight derives weights bottom-up. Sums of individual leaves are written
// to the sampling child of their parent (created when missing) unless that
// child holds an operator weight. A stated parent weight lower than the sum
// flags the parent BAD and is left untouched. Sums are not written when any
// individual leaf has no resolvable weight.
//
// The returned weight is the resolved weight of node when it is a sampling
// batch, which is what its parent aggregates; other roles return nil.
func ComputeWeight(node *domain.Batch, specs []domain.WeightSpec) *domain.BatchWeight {
	if node == nil {
		return nil
	}
	return computeWeight(node, specsOrDefault(specs))
}

func computeWeight(node *domain.Batch, specs []domain.WeightSpec) *domain.BatchWeight {
	var (
		sum             float64
		contributions   int
		exhaustive      = true
		allWeightLength = true
	)
	for _, child := range node.Children {
		var w *domain.BatchWeight
		switch {
		case child.HasChildren():
			if w = computeWeight(child, specs); w == nil {
				continue
			}
		case child.IsIndividual() && IsNotEmpty(child, EmptyOptions{}):
			if w = GetWeight(child, specs); w == nil {
				exhaustive = false
				continue
			}
		default:
			continue
		}
		sum += w.Value
		contributions++
		if !isWeightLength(w.MethodID) {
			allWeightLength = false
		}
	}

	if exhaustive && contributions > 0 && sum != 0 && !node.IsCatch() {
		writeSum(node, sum, outputSpec(specs, allWeightLength), specs)
	}
	if node.IsSampling() {
		return GetWeight(node, specs)
	}
	return nil
}

// isWeightLength reports whether a weight was derived from length
// measurements, either per individual or as a sum of them.
func isWeightLength(m domain.WeightMethod) bool {
	return m == domain.MethodCalculatedWeightLength || m == domain.MethodCalculatedWeightLengthSum
}

func writeSum(node *domain.Batch, sum float64, spec domain.WeightSpec, specs []domain.WeightSpec) {
	value := RoundHalfUp(sum, spec.Decimals())
	current := GetWeight(node, specs)
	if current != nil {
		node.Weight = current
		if !current.Computed && current.Value < value {
			node.QualityFlag = domain.QualityFlagBad
			return
		}
	}
	target := node
	if !node.IsSampling() {
		created := GetSamplingChild(node) == nil
		target = GetOrCreateSamplingChild(node)
		if created {
			// a new sampling child holds the individuals, so it also holds their count
			sum, _ := directIndividualCount(target)
			setSamplingCount(target, sum)
		}
	}
	if existing := GetWeight(target, specs); existing == nil || existing.Computed {
		setComputedWeight(target, value, spec, specs)
	}
}
