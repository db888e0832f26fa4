package core

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"catchcore/pkg/batchtree"
	"catchcore/pkg/domain"
)

const samplingConsistencyRuleName = "sampling_ratio_consistency"

// NewSamplingConsistencyRule requires the sampling ratio of a sampling batch to
// agree with its sample and total weights when all three are known.
func NewSamplingConsistencyRule() Rule {
	return samplingConsistencyRule{}
}

type samplingConsistencyRule struct{}

func (samplingConsistencyRule) Name() string { return samplingConsistencyRuleName }

func (r samplingConsistencyRule) Evaluate(_ context.Context, view RuleView) (Result, error) {
	res := Result{}
	group := view.Group()
	if group == nil || view.IsTaxonGroupNoWeight() {
		return res, nil
	}
	specs := view.WeightSpecs()
	check := func(unit *domain.Batch, prefix string) {
		for k, child := range unit.Children {
			if !child.IsSampling() {
				continue
			}
			if v, ok := r.checkSampling(unit, child, specs); !ok {
				v.Path = domain.JoinPath(prefix, "children", strconv.Itoa(k), "samplingRatio")
				res.Violations = append(res.Violations, v)
			}
		}
	}
	if _, ok := view.QvPmfm(); ok {
		for j, child := range group.Children {
			if child.IsSorting() {
				check(child, domain.JoinPath("children", strconv.Itoa(j)))
			}
		}
		return res, nil
	}
	check(group, "")
	return res, nil
}

func (samplingConsistencyRule) checkSampling(unit, sampling *domain.Batch, specs []domain.WeightSpec) (Violation, bool) {
	if sampling.SamplingRatio == nil {
		return Violation{}, true
	}
	total := batchtree.GetWeight(unit, specs)
	sample := batchtree.GetWeight(sampling, specs)
	if total == nil || sample == nil || total.Value == 0 {
		return Violation{}, true
	}
	decimals := domain.DefaultMaximumNumberDecimals
	if spec, ok := domain.FindWeightSpec(specsOrDefault(specs), sample.MethodID); ok {
		decimals = spec.Decimals()
	}
	expected := batchtree.RoundHalfUp(total.Value**sampling.SamplingRatio, decimals)
	tolerance := math.Pow(10, -float64(decimals))
	if math.Abs(expected-sample.Value) <= tolerance {
		return Violation{}, true
	}
	return Violation{
		Rule:     samplingConsistencyRuleName,
		Severity: SeverityBlock,
		Code:     domain.ErrorSamplingRatio,
		Message: fmt.Sprintf("sampling ratio %s does not match sample weight %s out of %s",
			strconv.FormatFloat(*sampling.SamplingRatio, 'f', -1, 64),
			strconv.FormatFloat(sample.Value, 'f', -1, 64),
			strconv.FormatFloat(total.Value, 'f', -1, 64)),
	}, false
}

func specsOrDefault(specs []domain.WeightSpec) []domain.WeightSpec {
	if len(specs) == 0 {
		return domain.DefaultWeightSpecs()
	}
	return specs
}
