package core

import (
	"context"
	"testing"

	"catchcore/pkg/domain"
)

func evaluateSampling(t *testing.T, group *domain.Batch, gc groupContext, noWeight bool) Result {
	t.Helper()
	view := groupView{group: group, gc: gc, noWeight: noWeight}
	res, err := NewSamplingConsistencyRule().Evaluate(context.Background(), view)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return res
}

func TestSamplingConsistencyRule(t *testing.T) {
	gc := groupContext{weightSpecs: domain.DefaultWeightSpecs()}

	consistent := speciesGroup(1, "COD", 10, 2.5)
	consistent.Children[0].SamplingRatio = domain.FloatPtr(0.25)
	if res := evaluateSampling(t, consistent, gc, false); len(res.Violations) != 0 {
		t.Fatalf("expected no violation, got %v", res.Violations)
	}

	inconsistent := speciesGroup(1, "COD", 10, 2.5)
	inconsistent.Children[0].SamplingRatio = domain.FloatPtr(0.5)
	res := evaluateSampling(t, inconsistent, gc, false)
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	if res.Errors()["children.0.samplingRatio"] != domain.ErrorSamplingRatio {
		t.Fatalf("unexpected errors %v", res.Errors())
	}

	if res := evaluateSampling(t, inconsistent, gc, true); len(res.Violations) != 0 {
		t.Fatalf("no-weight groups are skipped")
	}

	zeroTotal := speciesGroup(1, "COD", 0, 0)
	zeroTotal.Children = []*domain.Batch{domain.NewSamplingBatch(zeroTotal)}
	zeroTotal.Children[0].SamplingRatio = domain.FloatPtr(0.5)
	zeroTotal.Children[0].Weight = measuredWeight(1)
	if res := evaluateSampling(t, zeroTotal, gc, false); len(res.Violations) != 0 {
		t.Fatalf("zero totals are skipped")
	}
}

func TestSamplingConsistencyRuleQualitativeChildren(t *testing.T) {
	qv := landingPmfm()
	gc := groupContext{weightSpecs: domain.DefaultWeightSpecs(), qvPmfm: &qv}
	group := domain.NewSortingBatch("", 1)
	landing := qvChild(1, domain.QualitativeValueLanding)
	landing.Weight = measuredWeight(8)
	sampling := domain.NewSamplingBatch(landing)
	sampling.Weight = measuredWeight(1)
	sampling.SamplingRatio = domain.FloatPtr(0.5)
	landing.Children = []*domain.Batch{sampling}
	group.Children = []*domain.Batch{landing}

	res := evaluateSampling(t, group, gc, false)
	if res.Errors()["children.0.children.0.samplingRatio"] != domain.ErrorSamplingRatio {
		t.Fatalf("unexpected errors %v", res.Errors())
	}
}
