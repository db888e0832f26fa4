package core

import (
	"catchcore/pkg/batchtree"
	"catchcore/pkg/domain"
)

type defaultPolicy struct {
	specs                   []domain.WeightSpec
	weightRequired          bool
	individualCountRequired bool
	format                  domain.SamplingRatioFormat
}

// fillNoLandingDefault fills a zero count or weight on a landing batch of a
// species that may not be landed, when nothing can be computed from its
// children.
func (p defaultPolicy) fillNoLandingDefault(b *domain.Batch, logger Logger) {
	if !b.IsLanding() {
		return
	}
	if p.individualCountRequired && b.IndividualCount == nil {
		batchtree.ComputeIndividualCount(b)
		sum := 0
		if s := batchtree.GetSamplingChild(b); s != nil && s.IndividualCount != nil {
			sum = *s.IndividualCount
		}
		if sum == 0 && b.IndividualCount == nil {
			logger.Debug("no landing default", "batch", b.Label, "field", "individualCount")
			b.IndividualCount = domain.IntPtr(0)
		}
	}
	if p.weightRequired && batchtree.GetWeight(b, p.specs) == nil {
		batchtree.ComputeWeight(b, p.specs)
		computed := 0.0
		if w := batchtree.GetWeight(batchtree.GetSamplingChild(b), p.specs); w != nil {
			computed = w.Value
		}
		if computed == 0 && batchtree.GetWeight(b, p.specs) == nil {
			logger.Debug("no landing default", "batch", b.Label, "field", "weight")
			b.Weight = p.zeroWeight()
		}
	}
}

func (p defaultPolicy) zeroWeight() *domain.BatchWeight {
	specs := p.specs
	if len(specs) == 0 {
		specs = domain.DefaultWeightSpecs()
	}
	first := specs[0]
	return &domain.BatchWeight{
		Value:     0,
		Unit:      domain.UnitKilogram,
		MethodID:  first.MethodID,
		Computed:  first.IsComputed,
		Estimated: first.MethodID == domain.MethodEstimatedByObserver,
	}
}

// applyDefaults resolves the weight of b, then fills the no-landing and
// sampling defaults.
func (p defaultPolicy) applyDefaults(b *domain.Batch, noLanding, enableSampling bool, logger Logger) {
	if w := batchtree.GetWeight(b, p.specs); w != nil {
		b.Weight = w
	}
	if noLanding {
		p.fillNoLandingDefault(b, logger)
	}
	if enableSampling {
		batchtree.ReconcileSampling(b, batchtree.SamplingOptions{
			WeightSpecs:    p.specs,
			WeightRequired: p.weightRequired,
			Format:         p.format,
		})
	}
}
