package core

import (
	"context"
	"sync"
	"time"

	"catchcore/internal/validation"
	"catchcore/pkg/domain"
)

var fixedNow = time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)

func fixedClock() Clock { return ClockFunc(func() time.Time { return fixedNow }) }

// stubSpecs serves fixed weight specs and pmfms per acquisition level. Sorting
// pmfms can be overridden per gear.
type stubSpecs struct {
	mu      sync.Mutex
	weights []domain.WeightSpec
	levels  map[domain.AcquisitionLevel][]domain.PmfmSpec
	byGear  map[int][]domain.PmfmSpec
	err     error
	gears   []int
}

func newStubSpecs() *stubSpecs {
	return &stubSpecs{
		weights: domain.DefaultWeightSpecs(),
		levels:  make(map[domain.AcquisitionLevel][]domain.PmfmSpec),
		byGear:  make(map[int][]domain.PmfmSpec),
	}
}

func (s *stubSpecs) LoadWeightSpecs(ctx context.Context, _ string, _ *int) ([]domain.WeightSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.weights, nil
}

func (s *stubSpecs) LoadSortingSpecs(ctx context.Context, _ string, level domain.AcquisitionLevel, gearID *int) ([]domain.PmfmSpec, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if gearID != nil {
		s.gears = append(s.gears, *gearID)
		if pmfms, ok := s.byGear[*gearID]; ok && level == domain.AcquisitionSortingBatch {
			return pmfms, nil
		}
	}
	return s.levels[level], nil
}

// hookedForms runs onBuild before delegating to the default builder.
type hookedForms struct {
	inner   domain.FormBuilder
	onBuild func(b *domain.Batch)
}

func (h hookedForms) BuildForm(ctx context.Context, b *domain.Batch, pmfms []domain.PmfmSpec, opts domain.FormOptions) (domain.Form, error) {
	if h.onBuild != nil {
		h.onBuild(b)
	}
	return h.inner.BuildForm(ctx, b, pmfms, opts)
}

func newTestController(specs domain.SpecProvider, opts ...ControllerOption) *Controller {
	opts = append([]ControllerOption{WithControllerClock(fixedClock())}, opts...)
	return NewController(specs, validation.NewBuilder(), opts...)
}

func legacyProgram(props map[string]string) domain.Program {
	return domain.Program{Label: "SUMARiS", Properties: props}
}

func measuredWeight(v float64) *domain.BatchWeight {
	return &domain.BatchWeight{Value: v, Unit: domain.UnitKilogram, MethodID: domain.MethodMeasuredByObserver}
}

func taxonGroup(label string) *domain.Referential {
	return &domain.Referential{ID: 1, Label: label, Name: label}
}

// speciesGroup builds a sorting group with a total weight and, when sample is
// positive, a sampling child holding the sample weight.
func speciesGroup(rank int, label string, total, sample float64) *domain.Batch {
	g := domain.NewSortingBatch("", rank)
	g.TaxonGroup = taxonGroup(label)
	g.Weight = measuredWeight(total)
	if sample > 0 {
		s := domain.NewSamplingBatch(g)
		s.Weight = measuredWeight(sample)
		g.Children = []*domain.Batch{s}
	}
	return g
}

func catchTree(groups ...*domain.Batch) *domain.Batch {
	root := domain.NewCatchBatch()
	root.Children = groups
	return root
}
