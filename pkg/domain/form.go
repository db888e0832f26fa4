package domain

import "context"

// FormOptions shapes the field-level validation of one batch.
type FormOptions struct {
	AcquisitionLevel        AcquisitionLevel
	WeightSpecs             []WeightSpec
	QvPmfm                  *PmfmSpec
	WeightRequired          bool
	IndividualCountRequired bool
	EnableSamplingBatch     bool
	SampleWeightRequired    bool
	// WithChildren validates every descendant sorting batch against the same pmfms.
	WithChildren  bool
	IsOnFieldMode bool
}

// Form is the outcome of a field-level validation. Asynchronous validators may
// leave it pending; callers await WaitWhilePending before reading Valid.
type Form interface {
	Pending() bool
	WaitWhilePending(ctx context.Context) error
	Valid() bool
	Errors() ErrorMap
}

// FormBuilder builds the validation form of a batch for the supplied pmfms.
type FormBuilder interface {
	BuildForm(ctx context.Context, batch *Batch, pmfms []PmfmSpec, opts FormOptions) (Form, error)
}
