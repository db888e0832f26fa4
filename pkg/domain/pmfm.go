package domain

import "fmt"

// PmfmType is the value type of a pmfm.
type PmfmType string

// Supported pmfm value types.
const (
	PmfmTypeDouble      PmfmType = "double"
	PmfmTypeInteger     PmfmType = "integer"
	PmfmTypeQualitative PmfmType = "qualitative_value"
	PmfmTypeString      PmfmType = "string"
	PmfmTypeBoolean     PmfmType = "boolean"
)

// Valid reports whether the type is known.
func (t PmfmType) Valid() bool {
	switch t {
	case PmfmTypeDouble, PmfmTypeInteger, PmfmTypeQualitative, PmfmTypeString, PmfmTypeBoolean:
		return true
	}
	return false
}

// QualitativeValue is one allowed value of a qualitative pmfm.
type QualitativeValue struct {
	ID    int    `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
	Name  string `json:"name" yaml:"name"`
}

// PmfmSpec describes one measurable field attached to an acquisition level.
type PmfmSpec struct {
	ID                    int                `json:"id" yaml:"id"`
	Label                 string             `json:"label" yaml:"label"`
	Name                  string             `json:"name" yaml:"name"`
	Type                  PmfmType           `json:"type" yaml:"type"`
	MethodID              WeightMethod       `json:"methodId,omitempty" yaml:"-"`
	IsWeight              bool               `json:"isWeight,omitempty" yaml:"isWeight"`
	IsComputed            bool               `json:"isComputed,omitempty" yaml:"isComputed"`
	Required              bool               `json:"required,omitempty" yaml:"required"`
	Hidden                bool               `json:"hidden,omitempty" yaml:"hidden"`
	MinValue              *float64           `json:"minValue,omitempty" yaml:"minValue"`
	MaxValue              *float64           `json:"maxValue,omitempty" yaml:"maxValue"`
	MaximumNumberDecimals *int               `json:"maximumNumberDecimals,omitempty" yaml:"maximumNumberDecimals"`
	QualitativeValues     []QualitativeValue `json:"qualitativeValues,omitempty" yaml:"qualitativeValues"`
}

// IsQualitative reports whether the pmfm holds qualitative values.
func (p PmfmSpec) IsQualitative() bool { return p.Type == PmfmTypeQualitative }

// DisplayName returns the name, or the label when no name is set.
func (p PmfmSpec) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Label != "" {
		return p.Label
	}
	return fmt.Sprintf("pmfm #%d", p.ID)
}

// QualitativeValue finds an allowed value by id.
func (p PmfmSpec) QualitativeValue(id int) (QualitativeValue, bool) {
	for _, qv := range p.QualitativeValues {
		if qv.ID == id {
			return qv, true
		}
	}
	return QualitativeValue{}, false
}

// WeightSpec returns the weight view of the pmfm.
func (p PmfmSpec) WeightSpec() WeightSpec {
	decimals := DefaultMaximumNumberDecimals
	if p.MaximumNumberDecimals != nil {
		decimals = *p.MaximumNumberDecimals
	}
	return WeightSpec{PmfmID: p.ID, MethodID: p.MethodID, IsComputed: p.IsComputed, MaximumNumberDecimals: decimals}
}

// DefaultMaximumNumberDecimals is the precision applied to weights when a spec sets none.
const DefaultMaximumNumberDecimals = 3

// WeightSpec is a weight pmfm. Lists of specs are ordered by priority.
type WeightSpec struct {
	PmfmID                int          `json:"pmfmId" yaml:"pmfmId"`
	MethodID              WeightMethod `json:"methodId" yaml:"-"`
	IsComputed            bool         `json:"isComputed" yaml:"isComputed"`
	MaximumNumberDecimals int          `json:"maximumNumberDecimals" yaml:"maximumNumberDecimals"`
}

// Decimals returns the precision of the spec, defaulting when unset.
func (s WeightSpec) Decimals() int {
	if s.MaximumNumberDecimals <= 0 {
		return DefaultMaximumNumberDecimals
	}
	return s.MaximumNumberDecimals
}

// DefaultWeightSpecs returns the weight specs used when a program defines none.
func DefaultWeightSpecs() []WeightSpec {
	return []WeightSpec{
		{PmfmID: PmfmBatchMeasuredWeight, MethodID: MethodMeasuredByObserver, MaximumNumberDecimals: 3},
		{PmfmID: PmfmBatchEstimatedWeight, MethodID: MethodEstimatedByObserver, MaximumNumberDecimals: 3},
		{PmfmID: PmfmBatchCalculatedWeight, MethodID: MethodCalculated, IsComputed: true, MaximumNumberDecimals: 3},
		{PmfmID: PmfmBatchCalculatedWeightLength, MethodID: MethodCalculatedWeightLength, IsComputed: true, MaximumNumberDecimals: 6},
		{PmfmID: PmfmBatchCalculatedWeightLengthSum, MethodID: MethodCalculatedWeightLengthSum, IsComputed: true, MaximumNumberDecimals: 3},
	}
}

// WeightSpecsOf extracts the weight specs from a pmfm list, keeping order.
func WeightSpecsOf(pmfms []PmfmSpec) []WeightSpec {
	var out []WeightSpec
	for _, p := range pmfms {
		if p.IsWeight {
			out = append(out, p.WeightSpec())
		}
	}
	return out
}

// FindWeightSpec returns the first spec using the method.
func FindWeightSpec(specs []WeightSpec, method WeightMethod) (WeightSpec, bool) {
	for _, s := range specs {
		if s.MethodID == method {
			return s, true
		}
	}
	return WeightSpec{}, false
}

// QvPmfm selects the qualitative pmfm used to split a species group into
// sub-batches: discard-or-landing when present and visible, otherwise the
// first visible pmfm if it is qualitative with two or three values.
func QvPmfm(pmfms []PmfmSpec) (PmfmSpec, bool) {
	for _, p := range pmfms {
		if p.ID == PmfmDiscardOrLanding && !p.Hidden {
			return p, true
		}
	}
	for _, p := range pmfms {
		if p.Hidden {
			continue
		}
		if p.IsQualitative() && len(p.QualitativeValues) >= 2 && len(p.QualitativeValues) <= 3 {
			return p, true
		}
		break
	}
	return PmfmSpec{}, false
}
