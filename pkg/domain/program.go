package domain

import (
	"strconv"
	"strings"
)

// Program property keys understood by the engine.
const (
	PropertyOperationEditor      = "trip.operation.editor"
	PropertyTaxonGroupsNoWeight  = "trip.batch.taxonGroups.noWeight"
	PropertyTaxonGroupsNoLanding = "trip.batch.taxonGroups.noLanding"
	PropertySamplingRatioFormat  = "trip.batch.samplingRatio.format"
	PropertyAllowSamplingBatches = "trip.batch.sampling.enable"
	PropertyAllowChildrenGears   = "trip.physicalGear.allowChildren"
	PropertySampleWeightRequired = "trip.batch.sampling.weight.required"
)

// Editor identifies the operation editor a program uses, which selects the
// control pipeline.
type Editor string

// Known editors.
const (
	EditorLegacy      Editor = "legacy"
	EditorSelectivity Editor = "selectivity"
)

// SamplingRatioFormat is the textual format used to display a sampling ratio.
type SamplingRatioFormat string

// Known sampling ratio formats.
const (
	SamplingRatioPercent  SamplingRatioFormat = "%"
	SamplingRatioFraction SamplingRatioFormat = "1/w"
)

// Valid reports whether the format is known.
func (f SamplingRatioFormat) Valid() bool {
	return f == SamplingRatioPercent || f == SamplingRatioFraction
}

// Program carries the data collection program configuration consumed by the controller.
type Program struct {
	Label      string            `json:"label" yaml:"label"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties"`
}

// Property returns a raw property value.
func (p Program) Property(key string) string {
	if p.Properties == nil {
		return ""
	}
	return strings.TrimSpace(p.Properties[key])
}

// Bool returns a boolean property, or def when unset or unparsable.
func (p Program) Bool(key string, def bool) bool {
	raw := p.Property(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

// Strings returns a comma separated property as a trimmed list.
func (p Program) Strings(key string) []string {
	raw := p.Property(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Editor returns the configured editor, defaulting to legacy.
func (p Program) Editor() Editor {
	if e := Editor(p.Property(PropertyOperationEditor)); e == EditorSelectivity {
		return e
	}
	return EditorLegacy
}

// SamplingRatioFormat returns the configured format, defaulting to percent.
func (p Program) SamplingRatioFormat() SamplingRatioFormat {
	if f := SamplingRatioFormat(p.Property(PropertySamplingRatioFormat)); f.Valid() {
		return f
	}
	return SamplingRatioPercent
}

// TaxonGroupsNoWeight lists taxon groups whose batches are counted, not weighed.
func (p Program) TaxonGroupsNoWeight() []string {
	return p.Strings(PropertyTaxonGroupsNoWeight)
}

// TaxonGroupsNoLanding lists taxon groups that may not legally be landed.
func (p Program) TaxonGroupsNoLanding() []string {
	return p.Strings(PropertyTaxonGroupsNoLanding)
}

// ContainsTaxonGroup reports whether label is listed (case insensitive).
func ContainsTaxonGroup(list []string, label string) bool {
	if label == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, label) {
			return true
		}
	}
	return false
}
