// Package program loads data collection program configuration from YAML and
// serves it to the controller as domain.Program values and pmfm specs.
package program

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"catchcore/pkg/domain"
)

// ErrUnknownProgram is returned when a program label is not configured.
var ErrUnknownProgram = errors.New("program: unknown program")

// Method is a weight method written by name in YAML.
type Method domain.WeightMethod

// UnmarshalYAML accepts a method name (CALCULATED) or its numeric id.
func (m *Method) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if id, err := strconv.Atoi(s); err == nil {
		candidate := domain.WeightMethod(id)
		if _, perr := domain.ParseWeightMethod(candidate.String()); perr != nil {
			return fmt.Errorf("invalid value for method: %q", s)
		}
		*m = Method(candidate)
		return nil
	}
	parsed, err := domain.ParseWeightMethod(s)
	if err != nil {
		return fmt.Errorf("invalid value for method: %q", s)
	}
	*m = Method(parsed)
	return nil
}

// Editor is the operation editor written in YAML.
type Editor domain.Editor

// UnmarshalYAML validates the editor name.
func (e *Editor) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch candidate := domain.Editor(strings.ToLower(strings.TrimSpace(s))); candidate {
	case domain.EditorLegacy, domain.EditorSelectivity:
		*e = Editor(candidate)
		return nil
	default:
		return fmt.Errorf("invalid value for editor: %q", s)
	}
}

// RatioFormat is the sampling ratio format written in YAML.
type RatioFormat domain.SamplingRatioFormat

// UnmarshalYAML validates the sampling ratio format.
func (f *RatioFormat) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	candidate := domain.SamplingRatioFormat(strings.TrimSpace(s))
	if !candidate.Valid() {
		return fmt.Errorf("invalid value for samplingRatioFormat: %q", s)
	}
	*f = RatioFormat(candidate)
	return nil
}

// PmfmType is the pmfm value type written in YAML.
type PmfmType domain.PmfmType

// UnmarshalYAML validates the pmfm type. "qualitative" is accepted for
// qualitative_value.
func (t *PmfmType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	candidate := domain.PmfmType(strings.ToLower(strings.TrimSpace(s)))
	if candidate == "qualitative" {
		candidate = domain.PmfmTypeQualitative
	}
	if !candidate.Valid() {
		return fmt.Errorf("invalid value for pmfm type: %q", s)
	}
	*t = PmfmType(candidate)
	return nil
}

// File is the root of a program configuration document.
type File struct {
	Programs []Config `yaml:"programs" validate:"required,min=1,dive"`
}

// Config is the configuration of one program.
type Config struct {
	Label                string                                  `yaml:"label" validate:"required"`
	Editor               Editor                                  `yaml:"editor"`
	SamplingRatioFormat  RatioFormat                             `yaml:"samplingRatioFormat"`
	TaxonGroupsNoWeight  []string                                `yaml:"taxonGroupsNoWeight"`
	TaxonGroupsNoLanding []string                                `yaml:"taxonGroupsNoLanding"`
	AllowSamplingBatches *bool                                   `yaml:"allowSamplingBatches"`
	SampleWeightRequired *bool                                   `yaml:"sampleWeightRequired"`
	AllowChildrenGears   bool                                    `yaml:"allowChildrenGears"`
	Properties           map[string]string                       `yaml:"properties"`
	WeightSpecs          []WeightSpecConfig                      `yaml:"weightSpecs" validate:"dive"`
	Pmfms                map[domain.AcquisitionLevel][]PmfmConfig `yaml:"pmfms" validate:"dive,dive"`
	Gears                []GearConfig                            `yaml:"gears" validate:"dive"`
}

// WeightSpecConfig declares one weight pmfm.
type WeightSpecConfig struct {
	PmfmID                int    `yaml:"pmfmId" validate:"required,gt=0"`
	Method                Method `yaml:"method" validate:"required"`
	Computed              bool   `yaml:"computed"`
	MaximumNumberDecimals *int   `yaml:"maximumNumberDecimals" validate:"omitempty,gte=0,lte=9"`
}

// PmfmConfig declares one pmfm of an acquisition level.
type PmfmConfig struct {
	ID                    int                       `yaml:"id" validate:"required,gt=0"`
	Label                 string                    `yaml:"label"`
	Name                  string                    `yaml:"name"`
	Type                  PmfmType                  `yaml:"type" validate:"required"`
	Method                Method                    `yaml:"method"`
	Weight                bool                      `yaml:"weight"`
	Computed              bool                      `yaml:"computed"`
	Required              bool                      `yaml:"required"`
	Hidden                bool                      `yaml:"hidden"`
	MinValue              *float64                  `yaml:"minValue"`
	MaxValue              *float64                  `yaml:"maxValue"`
	MaximumNumberDecimals *int                      `yaml:"maximumNumberDecimals" validate:"omitempty,gte=0,lte=9"`
	QualitativeValues     []domain.QualitativeValue `yaml:"qualitativeValues"`
}

// GearConfig overrides pmfms for operations made with one gear.
type GearConfig struct {
	GearID      int                                     `yaml:"gearId" validate:"required,gt=0"`
	WeightSpecs []WeightSpecConfig                      `yaml:"weightSpecs" validate:"dive"`
	Pmfms       map[domain.AcquisitionLevel][]PmfmConfig `yaml:"pmfms" validate:"dive,dive"`
}

var configValidate = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validatePmfmBounds, PmfmConfig{})
	v.RegisterStructValidation(validateLevels, Config{})
	return v
}

func validatePmfmBounds(sl validator.StructLevel) {
	p := sl.Current().Interface().(PmfmConfig)
	if p.MinValue != nil && p.MaxValue != nil && *p.MinValue > *p.MaxValue {
		sl.ReportError(p.MaxValue, "MaxValue", "maxValue", "gtefield", "MinValue")
	}
	if p.Weight && p.Method == 0 {
		sl.ReportError(p.Method, "Method", "method", "required_if", "weight")
	}
}

func validateLevels(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)
	check := func(levels map[domain.AcquisitionLevel][]PmfmConfig) {
		for level := range levels {
			switch level {
			case domain.AcquisitionCatchBatch, domain.AcquisitionSortingBatch, domain.AcquisitionIndividualBatch:
			default:
				sl.ReportError(levels, "Pmfms", "pmfms", "acquisitionlevel", string(level))
			}
		}
	}
	check(c.Pmfms)
	for _, g := range c.Gears {
		check(g.Pmfms)
	}
}

// Parse decodes and validates a program configuration document.
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode program config: %w", err)
	}
	if err := configValidate.Struct(file); err != nil {
		return nil, fmt.Errorf("validate program config: %w", err)
	}
	seen := make(map[string]struct{}, len(file.Programs))
	for _, p := range file.Programs {
		if _, dup := seen[p.Label]; dup {
			return nil, fmt.Errorf("validate program config: duplicate program %s", p.Label)
		}
		seen[p.Label] = struct{}{}
	}
	return &file, nil
}

// Load reads and parses a program configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program config: %w", err)
	}
	return Parse(data)
}

// Program converts the configuration into the property bag consumed by the
// engine. Explicit fields override raw properties.
func (c Config) Program() domain.Program {
	props := make(map[string]string, len(c.Properties)+6)
	for k, v := range c.Properties {
		props[k] = v
	}
	if c.Editor != "" {
		props[domain.PropertyOperationEditor] = string(c.Editor)
	}
	if c.SamplingRatioFormat != "" {
		props[domain.PropertySamplingRatioFormat] = string(c.SamplingRatioFormat)
	}
	if len(c.TaxonGroupsNoWeight) > 0 {
		props[domain.PropertyTaxonGroupsNoWeight] = strings.Join(c.TaxonGroupsNoWeight, ",")
	}
	if len(c.TaxonGroupsNoLanding) > 0 {
		props[domain.PropertyTaxonGroupsNoLanding] = strings.Join(c.TaxonGroupsNoLanding, ",")
	}
	if c.AllowSamplingBatches != nil {
		props[domain.PropertyAllowSamplingBatches] = strconv.FormatBool(*c.AllowSamplingBatches)
	}
	if c.SampleWeightRequired != nil {
		props[domain.PropertySampleWeightRequired] = strconv.FormatBool(*c.SampleWeightRequired)
	}
	if c.AllowChildrenGears {
		props[domain.PropertyAllowChildrenGears] = "true"
	}
	return domain.Program{Label: c.Label, Properties: props}
}

func (w WeightSpecConfig) spec() domain.WeightSpec {
	decimals := domain.DefaultMaximumNumberDecimals
	if w.MaximumNumberDecimals != nil {
		decimals = *w.MaximumNumberDecimals
	}
	method := domain.WeightMethod(w.Method)
	return domain.WeightSpec{
		PmfmID:                w.PmfmID,
		MethodID:              method,
		IsComputed:            w.Computed || method == domain.MethodCalculated,
		MaximumNumberDecimals: decimals,
	}
}

func (p PmfmConfig) spec() domain.PmfmSpec {
	return domain.PmfmSpec{
		ID:                    p.ID,
		Label:                 p.Label,
		Name:                  p.Name,
		Type:                  domain.PmfmType(p.Type),
		MethodID:              domain.WeightMethod(p.Method),
		IsWeight:              p.Weight,
		IsComputed:            p.Computed,
		Required:              p.Required,
		Hidden:                p.Hidden,
		MinValue:              p.MinValue,
		MaxValue:              p.MaxValue,
		MaximumNumberDecimals: p.MaximumNumberDecimals,
		QualitativeValues:     append([]domain.QualitativeValue(nil), p.QualitativeValues...),
	}
}
