// Package validation builds field-level validation forms for catch batches.
//
// Field rules are expressed as go-playground/validator tags generated from the
// pmfm specs of the acquisition level (required, numeric bounds, maximum number
// of decimals, allowed qualitative values) and checked with Validate.Var.
// Asynchronous validators run in the background; the returned form stays
// pending until they complete.
package validation

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"catchcore/pkg/batchtree"
	"catchcore/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.FormBuilder = (*Builder)(nil)

// AsyncValidator contributes errors that need I/O, e.g. a referential lookup.
type AsyncValidator interface {
	Name() string
	Validate(ctx context.Context, batch *domain.Batch, pmfms []domain.PmfmSpec) (domain.ErrorMap, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithAsyncValidator registers a background validator run on every form.
func WithAsyncValidator(v AsyncValidator) Option {
	return func(b *Builder) {
		if v != nil {
			b.async = append(b.async, v)
		}
	}
}

// Builder is the default domain.FormBuilder.
type Builder struct {
	validate *validator.Validate
	async    []AsyncValidator
}

// NewBuilder constructs a form builder.
func NewBuilder(opts ...Option) *Builder {
	v := validator.New()
	_ = v.RegisterValidation("maxdecimals", validateMaxDecimals)
	b := &Builder{validate: v}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// validateMaxDecimals checks that a decimal string or float has at most the
// number of fraction digits given as parameter.
func validateMaxDecimals(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	var text string
	switch fl.Field().Kind() {
	case reflect.String:
		text = fl.Field().String()
	case reflect.Float32, reflect.Float64:
		text = strconv.FormatFloat(fl.Field().Float(), 'f', -1, 64)
	default:
		return true
	}
	return countDecimals(text) <= limit
}

func countDecimals(text string) int {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "eE"); i >= 0 {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			text = strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	dot := strings.IndexByte(text, '.')
	if dot < 0 {
		return 0
	}
	return len(strings.TrimRight(text[dot+1:], "0"))
}

// BuildForm validates batch against pmfms and opts. The synchronous checks are
// complete when BuildForm returns; asynchronous validators may still be running.
func (b *Builder) BuildForm(ctx context.Context, batch *domain.Batch, pmfms []domain.PmfmSpec, opts domain.FormOptions) (domain.Form, error) {
	if batch == nil {
		return nil, domain.ErrMissingTree
	}
	errs := domain.ErrorMap{}
	b.checkBatch(batch, "", pmfms, opts, errs)
	if opts.WithChildren {
		b.checkDescendants(batch, "", pmfms, opts, errs)
	}
	form := newForm(errs)
	if len(b.async) == 0 {
		form.finish(nil, nil)
		return form, nil
	}
	go b.runAsync(ctx, form, batch.Clone(), pmfms)
	return form, nil
}

func (b *Builder) runAsync(ctx context.Context, form *Form, batch *domain.Batch, pmfms []domain.PmfmSpec) {
	var (
		merged domain.ErrorMap
		err    error
	)
	for _, v := range b.async {
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
		res, verr := v.Validate(ctx, batch, pmfms)
		if verr != nil {
			err = fmt.Errorf("async validator %s: %w", v.Name(), verr)
			break
		}
		merged = domain.MergeErrorMaps(merged, res)
	}
	form.finish(merged, err)
}

func (b *Builder) checkDescendants(node *domain.Batch, prefix string, pmfms []domain.PmfmSpec, opts domain.FormOptions, errs domain.ErrorMap) {
	child := opts
	child.WithChildren = false
	child.EnableSamplingBatch = false
	for i, c := range node.Children {
		if !c.IsSorting() {
			continue
		}
		path := domain.JoinPath(prefix, "children", strconv.Itoa(i))
		b.checkBatch(c, path, pmfms, child, errs)
		b.checkDescendants(c, path, pmfms, opts, errs)
	}
}

func (b *Builder) checkBatch(batch *domain.Batch, prefix string, pmfms []domain.PmfmSpec, opts domain.FormOptions, errs domain.ErrorMap) {
	for _, pmfm := range pmfms {
		if pmfm.Hidden || pmfm.IsWeight {
			continue
		}
		path := domain.JoinPath(prefix, "measurementValues", strconv.Itoa(pmfm.ID))
		if code := b.checkMeasurement(batch.MeasurementValues[pmfm.ID], pmfm); code != "" {
			errs[path] = code
		}
	}
	if opts.QvPmfm != nil && batch.IsSorting() && batch.MeasurementValues.Has(opts.QvPmfm.ID) {
		path := domain.JoinPath(prefix, "measurementValues", strconv.Itoa(opts.QvPmfm.ID))
		if code := b.checkQualitative(batch.MeasurementValues[opts.QvPmfm.ID], *opts.QvPmfm); code != "" {
			errs[path] = code
		}
	}

	specs := opts.WeightSpecs
	weight := batchtree.GetWeight(batch, specs)
	weightPath := domain.JoinPath(prefix, "weight", "value")
	switch {
	case weight == nil && opts.WeightRequired:
		errs[weightPath] = domain.ErrorRequired
	case weight != nil:
		if code := b.checkWeightValue(weight, specs); code != "" {
			errs[weightPath] = code
		}
	}

	countPath := domain.JoinPath(prefix, "individualCount")
	switch {
	case batch.IndividualCount == nil && opts.IndividualCountRequired:
		errs[countPath] = domain.ErrorRequired
	case batch.IndividualCount != nil:
		if err := b.validate.Var(*batch.IndividualCount, "gte=0"); err != nil {
			errs[countPath] = domain.ErrorMin
		}
	}

	if opts.EnableSamplingBatch {
		b.checkSampling(batch, weight, prefix, opts, errs)
	}
}

func (b *Builder) checkSampling(batch *domain.Batch, total *domain.BatchWeight, prefix string, opts domain.FormOptions, errs domain.ErrorMap) {
	index := -1
	for i, c := range batch.Children {
		if c.IsSampling() {
			index = i
			break
		}
	}
	if index < 0 {
		return
	}
	sampling := batch.Children[index]
	samplingPrefix := domain.JoinPath(prefix, "children", strconv.Itoa(index))
	sample := batchtree.GetWeight(sampling, opts.WeightSpecs)
	samplePath := domain.JoinPath(samplingPrefix, "weight", "value")

	switch {
	case sample == nil:
		if opts.SampleWeightRequired && batchtree.SumObservedIndividualCount(sampling) > 0 {
			errs[samplePath] = domain.ErrorRequired
		}
	case total != nil:
		if err := b.validate.Var(sample.Value, "lte="+formatParam(total.Value)); err != nil {
			errs[samplePath] = domain.ErrorMax
		} else if code := b.checkWeightValue(sample, opts.WeightSpecs); code != "" {
			errs[samplePath] = code
		}
	default:
		if code := b.checkWeightValue(sample, opts.WeightSpecs); code != "" {
			errs[samplePath] = code
		}
	}

	if sampling.SamplingRatio != nil && !sampling.SamplingRatioComputed {
		ratioPath := domain.JoinPath(samplingPrefix, "samplingRatio")
		r := *sampling.SamplingRatio
		if err := b.validate.Var(r, "gt=0"); err != nil {
			errs[ratioPath] = domain.ErrorMin
		} else if err := b.validate.Var(r, "lte=1"); err != nil {
			errs[ratioPath] = domain.ErrorMax
		}
	}
}

func (b *Builder) checkWeightValue(w *domain.BatchWeight, specs []domain.WeightSpec) string {
	if err := b.validate.Var(w.Value, "gte=0"); err != nil {
		return domain.ErrorMin
	}
	decimals := domain.DefaultMaximumNumberDecimals
	if spec, ok := domain.FindWeightSpec(specsOrDefault(specs), w.MethodID); ok {
		decimals = spec.Decimals()
	}
	if err := b.validate.Var(w.Value, "maxdecimals="+strconv.Itoa(decimals)); err != nil {
		return domain.ErrorMaxDecimals
	}
	return ""
}

// checkMeasurement validates one measurement value and returns the error code
// of the first failing rule.
func (b *Builder) checkMeasurement(value string, pmfm domain.PmfmSpec) string {
	value = strings.TrimSpace(value)
	if value == "" {
		if pmfm.Required {
			return domain.ErrorRequired
		}
		return ""
	}
	switch pmfm.Type {
	case domain.PmfmTypeQualitative:
		return b.checkQualitative(value, pmfm)
	case domain.PmfmTypeInteger:
		if err := b.validate.Var(value, "numeric"); err != nil {
			return domain.ErrorNumeric
		}
		if err := b.validate.Var(value, "maxdecimals=0"); err != nil {
			return domain.ErrorInteger
		}
	case domain.PmfmTypeDouble:
		if err := b.validate.Var(value, "numeric"); err != nil {
			return domain.ErrorNumeric
		}
		decimals := domain.DefaultMaximumNumberDecimals
		if pmfm.MaximumNumberDecimals != nil {
			decimals = *pmfm.MaximumNumberDecimals
		}
		if err := b.validate.Var(value, "maxdecimals="+strconv.Itoa(decimals)); err != nil {
			return domain.ErrorMaxDecimals
		}
	default:
		return ""
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return domain.ErrorNumeric
	}
	if pmfm.MinValue != nil {
		if err := b.validate.Var(f, "gte="+formatParam(*pmfm.MinValue)); err != nil {
			return domain.ErrorMin
		}
	}
	if pmfm.MaxValue != nil {
		if err := b.validate.Var(f, "lte="+formatParam(*pmfm.MaxValue)); err != nil {
			return domain.ErrorMax
		}
	}
	return ""
}

func (b *Builder) checkQualitative(value string, pmfm domain.PmfmSpec) string {
	if len(pmfm.QualitativeValues) == 0 {
		return ""
	}
	allowed := make([]string, 0, len(pmfm.QualitativeValues))
	for _, qv := range pmfm.QualitativeValues {
		allowed = append(allowed, strconv.Itoa(qv.ID))
	}
	if err := b.validate.Var(strings.TrimSpace(value), "oneof="+strings.Join(allowed, " ")); err != nil {
		return domain.ErrorQualitativeValue
	}
	return ""
}

func formatParam(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func specsOrDefault(specs []domain.WeightSpec) []domain.WeightSpec {
	if len(specs) == 0 {
		return domain.DefaultWeightSpecs()
	}
	return specs
}
