package batchtree

import (
	"fmt"
	"strconv"
	"strings"

	"catchcore/pkg/domain"
)

// ZeroSamplingRatioText is stored when a required total weight is zero. It
// reads as computed under both textual formats.
const ZeroSamplingRatioText = "0/1"

// IsSamplingRatioComputed reports whether a ratio text was derived from
// weights rather than entered by an operator.
//
// Under the percent format a bare "NN%" is operator input and any text holding
// a "/" is derived. Under the 1/w format operator input starts with "1/".
func IsSamplingRatioComputed(text string, format domain.SamplingRatioFormat) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if format == domain.SamplingRatioFraction {
		return !strings.HasPrefix(text, "1/")
	}
	return !(strings.HasSuffix(text, "%") && !strings.Contains(text, "/"))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ComputedSamplingRatioText renders the "<sample>/<total>" text of a derived
// ratio. Under the 1/w format a unit sample weight is written "1.0" so the text
// is never mistaken for operator input.
func ComputedSamplingRatioText(sample, total float64, format domain.SamplingRatioFormat) string {
	s := formatNumber(sample)
	if format == domain.SamplingRatioFraction && s == "1" {
		s = strconv.FormatFloat(sample, 'f', 1, 64)
	}
	return s + "/" + formatNumber(total)
}

// FormatSamplingRatio renders an operator ratio in the given format: "25%" or
// "1/4". A ratio that cannot be expressed yields an empty string.
func FormatSamplingRatio(ratio float64, format domain.SamplingRatioFormat) string {
	if format == domain.SamplingRatioFraction {
		if ratio <= 0 {
			return ""
		}
		return "1/" + formatNumber(RoundHalfUp(1/ratio, 2))
	}
	return formatNumber(RoundHalfUp(ratio*100, 2)) + "%"
}

// ParseSamplingRatio parses "25%", "1/4", "2.5/10" or a plain fraction and
// reports whether the text denotes a derived ratio.
func ParseSamplingRatio(text string, format domain.SamplingRatioFormat) (float64, bool, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return 0, false, fmt.Errorf("empty sampling ratio")
	}
	var ratio float64
	switch {
	case strings.Contains(raw, "/"):
		parts := strings.SplitN(raw, "/", 2)
		num, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return 0, false, fmt.Errorf("sampling ratio %q: %w", text, err)
		}
		den, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return 0, false, fmt.Errorf("sampling ratio %q: %w", text, err)
		}
		if den == 0 {
			if num != 0 {
				return 0, false, fmt.Errorf("sampling ratio %q: zero denominator", text)
			}
		} else {
			ratio = num / den
		}
	case strings.HasSuffix(raw, "%"):
		pct, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(raw, "%")), 64)
		if err != nil {
			return 0, false, fmt.Errorf("sampling ratio %q: %w", text, err)
		}
		ratio = pct / 100
	default:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false, fmt.Errorf("sampling ratio %q: %w", text, err)
		}
		ratio = v
	}
	if ratio < 0 || ratio > 1 {
		return 0, false, fmt.Errorf("sampling ratio %q out of range [0,1]", text)
	}
	return ratio, IsSamplingRatioComputed(raw, format), nil
}

// SamplingOptions drives the reconciliation of a batch with its sampling child.
type SamplingOptions struct {
	WeightSpecs    []domain.WeightSpec
	WeightRequired bool
	Format         domain.SamplingRatioFormat
}

// ReconcileSampling keeps the sampling ratio of node's sampling child in sync
// with the total and sample weights:
//
//   - a required total weight of zero forces a zero sample weight and the
//     "0/1" ratio;
//   - an unset (or derived) ratio is derived from the two weights;
//   - an operator ratio without sample weight derives the sample weight.
//
// Nodes without a sampling child are left untouched.
func ReconcileSampling(node *domain.Batch, opts SamplingOptions) {
	sampling := GetSamplingChild(node)
	if sampling == nil {
		return
	}
	specs := specsOrDefault(opts.WeightSpecs)
	total := GetWeight(node, specs)
	sample := GetWeight(sampling, specs)
	if total != nil {
		node.Weight = total
	}
	if sample != nil {
		sampling.Weight = sample
	}

	switch {
	case total != nil && total.Value == 0 && opts.WeightRequired && (sample == nil || sample.Computed):
		setComputedWeight(sampling, 0, outputSpec(specs, false), specs)
		sampling.SetSamplingRatio(0, ZeroSamplingRatioText, true)

	case sampling.SamplingRatio == nil || sampling.SamplingRatioComputed:
		if total == nil || sample == nil || sample.Value > total.Value {
			if sampling.SamplingRatioComputed {
				sampling.ClearSamplingRatio()
			}
			return
		}
		ratio := 0.0
		if total.Value != 0 && sample.Value != 0 {
			ratio = sample.Value / total.Value
		}
		sampling.SetSamplingRatio(ratio, ComputedSamplingRatioText(sample.Value, total.Value, opts.Format), true)

	case sample == nil && total != nil:
		spec := outputSpec(specs, isWeightLength(total.MethodID))
		value := RoundHalfUp(total.Value * *sampling.SamplingRatio, spec.Decimals())
		setComputedWeight(sampling, value, spec, specs)
		if sampling.SamplingRatioText == "" {
			sampling.SamplingRatioText = FormatSamplingRatio(*sampling.SamplingRatio, opts.Format)
		}

	case sampling.SamplingRatioText == "":
		sampling.SamplingRatioText = FormatSamplingRatio(*sampling.SamplingRatio, opts.Format)
	}
}
