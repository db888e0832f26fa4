package core

import (
	"sort"
	"strconv"
	"strings"

	"catchcore/pkg/domain"
)

var errorMessages = map[string]string{
	domain.ErrorRequired:         "required",
	domain.ErrorMin:              "value too low",
	domain.ErrorMax:              "value too high",
	domain.ErrorNumeric:          "not a number",
	domain.ErrorInteger:          "not an integer",
	domain.ErrorMaxDecimals:      "too many decimals",
	domain.ErrorQualitativeValue: "unknown value",
	domain.ErrorSamplingRatio:    "inconsistent with sample and total weights",
}

func errorMessage(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return code
}

// pathTranslator renders a control path relative to a batch into a label.
type pathTranslator struct {
	pmfms  []domain.PmfmSpec
	qv     *domain.PmfmSpec
	group  *domain.Batch
	prefix string
	catch  bool
}

func (t pathTranslator) translate(path string) string {
	parts := strings.Split(path, ".")
	last := parts[len(parts)-1]
	if len(parts) >= 2 && parts[len(parts)-2] == "measurementValues" {
		if id, err := strconv.Atoi(last); err == nil {
			for _, p := range t.pmfms {
				if p.ID == id {
					return t.qualify(path, p.DisplayName())
				}
			}
			if t.qv != nil && t.qv.ID == id {
				return t.qualify(path, t.qv.DisplayName())
			}
		}
		return t.qualify(path, path)
	}

	var field string
	switch {
	case strings.HasSuffix(path, "weight.value"):
		field = "weight"
	case last == "individualCount":
		field = "individual count"
	case last == "samplingRatio":
		return t.qualify(path, "Sampling ratio")
	default:
		return t.qualify(path, path)
	}
	if t.catch {
		return "Catch " + field
	}
	depth := strings.Count(path, "children.")
	sampling := depth == 1
	if t.qv != nil {
		sampling = depth == 2
	}
	if sampling {
		return t.qualify(path, "Sampling "+field)
	}
	return t.qualify(path, "Total "+field)
}

// qualify prefixes label with the taxon group and, below a qualitative value
// child, with the qualitative value name.
func (t pathTranslator) qualify(path, label string) string {
	var parts []string
	if t.prefix != "" {
		parts = append(parts, t.prefix)
	}
	if t.qv != nil && t.group != nil && strings.HasPrefix(path, "children.") {
		if idx, err := strconv.Atoi(strings.SplitN(strings.TrimPrefix(path, "children."), ".", 2)[0]); err == nil && idx < len(t.group.Children) {
			if id, ok := t.group.Children[idx].MeasurementValues.Int(t.qv.ID); ok {
				if qv, ok := t.qv.QualitativeValue(id); ok {
					name := qv.Name
					if name == "" {
						name = qv.Label
					}
					parts = append(parts, name)
				}
			}
		}
	}
	parts = append(parts, label)
	return strings.Join(parts, " > ")
}

// translateErrors renders errs as "<label>: <message>" lines sorted by path.
func translateErrors(errs domain.ErrorMap, t pathTranslator, separator string) string {
	if len(errs) == 0 {
		return ""
	}
	paths := make([]string, 0, len(errs))
	for p := range errs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		lines = append(lines, t.translate(p)+": "+errorMessage(errs[p]))
	}
	return strings.Join(lines, separator)
}
