package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel precondition errors.
var (
	// ErrMissingProgram is returned when a control pass has no program.
	ErrMissingProgram = errors.New("catchcore: missing program")
	// ErrMissingPhysicalGear is returned when the selectivity editor runs without a physical gear.
	ErrMissingPhysicalGear = errors.New("catchcore: missing physical gear")
	// ErrMissingTree is returned when an operation receives a nil tree.
	ErrMissingTree = errors.New("catchcore: missing catch batch")
)

// Validation error codes stored in an ErrorMap.
const (
	ErrorRequired         = "required"
	ErrorMin              = "min"
	ErrorMax              = "max"
	ErrorNumeric          = "numeric"
	ErrorInteger          = "integer"
	ErrorMaxDecimals      = "maxDecimals"
	ErrorQualitativeValue = "qualitativeValue"
	ErrorSamplingRatio    = "samplingRatioInconsistent"
)

// InvalidOrIncompleteMessage is the qualification comment set on a catch batch
// whose sorting batches failed control.
const InvalidOrIncompleteMessage = "Invalid or incomplete fill"

// ErrorMap maps a control path (e.g. "children.0.weight.value") to an error code
// or message.
type ErrorMap map[string]string

// Merge copies entries of other into m (shallow union, other wins).
func (m ErrorMap) Merge(other ErrorMap) {
	for k, v := range other {
		m[k] = v
	}
}

// Prefixed returns a copy with every path prefixed.
func (m ErrorMap) Prefixed(prefix string) ErrorMap {
	if len(m) == 0 {
		return nil
	}
	out := make(ErrorMap, len(m))
	for k, v := range m {
		out[JoinPath(prefix, k)] = v
	}
	return out
}

// Paths returns the sorted paths of the map.
func (m ErrorMap) Paths() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether the map holds no entry.
func (m ErrorMap) Empty() bool { return len(m) == 0 }

// JoinPath joins control path segments with dots, skipping empty segments.
func JoinPath(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.Trim(p, "."); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}

// MergeErrorMaps shallow-merges maps and returns nil when the union is empty.
func MergeErrorMaps(maps ...ErrorMap) ErrorMap {
	var out ErrorMap
	for _, m := range maps {
		if len(m) == 0 {
			continue
		}
		if out == nil {
			out = ErrorMap{}
		}
		out.Merge(m)
	}
	return out
}

// ErrNotFound is returned when a stored tree does not exist.
type ErrNotFound struct {
	OperationID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("catch batch for operation %s not found", e.OperationID)
}
