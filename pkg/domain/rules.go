package domain

import "context"

// RuleView provides read-only access to one sorting group under control.
// Rules must not mutate the returned batch.
type RuleView interface {
	Group() *Batch
	GroupIndex() int
	Program() Program
	WeightSpecs() []WeightSpec
	Pmfms() []PmfmSpec
	QvPmfm() (PmfmSpec, bool)
	IsTaxonGroupNoWeight() bool
	IsTaxonGroupNoLanding() bool
}

// Rule defines a cross-field evaluation executed on a sorting group once its
// field-level validation succeeded.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	if rule == nil {
		return
	}
	e.rules = append(e.rules, rule)
}

// Rules returns a copy of the registered rules.
func (e *RulesEngine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine whether a violation fails the group.
const (
	// SeverityBlock fails the group control.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but lets the group pass.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation describes a rule failure on a control path relative to the group.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Path     string
	Code     string
}

// Result aggregates rule violations.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if any violation blocks.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Errors returns the blocking violations as an error map keyed by path.
func (r Result) Errors() ErrorMap {
	var out ErrorMap
	for _, v := range r.Violations {
		if v.Severity != SeverityBlock {
			continue
		}
		if out == nil {
			out = ErrorMap{}
		}
		code := v.Code
		if code == "" {
			code = v.Message
		}
		out[v.Path] = code
	}
	return out
}
