package core

import "catchcore/pkg/domain"

type (
	Batch        = domain.Batch
	ErrorMap     = domain.ErrorMap
	Program      = domain.Program
	PmfmSpec     = domain.PmfmSpec
	WeightSpec   = domain.WeightSpec
	PhysicalGear = domain.PhysicalGear
	Rule         = domain.Rule
	RuleView     = domain.RuleView
	RulesEngine  = domain.RulesEngine
	Result       = domain.Result
	Violation    = domain.Violation
	Severity     = domain.Severity
	TreeStore    = domain.TreeStore
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)
