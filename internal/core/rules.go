package core

import "catchcore/pkg/domain"

// NewRulesEngine constructs an empty group rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewSamplingConsistencyRule())
	return engine
}
