package core

import "signalsai/pkg/domain"

// RegisterDefaultRules installs the standard rule set on an engine.
func RegisterDefaultRules(engine *domain.RulesEngine) {
	engine.Register(ReferenceIntegrityRule{})
	engine.Register(PlanUniquenessRule{})
	engine.Register(PlayBudgetRule{})
}
