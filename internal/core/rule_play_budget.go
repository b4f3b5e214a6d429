package core

import (
	"context"
	"fmt"

	"signalsai/pkg/domain"
)

// PlayBudgetRule blocks plans that carry more plays than the budget allows.
type PlayBudgetRule struct{}

// Name implements domain.Rule.
func (PlayBudgetRule) Name() string { return "play_budget" }

// Evaluate implements domain.Rule.
func (PlayBudgetRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityActionPlan || change.Action == domain.ActionDelete {
			continue
		}
		plan := change.After.(domain.ActionPlan)
		if len(plan.Plays) > domain.MaxPlaysPerPlan {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "play_budget",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("plan carries %d plays, budget is %d", len(plan.Plays), domain.MaxPlaysPerPlan),
				Entity:   domain.EntityActionPlan,
				EntityID: plan.ID,
			})
		}
	}
	return result, nil
}
