package core

import (
	"context"
	"fmt"

	"signalsai/pkg/domain"
)

// PlanUniquenessRule blocks a commit that would leave more than one plan for
// the same (account, recommended action) pair.
type PlanUniquenessRule struct{}

// Name implements domain.Rule.
func (PlanUniquenessRule) Name() string { return "plan_uniqueness" }

// Evaluate implements domain.Rule.
func (PlanUniquenessRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityActionPlan || change.Action == domain.ActionDelete {
			continue
		}
		plan := change.After.(domain.ActionPlan)
		if plan.ActionID == nil {
			continue
		}
		count := 0
		for _, id := range view.PlanIDsByAction(*plan.ActionID) {
			other, ok := view.FindActionPlan(id)
			if ok && other.AccountID == plan.AccountID {
				count++
			}
		}
		if count > 1 {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "plan_uniqueness",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("multiple plans for action %q on account %q", *plan.ActionID, plan.AccountID),
				Entity:   domain.EntityActionPlan,
				EntityID: plan.ID,
			})
		}
	}
	return result, nil
}
