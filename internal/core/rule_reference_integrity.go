package core

import (
	"context"
	"fmt"

	"signalsai/pkg/domain"
)

// ReferenceIntegrityRule checks foreign keys on changed entities. Broken
// ownership references block the commit; comments and interactions orphaned
// by a removal are advisory, since the log deliberately outlives its targets.
type ReferenceIntegrityRule struct{}

// Name implements domain.Rule.
func (ReferenceIntegrityRule) Name() string { return "reference_integrity" }

// Evaluate implements domain.Rule.
func (ReferenceIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		switch change.Action {
		case domain.ActionCreate, domain.ActionUpdate:
			result.Merge(checkReferences(view, change))
		case domain.ActionDelete:
			result.Merge(checkOrphans(view, change))
		}
	}
	return result, nil
}

func checkReferences(view domain.RuleView, change domain.Change) domain.Result {
	var result domain.Result
	block := func(id, message string) {
		result.Violations = append(result.Violations, domain.Violation{
			Rule:     "reference_integrity",
			Severity: domain.SeverityBlock,
			Message:  message,
			Entity:   change.Entity,
			EntityID: id,
		})
	}
	switch change.Entity {
	case domain.EntitySignal:
		sig := change.After.(domain.Signal)
		if _, ok := view.FindAccount(sig.AccountID); !ok {
			block(sig.ID, fmt.Sprintf("signal references missing account %q", sig.AccountID))
		}
		if sig.ActionID != nil {
			if _, ok := view.FindRecommendedAction(*sig.ActionID); !ok {
				block(sig.ID, fmt.Sprintf("signal references missing action %q", *sig.ActionID))
			}
		}
	case domain.EntityRecommendedAction:
		act := change.After.(domain.RecommendedAction)
		if _, ok := view.FindAccount(act.AccountID); !ok {
			block(act.ID, fmt.Sprintf("recommended action references missing account %q", act.AccountID))
		}
	case domain.EntityActionPlan:
		plan := change.After.(domain.ActionPlan)
		if plan.AccountID != "" {
			if _, ok := view.FindAccount(plan.AccountID); !ok {
				block(plan.ID, fmt.Sprintf("action plan references missing account %q", plan.AccountID))
			}
		} else if plan.LookupKey == "" {
			block(plan.ID, "action plan has neither account nor lookup key")
		}
	case domain.EntityNote:
		note := change.After.(domain.Note)
		if _, ok := view.FindAccount(note.AccountID); !ok {
			block(note.ID, fmt.Sprintf("note references missing account %q", note.AccountID))
		}
	}
	return result
}

// checkOrphans warns about comments and interactions left pointing at a
// removed signal or action.
func checkOrphans(view domain.RuleView, change domain.Change) domain.Result {
	var result domain.Result
	var removedID string
	switch change.Entity {
	case domain.EntitySignal:
		removedID = change.Before.(domain.Signal).ID
	case domain.EntityRecommendedAction:
		removedID = change.Before.(domain.RecommendedAction).ID
	default:
		return result
	}
	warn := func(entity domain.EntityType, id string) {
		result.Violations = append(result.Violations, domain.Violation{
			Rule:     "reference_integrity",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("%s orphaned by removal of %s %q", entity, change.Entity, removedID),
			Entity:   entity,
			EntityID: id,
		})
	}
	for _, c := range view.ListComments() {
		if c.SignalID != nil && *c.SignalID == removedID {
			warn(domain.EntityComment, c.ID)
		}
	}
	for _, i := range view.ListInteractions() {
		if i.TargetID() == removedID {
			warn(domain.EntityInteraction, i.ID)
		}
	}
	return result
}
