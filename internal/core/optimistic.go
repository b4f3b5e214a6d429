package core

import (
	"context"
	"fmt"
	"sort"

	"signalsai/pkg/domain"
)

// operationJournal holds, per in-flight operation id, the change list
// recorded by that operation's REQUESTED transaction. Commit discards the
// entry; rollback replays the changes inverted, in reverse order, so each
// operation restores exactly its own slice of state and concurrent
// operations never clobber each other.
type operationJournal struct {
	entries map[string][]Change
}

func newOperationJournal() *operationJournal {
	return &operationJournal{entries: make(map[string][]Change)}
}

func (j *operationJournal) begin(opID string, changes []Change) {
	j.entries[opID] = changes
}

func (j *operationJournal) commit(opID string) {
	delete(j.entries, opID)
}

func (j *operationJournal) take(opID string) ([]Change, bool) {
	changes, ok := j.entries[opID]
	if ok {
		delete(j.entries, opID)
	}
	return changes, ok
}

func (j *operationJournal) activeIDs() []string {
	out := make([]string, 0, len(j.entries))
	for id := range j.entries {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// runOptimistic executes the three-phase optimistic pattern: apply the
// mutation locally, fire the persistence call, then either commit the
// journal entry or roll the operation back and notify.
func (s *Service) runOptimistic(ctx context.Context, opID, failureMessage string, apply func(Transaction) error, persist func(context.Context) (degraded bool, err error)) (Outcome, error) {
	outcome := Outcome{OperationID: opID}

	var changes []Change
	result, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := apply(tx); err != nil {
			return err
		}
		changes = tx.Changes()
		return nil
	})
	if err != nil {
		return outcome, err
	}
	outcome.RuleResult = result
	s.journal.begin(opID, changes)

	if persist == nil {
		s.journal.commit(opID)
		return outcome, nil
	}

	gctx, cancel := s.gatewayContext(ctx)
	degraded, perr := persist(gctx)
	cancel()
	if perr != nil {
		outcome.RolledBack = true
		if rbErr := s.rollbackOperation(ctx, opID); rbErr != nil {
			return outcome, fmt.Errorf("rollback after persistence failure: %w", rbErr)
		}
		s.notifier.Notify(failureMessage)
		s.logger.Warn("optimistic operation rolled back", "operation", opID, "error", perr)
		return outcome, nil
	}
	outcome.Degraded = degraded
	s.journal.commit(opID)
	return outcome, nil
}

// rollbackOperation restores the slice of state touched by one operation by
// applying its recorded changes inverted, most recent first.
func (s *Service) rollbackOperation(ctx context.Context, opID string) error {
	changes, ok := s.journal.take(opID)
	if !ok {
		return nil
	}
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		for i := len(changes) - 1; i >= 0; i-- {
			if err := revertChange(tx, changes[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

//nolint:gocyclo // one inversion arm per entity/action pair keeps the mapping explicit.
func revertChange(tx Transaction, c Change) error {
	switch c.Action {
	case domain.ActionCreate:
		switch c.Entity {
		case domain.EntityAccount:
			return fmt.Errorf("account creation is not optimistic")
		case domain.EntitySignal:
			return tx.DeleteSignal(c.After.(Signal).ID)
		case domain.EntityRecommendedAction:
			return tx.DeleteRecommendedAction(c.After.(RecommendedAction).ID)
		case domain.EntityInteraction:
			return tx.DeleteInteraction(c.After.(Interaction).ID)
		case domain.EntityComment:
			return tx.DeleteComment(c.After.(Comment).ID)
		case domain.EntityActionPlan:
			return tx.DeleteActionPlan(c.After.(ActionPlan).ID)
		case domain.EntityNote:
			return tx.DeleteNote(c.After.(Note).ID)
		}
	case domain.ActionUpdate:
		switch c.Entity {
		case domain.EntityAccount:
			before := c.Before.(Account)
			_, err := tx.UpdateAccount(before.ID, func(a *Account) error { *a = before; return nil })
			return err
		case domain.EntitySignal:
			before := c.Before.(Signal)
			_, err := tx.UpdateSignal(before.ID, func(sig *Signal) error { *sig = before; return nil })
			return err
		case domain.EntityRecommendedAction:
			before := c.Before.(RecommendedAction)
			_, err := tx.UpdateRecommendedAction(before.ID, func(a *RecommendedAction) error { *a = before; return nil })
			return err
		case domain.EntityComment:
			before := c.Before.(Comment)
			_, err := tx.UpdateComment(before.ID, func(cm *Comment) error { *cm = before; return nil })
			return err
		case domain.EntityActionPlan:
			before := c.Before.(ActionPlan)
			_, err := tx.UpdateActionPlan(before.ID, func(p *ActionPlan) error { *p = before; return nil })
			return err
		case domain.EntityNote:
			before := c.Before.(Note)
			_, err := tx.UpdateNote(before.ID, func(n *Note) error { *n = before; return nil })
			return err
		}
	case domain.ActionDelete:
		switch c.Entity {
		case domain.EntitySignal:
			_, err := tx.CreateSignal(c.Before.(Signal))
			return err
		case domain.EntityRecommendedAction:
			_, err := tx.CreateRecommendedAction(c.Before.(RecommendedAction))
			return err
		case domain.EntityInteraction:
			_, err := tx.CreateInteraction(c.Before.(Interaction))
			return err
		case domain.EntityComment:
			_, err := tx.CreateComment(c.Before.(Comment))
			return err
		case domain.EntityActionPlan:
			_, err := tx.CreateActionPlan(c.Before.(ActionPlan))
			return err
		case domain.EntityNote:
			_, err := tx.CreateNote(c.Before.(Note))
			return err
		}
	}
	return fmt.Errorf("cannot revert %s %s", c.Action, c.Entity)
}

// mergeServerID swaps a locally generated entity id for the canonical id the
// gateway assigned, carrying every index along. No-op when they already match.
func mergeServerID(tx Transaction, entity domain.EntityType, localID, serverID string) error {
	if serverID == "" || serverID == localID {
		return nil
	}
	switch entity {
	case domain.EntityComment:
		current, ok := tx.FindComment(localID)
		if !ok {
			return ErrNotFound{Entity: entity, ID: localID}
		}
		if err := tx.DeleteComment(localID); err != nil {
			return err
		}
		current.ID = serverID
		_, err := tx.CreateComment(current)
		return err
	case domain.EntityActionPlan:
		current, ok := tx.FindActionPlan(localID)
		if !ok {
			return ErrNotFound{Entity: entity, ID: localID}
		}
		if err := tx.DeleteActionPlan(localID); err != nil {
			return err
		}
		current.ID = serverID
		_, err := tx.CreateActionPlan(current)
		return err
	default:
		return fmt.Errorf("id merge unsupported for %s", entity)
	}
}
