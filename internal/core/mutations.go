package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"signalsai/pkg/domain"
)

// loadDataset replaces the analytical working set in a single transaction.
// Accounts are upserted: the first load wins for descriptive fields, later
// loads refresh metrics. Signals and recommended actions not present in the
// batch are removed; user-generated entities are untouched apart from plan
// detachment performed by the store when an action disappears.
func (s *Service) loadDataset(ctx context.Context, a LoadDataset) (Outcome, error) {
	outcome := Outcome{}
	result, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, acct := range a.Accounts {
			incoming := acct
			if existing, ok := tx.FindAccount(incoming.ID); ok {
				if _, err := tx.UpdateAccount(existing.ID, func(dst *Account) error {
					mergeAccount(dst, incoming)
					return nil
				}); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.CreateAccount(incoming); err != nil {
				return err
			}
		}

		incomingActions := make(map[string]bool, len(a.Actions))
		for _, act := range a.Actions {
			incomingActions[act.ID] = true
		}
		incomingSignals := make(map[string]bool, len(a.Signals))
		for _, sig := range a.Signals {
			incomingSignals[sig.ID] = true
		}

		// Prune first so a replaced batch never collides with stale rows.
		for _, sig := range tx.Snapshot().ListSignals() {
			if !incomingSignals[sig.ID] {
				if err := tx.DeleteSignal(sig.ID); err != nil {
					return err
				}
			}
		}
		for _, act := range tx.Snapshot().ListRecommendedActions() {
			if !incomingActions[act.ID] {
				if err := tx.DeleteRecommendedAction(act.ID); err != nil {
					return err
				}
			}
		}

		// Actions before signals: signal action references must resolve.
		for _, act := range a.Actions {
			incoming := act
			if _, ok := tx.FindRecommendedAction(incoming.ID); ok {
				if _, err := tx.UpdateRecommendedAction(incoming.ID, func(dst *RecommendedAction) error {
					base := dst.Base
					*dst = incoming
					dst.Base = base
					return nil
				}); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.CreateRecommendedAction(incoming); err != nil {
				return err
			}
		}
		for _, sig := range a.Signals {
			incoming := sig
			if incoming.ActionID != nil {
				if _, ok := tx.FindRecommendedAction(*incoming.ActionID); !ok {
					incoming.ActionID = nil
				}
			}
			if _, ok := tx.FindSignal(incoming.ID); ok {
				if _, err := tx.UpdateSignal(incoming.ID, func(dst *Signal) error {
					base := dst.Base
					*dst = incoming
					dst.Base = base
					return nil
				}); err != nil {
					return err
				}
				continue
			}
			if _, err := tx.CreateSignal(incoming); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return outcome, err
	}
	outcome.RuleResult = result
	s.logger.Info("dataset loaded",
		"accounts", len(a.Accounts), "signals", len(a.Signals), "actions", len(a.Actions))
	return outcome, nil
}

// mergeAccount refreshes metric fields from a reloaded row while keeping the
// first-seen descriptive fields when the new row leaves them blank.
func mergeAccount(dst *Account, src Account) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Industry != "" {
		dst.Industry = src.Industry
	}
	if src.Health != "" {
		dst.Health = src.Health
	}
	if src.Owner != "" {
		dst.Owner = src.Owner
	}
	if src.AccountExec != "" {
		dst.AccountExec = src.AccountExec
	}
	if src.CSM != "" {
		dst.CSM = src.CSM
	}
	dst.GPAScore = src.GPAScore
	dst.LifetimeBill = src.LifetimeBill
	dst.ActiveUsers = src.ActiveUsers
	dst.DatasetCount = src.DatasetCount
	dst.RowCount = src.RowCount
	dst.RenewalBase = src.RenewalBase
	dst.RenewalFcst = src.RenewalFcst
	if src.NextRenewal != nil {
		dst.NextRenewal = src.NextRenewal
	}
	if src.NameCorrected {
		dst.NameCorrected = true
	}
}

func (s *Service) addComment(ctx context.Context, a AddComment) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	if (a.SignalID == "") == (a.AccountID == "") {
		return Outcome{OperationID: opID}, fmt.Errorf("comment must target exactly one of signal or account")
	}
	comment := Comment{
		Base:     domain.Base{ID: uuid.NewString()},
		AuthorID: s.userID,
		Author:   s.userName,
		Text:     a.Text,
	}
	if a.SignalID != "" {
		if _, ok := s.store.GetSignal(a.SignalID); !ok {
			return Outcome{OperationID: opID}, ErrNotFound{Entity: domain.EntitySignal, ID: a.SignalID}
		}
		comment.SignalID = &a.SignalID
	} else {
		if _, ok := s.store.GetAccount(a.AccountID); !ok {
			return Outcome{OperationID: opID}, ErrNotFound{Entity: domain.EntityAccount, ID: a.AccountID}
		}
		comment.AccountID = &a.AccountID
	}

	outcome, err := s.runOptimistic(ctx, opID, "Failed to save your comment. Please try again.",
		func(tx Transaction) error {
			created, err := tx.CreateComment(comment)
			if err != nil {
				return err
			}
			comment = created
			return nil
		},
		s.persistCreate(domain.EntityComment, CollectionComments, &comment.Base.ID, &comment),
	)
	if err != nil || outcome.RolledBack {
		return outcome, err
	}
	outcome.Entity = comment
	return outcome, nil
}

func (s *Service) editComment(ctx context.Context, a EditComment) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	var updated Comment
	outcome, err := s.runOptimistic(ctx, opID, "Failed to update your comment. Please try again.",
		func(tx Transaction) error {
			now := s.nowFn()
			result, err := tx.UpdateComment(a.CommentID, func(c *Comment) error {
				c.Text = a.Text
				c.Edited = true
				c.EditedAt = &now
				return nil
			})
			if err != nil {
				return err
			}
			updated = result
			return nil
		},
		func(ctx context.Context) (bool, error) {
			if s.gateway == nil {
				return false, nil
			}
			return s.gateway.UpdateDocument(ctx, CollectionComments, updated.ID, updated)
		},
	)
	if err != nil || outcome.RolledBack {
		return outcome, err
	}
	outcome.Entity = updated
	return outcome, nil
}

func (s *Service) removeComment(ctx context.Context, a RemoveComment) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	return s.runOptimistic(ctx, opID, "Failed to delete the comment. Please try again.",
		func(tx Transaction) error {
			return tx.DeleteComment(a.CommentID)
		},
		s.persistDelete(CollectionComments, a.CommentID),
	)
}

func (s *Service) applySignalFeedback(ctx context.Context, a ApplySignalFeedback) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	if a.Type != domain.InteractionLike && a.Type != domain.InteractionNotAccurate {
		return Outcome{OperationID: opID}, fmt.Errorf("invalid signal feedback type %q", a.Type)
	}
	if _, ok := s.store.GetSignal(a.SignalID); !ok {
		return Outcome{OperationID: opID}, ErrNotFound{Entity: domain.EntitySignal, ID: a.SignalID}
	}
	return s.applyFeedback(ctx, opID, feedbackTarget{signalID: a.SignalID}, a.Type,
		"Failed to record your feedback. Please try again.")
}

func (s *Service) applyActionFeedback(ctx context.Context, a ApplyActionFeedback) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	if a.Type != domain.InteractionUseful && a.Type != domain.InteractionNotRelevant {
		return Outcome{OperationID: opID}, fmt.Errorf("invalid action feedback type %q", a.Type)
	}
	if _, ok := s.store.GetRecommendedAction(a.ActionID); !ok {
		return Outcome{OperationID: opID}, ErrNotFound{Entity: domain.EntityRecommendedAction, ID: a.ActionID}
	}
	return s.applyFeedback(ctx, opID, feedbackTarget{actionID: a.ActionID}, a.Type,
		"Failed to record your feedback. Please try again.")
}

type feedbackTarget struct {
	signalID string
	actionID string
}

func (t feedbackTarget) id() string {
	if t.signalID != "" {
		return t.signalID
	}
	return t.actionID
}

// applyFeedback implements the toggle semantics shared by signal and action
// feedback: re-applying the active type removes it, applying the opposing
// type replaces it, anything else records a new event.
func (s *Service) applyFeedback(ctx context.Context, opID string, target feedbackTarget, kind domain.InteractionType, failureMessage string) (Outcome, error) {
	var (
		removed *Interaction
		created *Interaction
	)
	return s.runOptimistic(ctx, opID, failureMessage,
		func(tx Transaction) error {
			removed, created = nil, nil
			if existing, ok := tx.FindFeedback(s.userID, target.id()); ok {
				prior := existing
				if err := tx.DeleteInteraction(existing.ID); err != nil {
					return err
				}
				removed = &prior
				if existing.Type == kind {
					// Toggle off.
					return nil
				}
			}
			next := Interaction{
				Base:     domain.Base{ID: uuid.NewString()},
				Type:     kind,
				UserID:   s.userID,
				UserName: s.userName,
			}
			if target.signalID != "" {
				next.SignalID = &target.signalID
			} else {
				next.ActionID = &target.actionID
			}
			stored, err := tx.CreateInteraction(next)
			if err != nil {
				return err
			}
			created = &stored
			return nil
		},
		func(ctx context.Context) (bool, error) {
			if s.gateway == nil {
				return false, nil
			}
			var degraded bool
			if removed != nil {
				d, err := s.gateway.DeleteDocument(ctx, CollectionInteractions, removed.ID)
				if err != nil {
					return false, err
				}
				degraded = degraded || d
			}
			if created != nil {
				_, d, err := s.gateway.CreateDocument(ctx, CollectionInteractions, *created)
				if err != nil {
					return false, err
				}
				degraded = degraded || d
			}
			return degraded, nil
		},
	)
}

func (s *Service) markSignalViewed(ctx context.Context, a MarkSignalViewed) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	if _, ok := s.store.GetSignal(a.SignalID); !ok {
		return Outcome{OperationID: opID}, ErrNotFound{Entity: domain.EntitySignal, ID: a.SignalID}
	}
	var viewed Interaction
	noop := false
	outcome, err := s.runOptimistic(ctx, opID, "Failed to record the view.",
		func(tx Transaction) error {
			noop = false
			if tx.HasViewed(s.userID, a.SignalID) {
				noop = true
				return nil
			}
			stored, err := tx.CreateInteraction(Interaction{
				Base:     domain.Base{ID: uuid.NewString()},
				SignalID: &a.SignalID,
				Type:     domain.InteractionViewed,
				UserID:   s.userID,
				UserName: s.userName,
			})
			if err != nil {
				return err
			}
			viewed = stored
			return nil
		},
		func(ctx context.Context) (bool, error) {
			if s.gateway == nil || noop {
				return false, nil
			}
			_, degraded, err := s.gateway.CreateDocument(ctx, CollectionInteractions, viewed)
			return degraded, err
		},
	)
	if err != nil {
		return outcome, err
	}
	outcome.NoOp = noop
	return outcome, nil
}

// removeSignal is a local-only mutation: the working set is reconstructed on
// the next dataset load, so nothing is written through the gateway.
func (s *Service) removeSignal(ctx context.Context, a RemoveSignal) (Outcome, error) {
	outcome := Outcome{}
	result, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteSignal(a.SignalID)
	})
	if err != nil {
		return outcome, err
	}
	outcome.RuleResult = result
	return outcome, nil
}

func (s *Service) createActionPlan(ctx context.Context, a CreateActionPlan) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	if a.AccountID == "" && a.LookupKey == "" {
		return Outcome{OperationID: opID}, fmt.Errorf("action plan requires an account or a lookup key")
	}
	if a.AccountID != "" {
		if _, ok := s.store.GetAccount(a.AccountID); !ok {
			return Outcome{OperationID: opID}, ErrNotFound{Entity: domain.EntityAccount, ID: a.AccountID}
		}
	}
	if len(a.Plays) > domain.MaxPlaysPerPlan {
		return Outcome{OperationID: opID}, fmt.Errorf("action plan exceeds %d plays", domain.MaxPlaysPerPlan)
	}

	plan := ActionPlan{
		Base:        domain.Base{ID: uuid.NewString()},
		AccountID:   a.AccountID,
		LookupKey:   a.LookupKey,
		Title:       a.Title,
		Description: a.Description,
		Plays:       append([]Play(nil), a.Plays...),
		Status:      domain.PlanStatusPending,
		Priority:    a.Priority,
		DueDate:     a.DueDate,
		Assignee:    a.Assignee,
		CreatedBy:   s.userID,
		UpdatedBy:   s.userID,
	}
	if a.ActionID != "" {
		if _, ok := s.store.GetRecommendedAction(a.ActionID); !ok {
			return Outcome{OperationID: opID}, ErrNotFound{Entity: domain.EntityRecommendedAction, ID: a.ActionID}
		}
		actionID := a.ActionID
		plan.ActionID = &actionID
	}

	outcome, err := s.runOptimistic(ctx, opID, "Failed to create the action plan. Please try again.",
		func(tx Transaction) error {
			if plan.ActionID != nil {
				if existing, ok := tx.FindActionPlanByAction(plan.AccountID, *plan.ActionID); ok {
					return fmt.Errorf("a plan for action %q already exists on account %q (%s)",
						*plan.ActionID, plan.AccountID, existing.ID)
				}
			}
			created, err := tx.CreateActionPlan(plan)
			if err != nil {
				return err
			}
			plan = created
			return nil
		},
		s.persistCreate(domain.EntityActionPlan, CollectionActionPlans, &plan.Base.ID, &plan),
	)
	if err != nil || outcome.RolledBack {
		return outcome, err
	}
	outcome.Entity = plan
	return outcome, nil
}

func (s *Service) updateActionPlan(ctx context.Context, a UpdateActionPlan) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	if a.Plays != nil && len(a.Plays) > domain.MaxPlaysPerPlan {
		return Outcome{OperationID: opID}, fmt.Errorf("action plan exceeds %d plays", domain.MaxPlaysPerPlan)
	}
	var updated ActionPlan
	outcome, err := s.runOptimistic(ctx, opID, "Failed to update the action plan. Please try again.",
		func(tx Transaction) error {
			plan, err := resolvePlan(tx, a.PlanID, a.LookupKey)
			if err != nil {
				return err
			}
			result, err := tx.UpdateActionPlan(plan.ID, func(p *ActionPlan) error {
				if a.Title != nil {
					p.Title = *a.Title
				}
				if a.Description != nil {
					p.Description = *a.Description
				}
				if a.Status != nil {
					p.Status = *a.Status
				}
				if a.Priority != nil {
					p.Priority = *a.Priority
				}
				if a.DueDate != nil {
					p.DueDate = a.DueDate
				}
				if a.Assignee != nil {
					p.Assignee = *a.Assignee
				}
				if a.Plays != nil {
					p.Plays = append([]Play(nil), a.Plays...)
				}
				p.UpdatedBy = s.userID
				return nil
			})
			if err != nil {
				return err
			}
			updated = result
			return nil
		},
		func(ctx context.Context) (bool, error) {
			if s.gateway == nil {
				return false, nil
			}
			return s.gateway.UpdateDocument(ctx, CollectionActionPlans, updated.ID, updated)
		},
	)
	if err != nil || outcome.RolledBack {
		return outcome, err
	}
	outcome.Entity = updated
	return outcome, nil
}

func (s *Service) deleteActionPlan(ctx context.Context, a DeleteActionPlan) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	var planID string
	return s.runOptimistic(ctx, opID, "Failed to delete the action plan. Please try again.",
		func(tx Transaction) error {
			plan, err := resolvePlan(tx, a.PlanID, a.LookupKey)
			if err != nil {
				return err
			}
			planID = plan.ID
			return tx.DeleteActionPlan(plan.ID)
		},
		func(ctx context.Context) (bool, error) {
			if s.gateway == nil {
				return false, nil
			}
			return s.gateway.DeleteDocument(ctx, CollectionActionPlans, planID)
		},
	)
}

// resolvePlan locates a plan by canonical id first, then by lookup key. Plans
// created before the gateway assigned them an id are only reachable by key.
func resolvePlan(tx Transaction, planID, lookupKey string) (ActionPlan, error) {
	if planID != "" {
		if plan, ok := tx.FindActionPlan(planID); ok {
			return plan, nil
		}
	}
	if lookupKey != "" {
		if plan, ok := tx.FindActionPlanByLookupKey(lookupKey); ok {
			return plan, nil
		}
	}
	ref := planID
	if ref == "" {
		ref = lookupKey
	}
	return ActionPlan{}, ErrNotFound{Entity: domain.EntityActionPlan, ID: ref}
}

func (s *Service) addNote(ctx context.Context, a AddNote) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	if _, ok := s.store.GetAccount(a.AccountID); !ok {
		return Outcome{OperationID: opID}, ErrNotFound{Entity: domain.EntityAccount, ID: a.AccountID}
	}
	note := Note{
		Base:      domain.Base{ID: uuid.NewString()},
		AccountID: a.AccountID,
		Text:      a.Text,
		Pinned:    a.Pinned,
		AuthorID:  s.userID,
		Author:    s.userName,
	}
	outcome, err := s.runOptimistic(ctx, opID, "Failed to save the note. Please try again.",
		func(tx Transaction) error {
			created, err := tx.CreateNote(note)
			if err != nil {
				return err
			}
			note = created
			return nil
		},
		func(ctx context.Context) (bool, error) {
			if s.gateway == nil {
				return false, nil
			}
			_, degraded, err := s.gateway.CreateDocument(ctx, CollectionNotes, note)
			return degraded, err
		},
	)
	if err != nil || outcome.RolledBack {
		return outcome, err
	}
	outcome.Entity = note
	return outcome, nil
}

func (s *Service) editNote(ctx context.Context, a EditNote) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	return s.mutateNote(ctx, opID, a.NoteID, "Failed to update the note. Please try again.",
		func(n *Note) error {
			n.Text = a.Text
			return nil
		})
}

// removeNote soft-deletes: the row stays for audit, drops out of every live
// listing, and leaves the pinned index.
func (s *Service) removeNote(ctx context.Context, a RemoveNote) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	now := s.nowFn()
	return s.mutateNote(ctx, opID, a.NoteID, "Failed to delete the note. Please try again.",
		func(n *Note) error {
			n.DeletedAt = &now
			return nil
		})
}

func (s *Service) toggleNotePin(ctx context.Context, a ToggleNotePin) (Outcome, error) {
	opID := orNewOperationID(a.OperationID)
	return s.mutateNote(ctx, opID, a.NoteID, "Failed to pin the note. Please try again.",
		func(n *Note) error {
			if !n.Live() {
				return fmt.Errorf("note %q is deleted", n.ID)
			}
			n.Pinned = !n.Pinned
			return nil
		})
}

func (s *Service) mutateNote(ctx context.Context, opID, noteID, failureMessage string, mutator func(*Note) error) (Outcome, error) {
	var updated Note
	outcome, err := s.runOptimistic(ctx, opID, failureMessage,
		func(tx Transaction) error {
			result, err := tx.UpdateNote(noteID, mutator)
			if err != nil {
				return err
			}
			updated = result
			return nil
		},
		func(ctx context.Context) (bool, error) {
			if s.gateway == nil {
				return false, nil
			}
			return s.gateway.UpdateDocument(ctx, CollectionNotes, updated.ID, updated)
		},
	)
	if err != nil || outcome.RolledBack {
		return outcome, err
	}
	outcome.Entity = updated
	return outcome, nil
}

// persistCreate builds the persistence closure for entities whose gateway id
// replaces the locally generated one once the write lands.
func (s *Service) persistCreate(entity domain.EntityType, collection string, localID *string, doc any) func(context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		if s.gateway == nil {
			return false, nil
		}
		serverID, degraded, err := s.gateway.CreateDocument(ctx, collection, doc)
		if err != nil {
			return false, err
		}
		if serverID != "" && serverID != *localID {
			if merr := s.adoptServerID(ctx, entity, *localID, serverID); merr != nil {
				s.logger.Warn("keeping local id after merge failure",
					"entity", entity, "local", *localID, "server", serverID, "error", merr)
			} else {
				*localID = serverID
			}
		}
		return degraded, nil
	}
}

// persistDelete builds the persistence closure for gateway document removal.
func (s *Service) persistDelete(collection, id string) func(context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		if s.gateway == nil {
			return false, nil
		}
		return s.gateway.DeleteDocument(ctx, collection, id)
	}
}

// adoptServerID rewrites a committed entity under the gateway's canonical id.
// Failure keeps the local id and is not fatal to the operation.
func (s *Service) adoptServerID(ctx context.Context, entity domain.EntityType, localID, serverID string) error {
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return mergeServerID(tx, entity, localID, serverID)
	})
	return err
}
