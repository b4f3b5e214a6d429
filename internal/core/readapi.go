package core

import (
	"context"

	"signalsai/pkg/domain"
)

// Signals returns the denormalized feed for the current user, sorted unviewed
// first, then by priority, then newest call date.
func (s *Service) Signals(ctx context.Context) ([]DenormalizedSignal, error) {
	var rows []DenormalizedSignal
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, sig := range view.ListSignals() {
			if row, ok := denormalizeSignal(view, sig, s.userID); ok {
				rows = append(rows, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortFeed(rows)
	return rows, nil
}

// SignalByID returns one denormalized feed row.
func (s *Service) SignalByID(ctx context.Context, id string) (DenormalizedSignal, error) {
	var row DenormalizedSignal
	err := s.store.View(ctx, func(view TransactionView) error {
		sig, ok := view.FindSignal(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntitySignal, ID: id}
		}
		joined, ok := denormalizeSignal(view, sig, s.userID)
		if !ok {
			return ErrNotFound{Entity: domain.EntityAccount, ID: sig.AccountID}
		}
		row = joined
		return nil
	})
	return row, err
}

// Accounts returns the portfolio overview, ordered by the strongest signal
// polarity and recency.
func (s *Service) Accounts(ctx context.Context) ([]DenormalizedAccount, error) {
	var rows []DenormalizedAccount
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, account := range view.ListAccounts() {
			rows = append(rows, denormalizeAccount(view, account))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortPortfolio(rows)
	return rows, nil
}

// AccountByID returns one portfolio row.
func (s *Service) AccountByID(ctx context.Context, id string) (DenormalizedAccount, error) {
	var row DenormalizedAccount
	err := s.store.View(ctx, func(view TransactionView) error {
		account, ok := view.FindAccount(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityAccount, ID: id}
		}
		row = denormalizeAccount(view, account)
		return nil
	})
	return row, err
}

// RecommendedActions lists every recommended action in the working set.
func (s *Service) RecommendedActions(ctx context.Context) ([]RecommendedAction, error) {
	var out []RecommendedAction
	err := s.store.View(ctx, func(view TransactionView) error {
		out = view.ListRecommendedActions()
		return nil
	})
	return out, err
}

// Comments returns the comments attached to a signal or account id, oldest
// first.
func (s *Service) Comments(ctx context.Context, targetID string) ([]Comment, error) {
	var out []Comment
	err := s.store.View(ctx, func(view TransactionView) error {
		ids := view.CommentIDsBySignal(targetID)
		ids = append(ids, view.CommentIDsByAccount(targetID)...)
		for _, id := range ids {
			if c, ok := view.FindComment(id); ok {
				out = append(out, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortComments(out)
	return out, nil
}

// ActionPlans lists every plan, optionally filtered by account id.
func (s *Service) ActionPlans(ctx context.Context, accountID string) ([]ActionPlan, error) {
	var out []ActionPlan
	err := s.store.View(ctx, func(view TransactionView) error {
		if accountID == "" {
			out = view.ListActionPlans()
			return nil
		}
		for _, id := range view.PlanIDsByAccount(accountID) {
			if p, ok := view.FindActionPlan(id); ok {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// NotesByAccount returns an account's live notes, pinned first, then newest
// first.
func (s *Service) NotesByAccount(ctx context.Context, accountID string) ([]Note, error) {
	var out []Note
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, id := range view.NoteIDsByAccount(accountID) {
			if n, ok := view.FindNote(id); ok && n.Live() {
				out = append(out, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNotes(out)
	return out, nil
}

// PinnedNotes returns every pinned live note across accounts, newest first.
func (s *Service) PinnedNotes(ctx context.Context) ([]Note, error) {
	var out []Note
	err := s.store.View(ctx, func(view TransactionView) error {
		for _, id := range view.PinnedNoteIDs() {
			if n, ok := view.FindNote(id); ok && n.Live() {
				out = append(out, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNotes(out)
	return out, nil
}

// Summary aggregates counts for the portfolio header.
func (s *Service) Summary(ctx context.Context) (PortfolioSummary, error) {
	var sum PortfolioSummary
	err := s.store.View(ctx, func(view TransactionView) error {
		sum.Accounts = len(view.ListAccounts())
		for _, sig := range view.ListSignals() {
			sum.Signals++
			switch sig.Polarity {
			case domain.PolarityRisk:
				sum.RiskSignals++
			case domain.PolarityOpportunity:
				sum.GrowthSignals++
			}
		}
		for _, plan := range view.ListActionPlans() {
			if plan.Status != domain.PlanStatusComplete {
				sum.OpenPlans++
			}
		}
		return nil
	})
	return sum, err
}
