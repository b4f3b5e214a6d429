// Package core implements the dispatch, optimistic mutation, and read-side
// projection layer on top of the normalized store.
package core

import (
	"signalsai/pkg/domain"
)

type (
	// Account aliases domain.Account.
	Account = domain.Account
	// Signal aliases domain.Signal.
	Signal = domain.Signal
	// RecommendedAction aliases domain.RecommendedAction.
	RecommendedAction = domain.RecommendedAction
	// Interaction aliases domain.Interaction.
	Interaction = domain.Interaction
	// Comment aliases domain.Comment.
	Comment = domain.Comment
	// ActionPlan aliases domain.ActionPlan.
	ActionPlan = domain.ActionPlan
	// Note aliases domain.Note.
	Note = domain.Note
	// Play aliases domain.Play.
	Play = domain.Play
	// Change aliases domain.Change.
	Change = domain.Change
	// Result aliases domain.Result.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)

// AppDB collection names for optimistic entities persisted through the
// gateway.
const (
	CollectionComments     = "SignalAI.Comments"
	CollectionActionPlans  = "SignalAI.ActionPlans"
	CollectionInteractions = "SignalAI.Interactions"
	CollectionNotes        = "SignalAI.Notes"
)
