package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Mutations keep every secondary index
// consistent with the primary maps.
type Transaction interface {
	Snapshot() TransactionView
	Changes() []Change
	CreateAccount(Account) (Account, error)
	UpdateAccount(id string, mutator func(*Account) error) (Account, error)
	CreateSignal(Signal) (Signal, error)
	UpdateSignal(id string, mutator func(*Signal) error) (Signal, error)
	DeleteSignal(id string) error
	CreateRecommendedAction(RecommendedAction) (RecommendedAction, error)
	UpdateRecommendedAction(id string, mutator func(*RecommendedAction) error) (RecommendedAction, error)
	DeleteRecommendedAction(id string) error
	CreateInteraction(Interaction) (Interaction, error)
	DeleteInteraction(id string) error
	CreateComment(Comment) (Comment, error)
	UpdateComment(id string, mutator func(*Comment) error) (Comment, error)
	DeleteComment(id string) error
	CreateActionPlan(ActionPlan) (ActionPlan, error)
	UpdateActionPlan(id string, mutator func(*ActionPlan) error) (ActionPlan, error)
	DeleteActionPlan(id string) error
	CreateNote(Note) (Note, error)
	UpdateNote(id string, mutator func(*Note) error) (Note, error)
	DeleteNote(id string) error
	FindAccount(id string) (Account, bool)
	FindSignal(id string) (Signal, bool)
	FindRecommendedAction(id string) (RecommendedAction, bool)
	FindComment(id string) (Comment, bool)
	FindNote(id string) (Note, bool)
	FindActionPlan(id string) (ActionPlan, bool)
	FindActionPlanByAction(accountID, actionID string) (ActionPlan, bool)
	FindActionPlanByLookupKey(key string) (ActionPlan, bool)
	FindFeedback(userID, targetID string) (Interaction, bool)
	HasViewed(userID, signalID string) bool
}

// TransactionView provides read-only access to snapshot data for rules and
// read-side projections.
type TransactionView = RuleView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetAccount(id string) (Account, bool)
	GetSignal(id string) (Signal, bool)
	GetRecommendedAction(id string) (RecommendedAction, bool)
	GetComment(id string) (Comment, bool)
	GetActionPlan(id string) (ActionPlan, bool)
	GetNote(id string) (Note, bool)
	ListAccounts() []Account
	ListSignals() []Signal
	ListRecommendedActions() []RecommendedAction
	ListInteractions() []Interaction
	ListComments() []Comment
	ListActionPlans() []ActionPlan
	ListNotes() []Note
}
