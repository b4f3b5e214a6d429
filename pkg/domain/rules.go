package domain

import "context"

// RuleView provides read-only access to domain entities and relationship
// indexes for rule evaluation.
type RuleView interface {
	ListAccounts() []Account
	ListSignals() []Signal
	ListRecommendedActions() []RecommendedAction
	ListInteractions() []Interaction
	ListComments() []Comment
	ListActionPlans() []ActionPlan
	ListNotes() []Note
	FindAccount(id string) (Account, bool)
	FindSignal(id string) (Signal, bool)
	FindRecommendedAction(id string) (RecommendedAction, bool)
	FindInteraction(id string) (Interaction, bool)
	FindComment(id string) (Comment, bool)
	FindActionPlan(id string) (ActionPlan, bool)
	FindNote(id string) (Note, bool)
	SignalIDsByAccount(accountID string) []string
	SignalIDsByAction(actionID string) []string
	ActionIDsByAccount(accountID string) []string
	InteractionIDsBySignal(signalID string) []string
	InteractionIDsByAction(actionID string) []string
	CommentIDsBySignal(signalID string) []string
	CommentIDsByAccount(accountID string) []string
	PlanIDsByAccount(accountID string) []string
	PlanIDsByAction(actionID string) []string
	NoteIDsByAccount(accountID string) []string
	PinnedNoteIDs() []string
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
