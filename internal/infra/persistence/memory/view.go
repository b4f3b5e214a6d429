package memory

import (
	"sort"

	"signalsai/pkg/domain"
)

// transactionView exposes a read-only snapshot of the transactional state to
// rules and read-side projections. Listings are sorted by id so rule output
// and projections stay deterministic.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListAccounts returns all accounts within the snapshot.
func (v transactionView) ListAccounts() []Account {
	out := make([]Account, 0, len(v.state.accounts))
	for _, a := range v.state.accounts {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListSignals returns all signals within the snapshot.
func (v transactionView) ListSignals() []Signal {
	out := make([]Signal, 0, len(v.state.signals))
	for _, s := range v.state.signals {
		out = append(out, cloneSignal(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListRecommendedActions returns all recommended actions in the snapshot.
func (v transactionView) ListRecommendedActions() []RecommendedAction {
	out := make([]RecommendedAction, 0, len(v.state.actions))
	for _, a := range v.state.actions {
		out = append(out, cloneAction(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListInteractions returns the full interaction log.
func (v transactionView) ListInteractions() []Interaction {
	out := make([]Interaction, 0, len(v.state.interactions))
	for _, i := range v.state.interactions {
		out = append(out, cloneInteraction(i))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListComments returns all comments in the snapshot.
func (v transactionView) ListComments() []Comment {
	out := make([]Comment, 0, len(v.state.comments))
	for _, c := range v.state.comments {
		out = append(out, cloneComment(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListActionPlans returns all plans in the snapshot.
func (v transactionView) ListActionPlans() []ActionPlan {
	out := make([]ActionPlan, 0, len(v.state.plans))
	for _, p := range v.state.plans {
		out = append(out, clonePlan(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListNotes returns all notes in the snapshot, soft-deleted included.
func (v transactionView) ListNotes() []Note {
	out := make([]Note, 0, len(v.state.notes))
	for _, n := range v.state.notes {
		out = append(out, cloneNote(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindAccount retrieves an account by ID from the snapshot.
func (v transactionView) FindAccount(id string) (Account, bool) {
	a, ok := v.state.accounts[id]
	if !ok {
		return Account{}, false
	}
	return cloneAccount(a), true
}

// FindSignal retrieves a signal by ID from the snapshot.
func (v transactionView) FindSignal(id string) (Signal, bool) {
	s, ok := v.state.signals[id]
	if !ok {
		return Signal{}, false
	}
	return cloneSignal(s), true
}

// FindRecommendedAction retrieves a recommended action by ID.
func (v transactionView) FindRecommendedAction(id string) (RecommendedAction, bool) {
	a, ok := v.state.actions[id]
	if !ok {
		return RecommendedAction{}, false
	}
	return cloneAction(a), true
}

// FindInteraction retrieves an interaction by ID.
func (v transactionView) FindInteraction(id string) (Interaction, bool) {
	i, ok := v.state.interactions[id]
	if !ok {
		return Interaction{}, false
	}
	return cloneInteraction(i), true
}

// FindComment retrieves a comment by ID.
func (v transactionView) FindComment(id string) (Comment, bool) {
	c, ok := v.state.comments[id]
	if !ok {
		return Comment{}, false
	}
	return cloneComment(c), true
}

// FindActionPlan retrieves a plan by ID.
func (v transactionView) FindActionPlan(id string) (ActionPlan, bool) {
	p, ok := v.state.plans[id]
	if !ok {
		return ActionPlan{}, false
	}
	return clonePlan(p), true
}

// FindNote retrieves a note by ID.
func (v transactionView) FindNote(id string) (Note, bool) {
	n, ok := v.state.notes[id]
	if !ok {
		return Note{}, false
	}
	return cloneNote(n), true
}

// SignalIDsByAccount returns the signal ids linked to an account.
func (v transactionView) SignalIDsByAccount(accountID string) []string {
	return sortedCopy(v.state.signalsByAccount[accountID])
}

// SignalIDsByAction returns the signal ids referencing a recommended action.
func (v transactionView) SignalIDsByAction(actionID string) []string {
	return sortedCopy(v.state.signalsByAction[actionID])
}

// ActionIDsByAccount returns the recommended action ids on an account.
func (v transactionView) ActionIDsByAccount(accountID string) []string {
	return sortedCopy(v.state.actionsByAccount[accountID])
}

// InteractionIDsBySignal returns the interaction ids logged against a signal.
func (v transactionView) InteractionIDsBySignal(signalID string) []string {
	return sortedCopy(v.state.interactionsBySignal[signalID])
}

// InteractionIDsByAction returns the interaction ids logged against an action.
func (v transactionView) InteractionIDsByAction(actionID string) []string {
	return sortedCopy(v.state.interactionsByAction[actionID])
}

// CommentIDsBySignal returns the comment ids attached to a signal.
func (v transactionView) CommentIDsBySignal(signalID string) []string {
	return sortedCopy(v.state.commentsBySignal[signalID])
}

// CommentIDsByAccount returns the comment ids attached to an account.
func (v transactionView) CommentIDsByAccount(accountID string) []string {
	return sortedCopy(v.state.commentsByAccount[accountID])
}

// PlanIDsByAccount returns the plan ids scoped to an account.
func (v transactionView) PlanIDsByAccount(accountID string) []string {
	return sortedCopy(v.state.plansByAccount[accountID])
}

// PlanIDsByAction returns the plan ids bound to a recommended action.
func (v transactionView) PlanIDsByAction(actionID string) []string {
	return sortedCopy(v.state.plansByAction[actionID])
}

// NoteIDsByAccount returns the note ids on an account, soft-deleted included.
func (v transactionView) NoteIDsByAccount(accountID string) []string {
	return sortedCopy(v.state.notesByAccount[accountID])
}

// PinnedNoteIDs returns the ids of pinned, live notes.
func (v transactionView) PinnedNoteIDs() []string {
	out := make([]string, 0, len(v.state.pinnedNotes))
	for id := range v.state.pinnedNotes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var _ domain.RuleView = transactionView{}
