package core

import (
	"time"

	"signalsai/pkg/domain"
)

// StoreAction is the closed set of mutations accepted by Dispatch. Each
// variant carries the payload for exactly one reducer; adding a variant
// without a Dispatch case is a compile-time-visible omission in the
// exhaustive switch.
type StoreAction interface {
	isStoreAction()
}

// LoadDataset replaces the analytical working set (accounts, signals,
// recommended actions) with a freshly ingested batch. User-generated
// entities survive the reload; rows orphaned by it are pruned.
type LoadDataset struct {
	Accounts []Account
	Signals  []Signal
	Actions  []RecommendedAction
}

// AddComment attaches a comment to a signal or an account.
type AddComment struct {
	OperationID string
	SignalID    string
	AccountID   string
	Text        string
}

// EditComment rewrites a comment's text, marking it edited.
type EditComment struct {
	OperationID string
	CommentID   string
	Text        string
}

// RemoveComment deletes a comment.
type RemoveComment struct {
	OperationID string
	CommentID   string
}

// ApplySignalFeedback toggles like / not-accurate feedback on a signal for
// the current user. Re-applying the active type removes it; applying the
// opposing type replaces it.
type ApplySignalFeedback struct {
	OperationID string
	SignalID    string
	Type        domain.InteractionType
}

// ApplyActionFeedback toggles useful / not_relevant feedback on a
// recommended action with the same exclusivity semantics as signal feedback.
type ApplyActionFeedback struct {
	OperationID string
	ActionID    string
	Type        domain.InteractionType
}

// MarkSignalViewed records that the current user viewed a signal. Viewing is
// monotonic: repeat views are no-ops.
type MarkSignalViewed struct {
	OperationID string
	SignalID    string
}

// RemoveSignal hard-deletes a signal from the working set. Its comments and
// interactions stay in the log.
type RemoveSignal struct {
	SignalID string
}

// CreateActionPlan promotes a recommended action into a tracked plan.
type CreateActionPlan struct {
	OperationID string
	AccountID   string
	ActionID    string
	LookupKey   string
	Title       string
	Description string
	Plays       []Play
	Priority    domain.Priority
	DueDate     *time.Time
	Assignee    string
}

// UpdateActionPlan edits a plan located by canonical id or lookup key.
type UpdateActionPlan struct {
	OperationID string
	PlanID      string
	LookupKey   string
	Title       *string
	Description *string
	Status      *domain.PlanStatus
	Priority    *domain.Priority
	DueDate     *time.Time
	Assignee    *string
	Plays       []Play
}

// DeleteActionPlan removes a plan located by canonical id or lookup key.
type DeleteActionPlan struct {
	OperationID string
	PlanID      string
	LookupKey   string
}

// AddNote records an account note.
type AddNote struct {
	OperationID string
	AccountID   string
	Text        string
	Pinned      bool
}

// EditNote rewrites a note's text.
type EditNote struct {
	OperationID string
	NoteID      string
	Text        string
}

// RemoveNote soft-deletes a note.
type RemoveNote struct {
	OperationID string
	NoteID      string
}

// ToggleNotePin flips a note's pinned flag.
type ToggleNotePin struct {
	OperationID string
	NoteID      string
}

func (LoadDataset) isStoreAction()         {}
func (AddComment) isStoreAction()          {}
func (EditComment) isStoreAction()         {}
func (RemoveComment) isStoreAction()       {}
func (ApplySignalFeedback) isStoreAction() {}
func (ApplyActionFeedback) isStoreAction() {}
func (MarkSignalViewed) isStoreAction()    {}
func (RemoveSignal) isStoreAction()        {}
func (CreateActionPlan) isStoreAction()    {}
func (UpdateActionPlan) isStoreAction()    {}
func (DeleteActionPlan) isStoreAction()    {}
func (AddNote) isStoreAction()             {}
func (EditNote) isStoreAction()            {}
func (RemoveNote) isStoreAction()          {}
func (ToggleNotePin) isStoreAction()       {}

// Outcome reports how a dispatched action resolved. Optimistic operations
// resolve to either confirmed or rolled back, never an in-between state.
type Outcome struct {
	OperationID string
	Entity      any
	RuleResult  Result
	RolledBack  bool
	Degraded    bool
	NoOp        bool
}
