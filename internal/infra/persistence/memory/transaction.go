package memory

import (
	"fmt"
	"time"

	"signalsai/pkg/domain"
)

// transaction is a mutation set applied to a cloned copy of the store state.
// Every mutation keeps the secondary indexes aligned with the primary maps.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Changes returns the mutations recorded so far, in application order.
func (tx *transaction) Changes() []Change {
	return append([]Change(nil), tx.changes...)
}

// CreateAccount stores a new account within the transaction.
func (tx *transaction) CreateAccount(a Account) (Account, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.accounts[a.ID]; exists {
		return Account{}, fmt.Errorf("account %q already exists", a.ID)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = tx.now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = tx.now
	}
	tx.state.accounts[a.ID] = cloneAccount(a)
	tx.recordChange(Change{Entity: domain.EntityAccount, Action: domain.ActionCreate, After: cloneAccount(a)})
	return cloneAccount(a), nil
}

// UpdateAccount mutates an account using the provided mutator function.
func (tx *transaction) UpdateAccount(id string, mutator func(*Account) error) (Account, error) {
	current, ok := tx.state.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("account %q not found", id)
	}
	before := cloneAccount(current)
	if err := mutator(&current); err != nil {
		return Account{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.accounts[id] = cloneAccount(current)
	tx.recordChange(Change{Entity: domain.EntityAccount, Action: domain.ActionUpdate, Before: before, After: cloneAccount(current)})
	return cloneAccount(current), nil
}

// CreateSignal stores a new signal and links it into the account and action
// indexes.
func (tx *transaction) CreateSignal(sig Signal) (Signal, error) {
	if sig.ID == "" {
		sig.ID = tx.store.newID()
	}
	if _, exists := tx.state.signals[sig.ID]; exists {
		return Signal{}, fmt.Errorf("signal %q already exists", sig.ID)
	}
	if sig.AccountID == "" {
		return Signal{}, fmt.Errorf("signal %q missing account reference", sig.ID)
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = tx.now
	}
	if sig.UpdatedAt.IsZero() {
		sig.UpdatedAt = tx.now
	}
	tx.state.signals[sig.ID] = cloneSignal(sig)
	addIndexEntry(tx.state.signalsByAccount, sig.AccountID, sig.ID)
	if sig.ActionID != nil {
		addIndexEntry(tx.state.signalsByAction, *sig.ActionID, sig.ID)
	}
	tx.recordChange(Change{Entity: domain.EntitySignal, Action: domain.ActionCreate, After: cloneSignal(sig)})
	return cloneSignal(sig), nil
}

// UpdateSignal mutates a signal, reindexing when its references change.
func (tx *transaction) UpdateSignal(id string, mutator func(*Signal) error) (Signal, error) {
	current, ok := tx.state.signals[id]
	if !ok {
		return Signal{}, fmt.Errorf("signal %q not found", id)
	}
	before := cloneSignal(current)
	if err := mutator(&current); err != nil {
		return Signal{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	if before.AccountID != current.AccountID {
		removeIndexEntry(tx.state.signalsByAccount, before.AccountID, id)
		addIndexEntry(tx.state.signalsByAccount, current.AccountID, id)
	}
	if !equalStringPtr(before.ActionID, current.ActionID) {
		if before.ActionID != nil {
			removeIndexEntry(tx.state.signalsByAction, *before.ActionID, id)
		}
		if current.ActionID != nil {
			addIndexEntry(tx.state.signalsByAction, *current.ActionID, id)
		}
	}
	tx.state.signals[id] = cloneSignal(current)
	tx.recordChange(Change{Entity: domain.EntitySignal, Action: domain.ActionUpdate, Before: before, After: cloneSignal(current)})
	return cloneSignal(current), nil
}

// DeleteSignal hard-deletes a signal from the primary map and every index.
// Comments and interactions that referenced it stay in the log.
func (tx *transaction) DeleteSignal(id string) error {
	current, ok := tx.state.signals[id]
	if !ok {
		return fmt.Errorf("signal %q not found", id)
	}
	removeIndexEntry(tx.state.signalsByAccount, current.AccountID, id)
	if current.ActionID != nil {
		removeIndexEntry(tx.state.signalsByAction, *current.ActionID, id)
	}
	delete(tx.state.signals, id)
	tx.recordChange(Change{Entity: domain.EntitySignal, Action: domain.ActionDelete, Before: cloneSignal(current)})
	return nil
}

// CreateRecommendedAction stores a new recommended action.
func (tx *transaction) CreateRecommendedAction(a RecommendedAction) (RecommendedAction, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.actions[a.ID]; exists {
		return RecommendedAction{}, fmt.Errorf("recommended action %q already exists", a.ID)
	}
	if a.AccountID == "" {
		return RecommendedAction{}, fmt.Errorf("recommended action %q missing account reference", a.ID)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = tx.now
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = tx.now
	}
	tx.state.actions[a.ID] = cloneAction(a)
	addIndexEntry(tx.state.actionsByAccount, a.AccountID, a.ID)
	tx.recordChange(Change{Entity: domain.EntityRecommendedAction, Action: domain.ActionCreate, After: cloneAction(a)})
	return cloneAction(a), nil
}

// UpdateRecommendedAction mutates a recommended action.
func (tx *transaction) UpdateRecommendedAction(id string, mutator func(*RecommendedAction) error) (RecommendedAction, error) {
	current, ok := tx.state.actions[id]
	if !ok {
		return RecommendedAction{}, fmt.Errorf("recommended action %q not found", id)
	}
	before := cloneAction(current)
	if err := mutator(&current); err != nil {
		return RecommendedAction{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	if before.AccountID != current.AccountID {
		removeIndexEntry(tx.state.actionsByAccount, before.AccountID, id)
		addIndexEntry(tx.state.actionsByAccount, current.AccountID, id)
	}
	tx.state.actions[id] = cloneAction(current)
	tx.recordChange(Change{Entity: domain.EntityRecommendedAction, Action: domain.ActionUpdate, Before: before, After: cloneAction(current)})
	return cloneAction(current), nil
}

// DeleteRecommendedAction removes a recommended action and detaches it from
// the signals and plans that referenced it, matching the detachment snapshot
// migration applies on import.
func (tx *transaction) DeleteRecommendedAction(id string) error {
	current, ok := tx.state.actions[id]
	if !ok {
		return fmt.Errorf("recommended action %q not found", id)
	}
	for _, sigID := range append([]string(nil), tx.state.signalsByAction[id]...) {
		if sig, ok := tx.state.signals[sigID]; ok {
			sig.ActionID = nil
			tx.state.signals[sigID] = sig
		}
	}
	delete(tx.state.signalsByAction, id)
	for _, planID := range append([]string(nil), tx.state.plansByAction[id]...) {
		if plan, ok := tx.state.plans[planID]; ok {
			plan.ActionID = nil
			tx.state.plans[planID] = plan
		}
	}
	delete(tx.state.plansByAction, id)
	removeIndexEntry(tx.state.actionsByAccount, current.AccountID, id)
	delete(tx.state.actions, id)
	tx.recordChange(Change{Entity: domain.EntityRecommendedAction, Action: domain.ActionDelete, Before: cloneAction(current)})
	return nil
}

// CreateInteraction appends a feedback event. Exactly one of SignalID or
// ActionID must be set.
func (tx *transaction) CreateInteraction(i Interaction) (Interaction, error) {
	if i.ID == "" {
		i.ID = tx.store.newID()
	}
	if _, exists := tx.state.interactions[i.ID]; exists {
		return Interaction{}, fmt.Errorf("interaction %q already exists", i.ID)
	}
	if (i.SignalID == nil) == (i.ActionID == nil) {
		return Interaction{}, fmt.Errorf("interaction %q must target exactly one of signal or action", i.ID)
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = tx.now
	}
	if i.UpdatedAt.IsZero() {
		i.UpdatedAt = tx.now
	}
	tx.state.interactions[i.ID] = cloneInteraction(i)
	if i.SignalID != nil {
		addIndexEntry(tx.state.interactionsBySignal, *i.SignalID, i.ID)
	}
	if i.ActionID != nil {
		addIndexEntry(tx.state.interactionsByAction, *i.ActionID, i.ID)
	}
	tx.recordChange(Change{Entity: domain.EntityInteraction, Action: domain.ActionCreate, After: cloneInteraction(i)})
	return cloneInteraction(i), nil
}

// DeleteInteraction removes a feedback event from the log and its indexes.
func (tx *transaction) DeleteInteraction(id string) error {
	current, ok := tx.state.interactions[id]
	if !ok {
		return fmt.Errorf("interaction %q not found", id)
	}
	if current.SignalID != nil {
		removeIndexEntry(tx.state.interactionsBySignal, *current.SignalID, id)
	}
	if current.ActionID != nil {
		removeIndexEntry(tx.state.interactionsByAction, *current.ActionID, id)
	}
	delete(tx.state.interactions, id)
	tx.recordChange(Change{Entity: domain.EntityInteraction, Action: domain.ActionDelete, Before: cloneInteraction(current)})
	return nil
}

// CreateComment stores a comment attached to exactly one signal or account.
func (tx *transaction) CreateComment(c Comment) (Comment, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.comments[c.ID]; exists {
		return Comment{}, fmt.Errorf("comment %q already exists", c.ID)
	}
	if (c.SignalID == nil) == (c.AccountID == nil) {
		return Comment{}, fmt.Errorf("comment %q must target exactly one of signal or account", c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = tx.now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = tx.now
	}
	tx.state.comments[c.ID] = cloneComment(c)
	if c.SignalID != nil {
		addIndexEntry(tx.state.commentsBySignal, *c.SignalID, c.ID)
	}
	if c.AccountID != nil {
		addIndexEntry(tx.state.commentsByAccount, *c.AccountID, c.ID)
	}
	tx.recordChange(Change{Entity: domain.EntityComment, Action: domain.ActionCreate, After: cloneComment(c)})
	return cloneComment(c), nil
}

// UpdateComment mutates a comment, reindexing when its target changes.
func (tx *transaction) UpdateComment(id string, mutator func(*Comment) error) (Comment, error) {
	current, ok := tx.state.comments[id]
	if !ok {
		return Comment{}, fmt.Errorf("comment %q not found", id)
	}
	before := cloneComment(current)
	if err := mutator(&current); err != nil {
		return Comment{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	if !equalStringPtr(before.SignalID, current.SignalID) {
		if before.SignalID != nil {
			removeIndexEntry(tx.state.commentsBySignal, *before.SignalID, id)
		}
		if current.SignalID != nil {
			addIndexEntry(tx.state.commentsBySignal, *current.SignalID, id)
		}
	}
	if !equalStringPtr(before.AccountID, current.AccountID) {
		if before.AccountID != nil {
			removeIndexEntry(tx.state.commentsByAccount, *before.AccountID, id)
		}
		if current.AccountID != nil {
			addIndexEntry(tx.state.commentsByAccount, *current.AccountID, id)
		}
	}
	tx.state.comments[id] = cloneComment(current)
	tx.recordChange(Change{Entity: domain.EntityComment, Action: domain.ActionUpdate, Before: before, After: cloneComment(current)})
	return cloneComment(current), nil
}

// DeleteComment removes a comment from the primary map and its indexes.
func (tx *transaction) DeleteComment(id string) error {
	current, ok := tx.state.comments[id]
	if !ok {
		return fmt.Errorf("comment %q not found", id)
	}
	if current.SignalID != nil {
		removeIndexEntry(tx.state.commentsBySignal, *current.SignalID, id)
	}
	if current.AccountID != nil {
		removeIndexEntry(tx.state.commentsByAccount, *current.AccountID, id)
	}
	delete(tx.state.comments, id)
	tx.recordChange(Change{Entity: domain.EntityComment, Action: domain.ActionDelete, Before: cloneComment(current)})
	return nil
}

// CreateActionPlan stores a plan and links it into the account and action
// indexes.
func (tx *transaction) CreateActionPlan(p ActionPlan) (ActionPlan, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.plans[p.ID]; exists {
		return ActionPlan{}, fmt.Errorf("action plan %q already exists", p.ID)
	}
	if p.AccountID == "" && p.LookupKey == "" {
		return ActionPlan{}, fmt.Errorf("action plan %q missing account reference", p.ID)
	}
	if p.Status == "" {
		p.Status = domain.PlanStatusPending
	}
	p.Plays = append([]domain.Play(nil), p.Plays...)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = tx.now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = tx.now
	}
	tx.state.plans[p.ID] = clonePlan(p)
	addIndexEntry(tx.state.plansByAccount, p.AccountID, p.ID)
	if p.ActionID != nil {
		addIndexEntry(tx.state.plansByAction, *p.ActionID, p.ID)
	}
	tx.recordChange(Change{Entity: domain.EntityActionPlan, Action: domain.ActionCreate, After: clonePlan(p)})
	return clonePlan(p), nil
}

// UpdateActionPlan mutates a plan, reindexing when its references change.
func (tx *transaction) UpdateActionPlan(id string, mutator func(*ActionPlan) error) (ActionPlan, error) {
	current, ok := tx.state.plans[id]
	if !ok {
		return ActionPlan{}, fmt.Errorf("action plan %q not found", id)
	}
	before := clonePlan(current)
	if err := mutator(&current); err != nil {
		return ActionPlan{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	if before.AccountID != current.AccountID {
		removeIndexEntry(tx.state.plansByAccount, before.AccountID, id)
		addIndexEntry(tx.state.plansByAccount, current.AccountID, id)
	}
	if !equalStringPtr(before.ActionID, current.ActionID) {
		if before.ActionID != nil {
			removeIndexEntry(tx.state.plansByAction, *before.ActionID, id)
		}
		if current.ActionID != nil {
			addIndexEntry(tx.state.plansByAction, *current.ActionID, id)
		}
	}
	tx.state.plans[id] = clonePlan(current)
	tx.recordChange(Change{Entity: domain.EntityActionPlan, Action: domain.ActionUpdate, Before: before, After: clonePlan(current)})
	return clonePlan(current), nil
}

// DeleteActionPlan removes a plan from the primary map and its indexes.
func (tx *transaction) DeleteActionPlan(id string) error {
	current, ok := tx.state.plans[id]
	if !ok {
		return fmt.Errorf("action plan %q not found", id)
	}
	removeIndexEntry(tx.state.plansByAccount, current.AccountID, id)
	if current.ActionID != nil {
		removeIndexEntry(tx.state.plansByAction, *current.ActionID, id)
	}
	delete(tx.state.plans, id)
	tx.recordChange(Change{Entity: domain.EntityActionPlan, Action: domain.ActionDelete, Before: clonePlan(current)})
	return nil
}

// CreateNote stores a note and maintains the pinned index.
func (tx *transaction) CreateNote(n Note) (Note, error) {
	if n.ID == "" {
		n.ID = tx.store.newID()
	}
	if _, exists := tx.state.notes[n.ID]; exists {
		return Note{}, fmt.Errorf("note %q already exists", n.ID)
	}
	if n.AccountID == "" {
		return Note{}, fmt.Errorf("note %q missing account reference", n.ID)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = tx.now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = tx.now
	}
	tx.state.notes[n.ID] = cloneNote(n)
	addIndexEntry(tx.state.notesByAccount, n.AccountID, n.ID)
	if n.Pinned && n.Live() {
		tx.state.pinnedNotes[n.ID] = struct{}{}
	}
	tx.recordChange(Change{Entity: domain.EntityNote, Action: domain.ActionCreate, After: cloneNote(n)})
	return cloneNote(n), nil
}

// UpdateNote mutates a note and keeps the pinned index consistent with the
// pinned flag and soft-delete state.
func (tx *transaction) UpdateNote(id string, mutator func(*Note) error) (Note, error) {
	current, ok := tx.state.notes[id]
	if !ok {
		return Note{}, fmt.Errorf("note %q not found", id)
	}
	before := cloneNote(current)
	if err := mutator(&current); err != nil {
		return Note{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	if before.AccountID != current.AccountID {
		removeIndexEntry(tx.state.notesByAccount, before.AccountID, id)
		addIndexEntry(tx.state.notesByAccount, current.AccountID, id)
	}
	if current.Pinned && current.Live() {
		tx.state.pinnedNotes[id] = struct{}{}
	} else {
		delete(tx.state.pinnedNotes, id)
	}
	tx.state.notes[id] = cloneNote(current)
	tx.recordChange(Change{Entity: domain.EntityNote, Action: domain.ActionUpdate, Before: before, After: cloneNote(current)})
	return cloneNote(current), nil
}

// DeleteNote hard-deletes a note. Soft deletion is an UpdateNote that stamps
// DeletedAt; this primitive exists for compensating rollbacks.
func (tx *transaction) DeleteNote(id string) error {
	current, ok := tx.state.notes[id]
	if !ok {
		return fmt.Errorf("note %q not found", id)
	}
	removeIndexEntry(tx.state.notesByAccount, current.AccountID, id)
	delete(tx.state.pinnedNotes, id)
	delete(tx.state.notes, id)
	tx.recordChange(Change{Entity: domain.EntityNote, Action: domain.ActionDelete, Before: cloneNote(current)})
	return nil
}

// FindAccount exposes account lookup within the transaction scope.
func (tx *transaction) FindAccount(id string) (Account, bool) {
	a, ok := tx.state.accounts[id]
	if !ok {
		return Account{}, false
	}
	return cloneAccount(a), true
}

// FindSignal exposes signal lookup within the transaction scope.
func (tx *transaction) FindSignal(id string) (Signal, bool) {
	s, ok := tx.state.signals[id]
	if !ok {
		return Signal{}, false
	}
	return cloneSignal(s), true
}

// FindRecommendedAction exposes action lookup within the transaction scope.
func (tx *transaction) FindRecommendedAction(id string) (RecommendedAction, bool) {
	a, ok := tx.state.actions[id]
	if !ok {
		return RecommendedAction{}, false
	}
	return cloneAction(a), true
}

// FindComment exposes comment lookup within the transaction scope.
func (tx *transaction) FindComment(id string) (Comment, bool) {
	c, ok := tx.state.comments[id]
	if !ok {
		return Comment{}, false
	}
	return cloneComment(c), true
}

// FindNote exposes note lookup within the transaction scope.
func (tx *transaction) FindNote(id string) (Note, bool) {
	n, ok := tx.state.notes[id]
	if !ok {
		return Note{}, false
	}
	return cloneNote(n), true
}

// FindActionPlan exposes plan lookup by canonical id.
func (tx *transaction) FindActionPlan(id string) (ActionPlan, bool) {
	p, ok := tx.state.plans[id]
	if !ok {
		return ActionPlan{}, false
	}
	return clonePlan(p), true
}

// FindActionPlanByAction locates the plan bound to an (account, action) pair
// through the plansByAction index.
func (tx *transaction) FindActionPlanByAction(accountID, actionID string) (ActionPlan, bool) {
	for _, planID := range tx.state.plansByAction[actionID] {
		p, ok := tx.state.plans[planID]
		if ok && p.AccountID == accountID {
			return clonePlan(p), true
		}
	}
	return ActionPlan{}, false
}

// FindActionPlanByLookupKey locates a plan stored under a temporary key from
// before its account reference resolved.
func (tx *transaction) FindActionPlanByLookupKey(key string) (ActionPlan, bool) {
	if key == "" {
		return ActionPlan{}, false
	}
	for _, p := range tx.state.plans {
		if p.LookupKey == key {
			return clonePlan(p), true
		}
	}
	return ActionPlan{}, false
}

// FindFeedback returns the active feedback interaction recorded by a user
// against a signal or action, if any. Viewed markers are not feedback.
func (tx *transaction) FindFeedback(userID, targetID string) (Interaction, bool) {
	return findFeedback(&tx.state, userID, targetID)
}

// HasViewed reports whether a user has already viewed a signal.
func (tx *transaction) HasViewed(userID, signalID string) bool {
	for _, id := range tx.state.interactionsBySignal[signalID] {
		i, ok := tx.state.interactions[id]
		if ok && i.UserID == userID && i.Type == domain.InteractionViewed {
			return true
		}
	}
	return false
}

func findFeedback(state *memoryState, userID, targetID string) (Interaction, bool) {
	candidates := state.interactionsBySignal[targetID]
	candidates = append(append([]string(nil), candidates...), state.interactionsByAction[targetID]...)
	for _, id := range candidates {
		i, ok := state.interactions[id]
		if !ok || i.UserID != userID || i.Type == domain.InteractionViewed {
			continue
		}
		return cloneInteraction(i), true
	}
	return Interaction{}, false
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
