// Package memory provides the in-memory normalized store backing signalsai.
// It is the reference implementation of the persistence contracts and the
// transactional substrate reused by the sqlite and postgres stores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"signalsai/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Account aliases domain.Account for in-memory persistence operations.
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
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

// memoryState holds the primary entity maps plus every secondary index.
// Indexes are derived data: they are rebuilt from the primary maps on import
// and maintained incrementally by every transaction mutation.
type memoryState struct {
	accounts     map[string]Account
	signals      map[string]Signal
	actions      map[string]RecommendedAction
	interactions map[string]Interaction
	comments     map[string]Comment
	plans        map[string]ActionPlan
	notes        map[string]Note

	signalsByAccount     map[string][]string
	actionsByAccount     map[string][]string
	signalsByAction      map[string][]string
	interactionsBySignal map[string][]string
	interactionsByAction map[string][]string
	commentsBySignal     map[string][]string
	commentsByAccount    map[string][]string
	plansByAccount       map[string][]string
	plansByAction        map[string][]string
	notesByAccount       map[string][]string
	pinnedNotes          map[string]struct{}
}

// Snapshot captures a point-in-time clone of the primary entity maps.
// Secondary indexes are never serialized; they are rebuilt on import.
type Snapshot struct {
	Accounts     map[string]Account           `json:"accounts"`
	Signals      map[string]Signal            `json:"signals"`
	Actions      map[string]RecommendedAction `json:"actions"`
	Interactions map[string]Interaction       `json:"interactions"`
	Comments     map[string]Comment           `json:"comments"`
	Plans        map[string]ActionPlan        `json:"plans"`
	Notes        map[string]Note              `json:"notes"`
}

func newMemoryState() memoryState {
	return memoryState{
		accounts:     make(map[string]Account),
		signals:      make(map[string]Signal),
		actions:      make(map[string]RecommendedAction),
		interactions: make(map[string]Interaction),
		comments:     make(map[string]Comment),
		plans:        make(map[string]ActionPlan),
		notes:        make(map[string]Note),

		signalsByAccount:     make(map[string][]string),
		actionsByAccount:     make(map[string][]string),
		signalsByAction:      make(map[string][]string),
		interactionsBySignal: make(map[string][]string),
		interactionsByAction: make(map[string][]string),
		commentsBySignal:     make(map[string][]string),
		commentsByAccount:    make(map[string][]string),
		plansByAccount:       make(map[string][]string),
		plansByAction:        make(map[string][]string),
		notesByAccount:       make(map[string][]string),
		pinnedNotes:          make(map[string]struct{}),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Accounts:     make(map[string]Account, len(state.accounts)),
		Signals:      make(map[string]Signal, len(state.signals)),
		Actions:      make(map[string]RecommendedAction, len(state.actions)),
		Interactions: make(map[string]Interaction, len(state.interactions)),
		Comments:     make(map[string]Comment, len(state.comments)),
		Plans:        make(map[string]ActionPlan, len(state.plans)),
		Notes:        make(map[string]Note, len(state.notes)),
	}
	for k, v := range state.accounts {
		s.Accounts[k] = cloneAccount(v)
	}
	for k, v := range state.signals {
		s.Signals[k] = cloneSignal(v)
	}
	for k, v := range state.actions {
		s.Actions[k] = cloneAction(v)
	}
	for k, v := range state.interactions {
		s.Interactions[k] = cloneInteraction(v)
	}
	for k, v := range state.comments {
		s.Comments[k] = cloneComment(v)
	}
	for k, v := range state.plans {
		s.Plans[k] = clonePlan(v)
	}
	for k, v := range state.notes {
		s.Notes[k] = cloneNote(v)
	}
	return s
}

// migrateSnapshot normalizes a snapshot loaded from durable storage: nil maps
// become empty, rows violating referential integrity are dropped, and dangling
// action references on signals are cleared.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Accounts == nil {
		snapshot.Accounts = map[string]Account{}
	}
	if snapshot.Signals == nil {
		snapshot.Signals = map[string]Signal{}
	}
	if snapshot.Actions == nil {
		snapshot.Actions = map[string]RecommendedAction{}
	}
	if snapshot.Interactions == nil {
		snapshot.Interactions = map[string]Interaction{}
	}
	if snapshot.Comments == nil {
		snapshot.Comments = map[string]Comment{}
	}
	if snapshot.Plans == nil {
		snapshot.Plans = map[string]ActionPlan{}
	}
	if snapshot.Notes == nil {
		snapshot.Notes = map[string]Note{}
	}

	accountExists := func(id string) bool {
		_, ok := snapshot.Accounts[id]
		return ok
	}
	signalExists := func(id string) bool {
		_, ok := snapshot.Signals[id]
		return ok
	}
	actionExists := func(id string) bool {
		_, ok := snapshot.Actions[id]
		return ok
	}

	for id, action := range snapshot.Actions {
		if action.AccountID == "" || !accountExists(action.AccountID) {
			delete(snapshot.Actions, id)
		}
	}

	for id, signal := range snapshot.Signals {
		if signal.AccountID == "" || !accountExists(signal.AccountID) {
			delete(snapshot.Signals, id)
			continue
		}
		if signal.ActionID != nil && !actionExists(*signal.ActionID) {
			signal.ActionID = nil
		}
		snapshot.Signals[id] = signal
	}

	for id, interaction := range snapshot.Interactions {
		switch {
		case interaction.SignalID != nil && signalExists(*interaction.SignalID):
		case interaction.ActionID != nil && actionExists(*interaction.ActionID):
		default:
			delete(snapshot.Interactions, id)
		}
	}

	for id, comment := range snapshot.Comments {
		switch {
		case comment.SignalID != nil && signalExists(*comment.SignalID):
		case comment.AccountID != nil && accountExists(*comment.AccountID):
		default:
			delete(snapshot.Comments, id)
		}
	}

	for id, plan := range snapshot.Plans {
		if plan.AccountID != "" && !accountExists(plan.AccountID) && plan.LookupKey == "" {
			delete(snapshot.Plans, id)
			continue
		}
		if plan.ActionID != nil && !actionExists(*plan.ActionID) {
			plan.ActionID = nil
		}
		snapshot.Plans[id] = plan
	}

	for id, note := range snapshot.Notes {
		if note.AccountID == "" || !accountExists(note.AccountID) {
			delete(snapshot.Notes, id)
		}
	}

	return snapshot
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Accounts {
		state.accounts[k] = cloneAccount(v)
	}
	for k, v := range s.Signals {
		state.signals[k] = cloneSignal(v)
	}
	for k, v := range s.Actions {
		state.actions[k] = cloneAction(v)
	}
	for k, v := range s.Interactions {
		state.interactions[k] = cloneInteraction(v)
	}
	for k, v := range s.Comments {
		state.comments[k] = cloneComment(v)
	}
	for k, v := range s.Plans {
		state.plans[k] = clonePlan(v)
	}
	for k, v := range s.Notes {
		state.notes[k] = cloneNote(v)
	}
	state.rebuildIndexes()
	return state
}

// rebuildIndexes derives every secondary index from the primary maps.
func (s *memoryState) rebuildIndexes() {
	s.signalsByAccount = make(map[string][]string)
	s.actionsByAccount = make(map[string][]string)
	s.signalsByAction = make(map[string][]string)
	s.interactionsBySignal = make(map[string][]string)
	s.interactionsByAction = make(map[string][]string)
	s.commentsBySignal = make(map[string][]string)
	s.commentsByAccount = make(map[string][]string)
	s.plansByAccount = make(map[string][]string)
	s.plansByAction = make(map[string][]string)
	s.notesByAccount = make(map[string][]string)
	s.pinnedNotes = make(map[string]struct{})

	for id, signal := range s.signals {
		addIndexEntry(s.signalsByAccount, signal.AccountID, id)
		if signal.ActionID != nil {
			addIndexEntry(s.signalsByAction, *signal.ActionID, id)
		}
	}
	for id, action := range s.actions {
		addIndexEntry(s.actionsByAccount, action.AccountID, id)
	}
	for id, interaction := range s.interactions {
		if interaction.SignalID != nil {
			addIndexEntry(s.interactionsBySignal, *interaction.SignalID, id)
		}
		if interaction.ActionID != nil {
			addIndexEntry(s.interactionsByAction, *interaction.ActionID, id)
		}
	}
	for id, comment := range s.comments {
		if comment.SignalID != nil {
			addIndexEntry(s.commentsBySignal, *comment.SignalID, id)
		}
		if comment.AccountID != nil {
			addIndexEntry(s.commentsByAccount, *comment.AccountID, id)
		}
	}
	for id, plan := range s.plans {
		addIndexEntry(s.plansByAccount, plan.AccountID, id)
		if plan.ActionID != nil {
			addIndexEntry(s.plansByAction, *plan.ActionID, id)
		}
	}
	for id, note := range s.notes {
		addIndexEntry(s.notesByAccount, note.AccountID, id)
		if note.Pinned && note.Live() {
			s.pinnedNotes[id] = struct{}{}
		}
	}
}

func addIndexEntry(index map[string][]string, key, id string) {
	if key == "" || id == "" {
		return
	}
	for _, existing := range index[key] {
		if existing == id {
			return
		}
	}
	index[key] = append(index[key], id)
}

func removeIndexEntry(index map[string][]string, key, id string) {
	ids, ok := index[key]
	if !ok {
		return
	}
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	if len(out) == 0 {
		delete(index, key)
		return
	}
	index[key] = out
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.accounts {
		cloned.accounts[k] = cloneAccount(v)
	}
	for k, v := range s.signals {
		cloned.signals[k] = cloneSignal(v)
	}
	for k, v := range s.actions {
		cloned.actions[k] = cloneAction(v)
	}
	for k, v := range s.interactions {
		cloned.interactions[k] = cloneInteraction(v)
	}
	for k, v := range s.comments {
		cloned.comments[k] = cloneComment(v)
	}
	for k, v := range s.plans {
		cloned.plans[k] = clonePlan(v)
	}
	for k, v := range s.notes {
		cloned.notes[k] = cloneNote(v)
	}
	for k, v := range s.signalsByAccount {
		cloned.signalsByAccount[k] = append([]string(nil), v...)
	}
	for k, v := range s.actionsByAccount {
		cloned.actionsByAccount[k] = append([]string(nil), v...)
	}
	for k, v := range s.signalsByAction {
		cloned.signalsByAction[k] = append([]string(nil), v...)
	}
	for k, v := range s.interactionsBySignal {
		cloned.interactionsBySignal[k] = append([]string(nil), v...)
	}
	for k, v := range s.interactionsByAction {
		cloned.interactionsByAction[k] = append([]string(nil), v...)
	}
	for k, v := range s.commentsBySignal {
		cloned.commentsBySignal[k] = append([]string(nil), v...)
	}
	for k, v := range s.commentsByAccount {
		cloned.commentsByAccount[k] = append([]string(nil), v...)
	}
	for k, v := range s.plansByAccount {
		cloned.plansByAccount[k] = append([]string(nil), v...)
	}
	for k, v := range s.plansByAction {
		cloned.plansByAction[k] = append([]string(nil), v...)
	}
	for k, v := range s.notesByAccount {
		cloned.notesByAccount[k] = append([]string(nil), v...)
	}
	for k := range s.pinnedNotes {
		cloned.pinnedNotes[k] = struct{}{}
	}
	return cloned
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneAccount(a Account) Account {
	cp := a
	cp.NextRenewal = cloneTimePtr(a.NextRenewal)
	return cp
}

func cloneSignal(s Signal) Signal {
	cp := s
	cp.ActionID = cloneStringPtr(s.ActionID)
	return cp
}

func cloneAction(a RecommendedAction) RecommendedAction {
	cp := a
	cp.Plays = append([]domain.Play(nil), a.Plays...)
	return cp
}

func cloneInteraction(i Interaction) Interaction {
	cp := i
	cp.SignalID = cloneStringPtr(i.SignalID)
	cp.ActionID = cloneStringPtr(i.ActionID)
	return cp
}

func cloneComment(c Comment) Comment {
	cp := c
	cp.SignalID = cloneStringPtr(c.SignalID)
	cp.AccountID = cloneStringPtr(c.AccountID)
	cp.EditedAt = cloneTimePtr(c.EditedAt)
	return cp
}

func clonePlan(p ActionPlan) ActionPlan {
	cp := p
	cp.ActionID = cloneStringPtr(p.ActionID)
	cp.Plays = append([]domain.Play(nil), p.Plays...)
	cp.DueDate = cloneTimePtr(p.DueDate)
	return cp
}

func cloneNote(n Note) Note {
	cp := n
	cp.DeletedAt = cloneTimePtr(n.DeletedAt)
	return cp
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot, dropping
// rows that violate referential integrity and rebuilding all indexes.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider, primarily for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules are evaluated against the mutated copy; blocking violations abort the
// commit and the original state stays untouched.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}
