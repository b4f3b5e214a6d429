package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"signalsai/pkg/domain"
)

// PersistenceGateway writes optimistic entities to the vendor AppDB API. The
// degraded flag reports that the write landed in the local fallback
// collection instead of the remote store. Any error is recoverable: the
// dispatcher rolls the optimistic mutation back and notifies.
type PersistenceGateway interface {
	CreateDocument(ctx context.Context, collection string, doc any) (id string, degraded bool, err error)
	UpdateDocument(ctx context.Context, collection, id string, doc any) (degraded bool, err error)
	DeleteDocument(ctx context.Context, collection, id string) (degraded bool, err error)
}

// Notifier receives the single human-readable message produced for every
// failed optimistic operation. Display is the caller's concern.
type Notifier interface {
	Notify(message string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(string) {}

// MetricsRecorder observes dispatched action outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, action string, success bool, duration time.Duration)
	ObserveRollback(action string)
}

// ErrNotFound is returned when a dispatched action references a missing target.
type ErrNotFound struct {
	Entity domain.EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Service owns the store and is the single mutation path: all writes go
// through Dispatch. Dispatch serializes, so no two mutations interleave and
// readers never observe a half-updated index.
type Service struct {
	mu       sync.Mutex
	store    PersistentStore
	gateway  PersistenceGateway
	journal  *operationJournal
	notifier Notifier
	metrics  MetricsRecorder
	logger   *slog.Logger
	userID   string
	userName string
	timeout  time.Duration
	nowFn    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithGateway wires the AppDB persistence gateway.
func WithGateway(g PersistenceGateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithNotifier wires the user-visible error notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics wires the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger wires structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithUser sets the identity stamped onto interactions, comments, and plans.
func WithUser(id, name string) Option {
	return func(s *Service) {
		s.userID = id
		s.userName = name
	}
}

// WithGatewayTimeout bounds each persistence call.
func WithGatewayTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		journal:  newOperationJournal(),
		notifier: NopNotifier{},
		logger:   slog.Default(),
		userID:   "anonymous",
		userName: "Anonymous",
		timeout:  10 * time.Second,
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Dispatch applies one action. It runs to completion before the next action
// is processed; persistence results re-enter the same rollback machinery
// rather than mutating state out of band.
func (s *Service) Dispatch(ctx context.Context, action StoreAction) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	name := actionName(action)
	outcome, err := s.dispatch(ctx, action)
	if s.metrics != nil {
		s.metrics.Observe(ctx, name, err == nil && !outcome.RolledBack, time.Since(started))
		if outcome.RolledBack {
			s.metrics.ObserveRollback(name)
		}
	}
	if err != nil {
		s.logger.Error("dispatch failed", "action", name, "error", err)
	} else {
		s.logger.Debug("dispatched", "action", name, "operation", outcome.OperationID, "rolled_back", outcome.RolledBack)
	}
	return outcome, err
}

func (s *Service) dispatch(ctx context.Context, action StoreAction) (Outcome, error) {
	switch a := action.(type) {
	case LoadDataset:
		return s.loadDataset(ctx, a)
	case AddComment:
		return s.addComment(ctx, a)
	case EditComment:
		return s.editComment(ctx, a)
	case RemoveComment:
		return s.removeComment(ctx, a)
	case ApplySignalFeedback:
		return s.applySignalFeedback(ctx, a)
	case ApplyActionFeedback:
		return s.applyActionFeedback(ctx, a)
	case MarkSignalViewed:
		return s.markSignalViewed(ctx, a)
	case RemoveSignal:
		return s.removeSignal(ctx, a)
	case CreateActionPlan:
		return s.createActionPlan(ctx, a)
	case UpdateActionPlan:
		return s.updateActionPlan(ctx, a)
	case DeleteActionPlan:
		return s.deleteActionPlan(ctx, a)
	case AddNote:
		return s.addNote(ctx, a)
	case EditNote:
		return s.editNote(ctx, a)
	case RemoveNote:
		return s.removeNote(ctx, a)
	case ToggleNotePin:
		return s.toggleNotePin(ctx, a)
	default:
		return Outcome{}, fmt.Errorf("unknown action %T", action)
	}
}

func actionName(action StoreAction) string {
	switch action.(type) {
	case LoadDataset:
		return "load_dataset"
	case AddComment:
		return "add_comment"
	case EditComment:
		return "edit_comment"
	case RemoveComment:
		return "remove_comment"
	case ApplySignalFeedback:
		return "apply_signal_feedback"
	case ApplyActionFeedback:
		return "apply_action_feedback"
	case MarkSignalViewed:
		return "mark_signal_viewed"
	case RemoveSignal:
		return "remove_signal"
	case CreateActionPlan:
		return "create_action_plan"
	case UpdateActionPlan:
		return "update_action_plan"
	case DeleteActionPlan:
		return "delete_action_plan"
	case AddNote:
		return "add_note"
	case EditNote:
		return "edit_note"
	case RemoveNote:
		return "remove_note"
	case ToggleNotePin:
		return "toggle_note_pin"
	default:
		return "unknown"
	}
}

func orNewOperationID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// gatewayContext derives a bounded context for one persistence call.
func (s *Service) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// ActiveOperations returns the operation ids with uncommitted snapshots,
// for debugging.
func (s *Service) ActiveOperations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.journal.activeIDs()
}
