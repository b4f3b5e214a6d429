package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"signalsai/internal/infra/persistence/memory"
	"signalsai/pkg/domain"
)

// fakeGateway is an in-test PersistenceGateway with scriptable failures.
type fakeGateway struct {
	nextID     string
	failCreate bool
	failUpdate bool
	failDelete bool
	degraded   bool
	creates    int
	updates    int
	deletes    []string
}

func (g *fakeGateway) CreateDocument(_ context.Context, _ string, _ any) (string, bool, error) {
	if g.failCreate {
		return "", false, errors.New("gateway unavailable")
	}
	g.creates++
	return g.nextID, g.degraded, nil
}

func (g *fakeGateway) UpdateDocument(_ context.Context, _ string, _ string, _ any) (bool, error) {
	if g.failUpdate {
		return false, errors.New("gateway unavailable")
	}
	g.updates++
	return g.degraded, nil
}

func (g *fakeGateway) DeleteDocument(_ context.Context, _ string, id string) (bool, error) {
	if g.failDelete {
		return false, errors.New("gateway unavailable")
	}
	g.deletes = append(g.deletes, id)
	return g.degraded, nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(message string) {
	n.messages = append(n.messages, message)
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	engine := domain.NewRulesEngine()
	RegisterDefaultRules(engine)
	return memory.NewStore(engine)
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewService(newTestStore(t), append([]Option{WithUser("u-1", "Pat Doe")}, opts...)...)
}

func seedDataset(t *testing.T, svc *Service) {
	t.Helper()
	callDate := func(day int) time.Time {
		return time.Date(2026, time.March, day, 0, 0, 0, 0, time.UTC)
	}
	actionID := "act-1"
	_, err := svc.Dispatch(context.Background(), LoadDataset{
		Accounts: []Account{
			{Base: domain.Base{ID: "acc-1"}, Name: "Acme Analytics", Health: domain.HealthAtRisk, GPAScore: 2.1},
			{Base: domain.Base{ID: "acc-2"}, Name: "Borealis Retail", Health: domain.HealthHealthy, GPAScore: 3.6},
		},
		Actions: []RecommendedAction{
			{Base: domain.Base{ID: actionID}, AccountID: "acc-1", Recommended: "Schedule executive business review", Priority: domain.PriorityHigh},
		},
		Signals: []Signal{
			{Base: domain.Base{ID: "sig-high"}, AccountID: "acc-1", Priority: domain.PriorityHigh, Polarity: domain.PolarityRisk, ActionID: &actionID, CallDate: callDate(10)},
			{Base: domain.Base{ID: "sig-med"}, AccountID: "acc-1", Priority: domain.PriorityMedium, Polarity: domain.PolarityOpportunity, CallDate: callDate(12)},
			{Base: domain.Base{ID: "sig-low"}, AccountID: "acc-2", Priority: domain.PriorityLow, Polarity: domain.PolarityEnrichment, CallDate: callDate(14)},
		},
	})
	if err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
}

func TestAddCommentAdoptsGatewayID(t *testing.T) {
	gw := &fakeGateway{nextID: "srv-42"}
	svc := newTestService(t, WithGateway(gw))
	seedDataset(t, svc)

	outcome, err := svc.Dispatch(context.Background(), AddComment{SignalID: "sig-high", Text: "following up"})
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if outcome.RolledBack {
		t.Fatal("unexpected rollback")
	}
	comment := outcome.Entity.(Comment)
	if comment.ID != "srv-42" {
		t.Fatalf("expected gateway id, got %q", comment.ID)
	}
	if comment.Author != "Pat Doe" {
		t.Fatalf("author = %q", comment.Author)
	}
	comments, err := svc.Comments(context.Background(), "sig-high")
	if err != nil {
		t.Fatalf("comments: %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "srv-42" {
		t.Fatalf("expected one comment under gateway id, got %+v", comments)
	}
}

func TestAddCommentRollsBackOnGatewayFailure(t *testing.T) {
	gw := &fakeGateway{failCreate: true}
	notifier := &recordingNotifier{}
	svc := newTestService(t, WithGateway(gw), WithNotifier(notifier))
	seedDataset(t, svc)

	outcome, err := svc.Dispatch(context.Background(), AddComment{SignalID: "sig-high", Text: "doomed"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !outcome.RolledBack {
		t.Fatal("expected rollback")
	}
	if len(notifier.messages) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.messages))
	}
	if got := svc.Store().ListComments(); len(got) != 0 {
		t.Fatalf("expected comment rolled back, found %d", len(got))
	}
	comments, _ := svc.Comments(context.Background(), "sig-high")
	if len(comments) != 0 {
		t.Fatalf("index still lists rolled-back comment: %+v", comments)
	}
	if active := svc.ActiveOperations(); len(active) != 0 {
		t.Fatalf("journal not drained: %v", active)
	}
}

func TestSignalFeedbackToggleAndExclusivity(t *testing.T) {
	svc := newTestService(t, WithGateway(&fakeGateway{}))
	seedDataset(t, svc)
	ctx := context.Background()

	if _, err := svc.Dispatch(ctx, ApplySignalFeedback{SignalID: "sig-high", Type: domain.InteractionLike}); err != nil {
		t.Fatalf("like: %v", err)
	}
	row, err := svc.SignalByID(ctx, "sig-high")
	if err != nil {
		t.Fatalf("signal: %v", err)
	}
	if row.Likes != 1 || row.CurrentUserFeedback != domain.InteractionLike {
		t.Fatalf("expected one like, got %+v", row)
	}

	// Opposing feedback replaces the like.
	if _, err := svc.Dispatch(ctx, ApplySignalFeedback{SignalID: "sig-high", Type: domain.InteractionNotAccurate}); err != nil {
		t.Fatalf("not-accurate: %v", err)
	}
	row, _ = svc.SignalByID(ctx, "sig-high")
	if row.Likes != 0 || row.NotAccurate != 1 {
		t.Fatalf("expected replacement, got likes=%d notAccurate=%d", row.Likes, row.NotAccurate)
	}

	// Re-applying the active type toggles it off.
	if _, err := svc.Dispatch(ctx, ApplySignalFeedback{SignalID: "sig-high", Type: domain.InteractionNotAccurate}); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	row, _ = svc.SignalByID(ctx, "sig-high")
	if row.Likes != 0 || row.NotAccurate != 0 || row.CurrentUserFeedback != "" {
		t.Fatalf("expected no feedback, got %+v", row)
	}
}

func TestActionFeedbackValidatesType(t *testing.T) {
	svc := newTestService(t)
	seedDataset(t, svc)
	if _, err := svc.Dispatch(context.Background(), ApplyActionFeedback{ActionID: "act-1", Type: domain.InteractionLike}); err == nil {
		t.Fatal("expected invalid feedback type error")
	}
	if _, err := svc.Dispatch(context.Background(), ApplyActionFeedback{ActionID: "act-1", Type: domain.InteractionUseful}); err != nil {
		t.Fatalf("useful: %v", err)
	}
}

func TestMarkSignalViewedIsMonotonic(t *testing.T) {
	svc := newTestService(t, WithGateway(&fakeGateway{}))
	seedDataset(t, svc)
	ctx := context.Background()

	first, err := svc.Dispatch(ctx, MarkSignalViewed{SignalID: "sig-high"})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if first.NoOp {
		t.Fatal("first view should record")
	}
	second, err := svc.Dispatch(ctx, MarkSignalViewed{SignalID: "sig-high"})
	if err != nil {
		t.Fatalf("repeat view: %v", err)
	}
	if !second.NoOp {
		t.Fatal("repeat view should be a no-op")
	}
	if got := len(svc.Store().ListInteractions()); got != 1 {
		t.Fatalf("expected one interaction, got %d", got)
	}
}

func TestFeedOrdering(t *testing.T) {
	svc := newTestService(t)
	seedDataset(t, svc)
	ctx := context.Background()

	if _, err := svc.Dispatch(ctx, MarkSignalViewed{SignalID: "sig-high"}); err != nil {
		t.Fatalf("view: %v", err)
	}
	feed, err := svc.Signals(ctx)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	got := make([]string, 0, len(feed))
	for _, row := range feed {
		got = append(got, row.ID)
	}
	// Unviewed first by priority, viewed high-priority signal sinks last.
	want := []string{"sig-med", "sig-low", "sig-high"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("feed order = %v, want %v", got, want)
	}
}

func TestPortfolioOrdering(t *testing.T) {
	svc := newTestService(t)
	seedDataset(t, svc)

	rows, err := svc.Accounts(context.Background())
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected two accounts, got %d", len(rows))
	}
	// acc-1 carries the risk signal, acc-2 only enrichment.
	if rows[0].ID != "acc-1" || rows[1].ID != "acc-2" {
		t.Fatalf("portfolio order = %s, %s", rows[0].ID, rows[1].ID)
	}
	if rows[0].RiskActions != 1 {
		t.Fatalf("risk action count = %d", rows[0].RiskActions)
	}
}

func TestCreateActionPlanDuplicateRejected(t *testing.T) {
	svc := newTestService(t, WithGateway(&fakeGateway{nextID: "plan-srv-1"}))
	seedDataset(t, svc)
	ctx := context.Background()

	outcome, err := svc.Dispatch(ctx, CreateActionPlan{
		AccountID: "acc-1", ActionID: "act-1", Title: "EBR prep",
		Plays: []Play{{ID: "p1", Name: "Schedule call"}},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	plan := outcome.Entity.(ActionPlan)
	if plan.ID != "plan-srv-1" || plan.Status != domain.PlanStatusPending {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if _, err := svc.Dispatch(ctx, CreateActionPlan{AccountID: "acc-1", ActionID: "act-1", Title: "duplicate"}); err == nil {
		t.Fatal("expected duplicate plan rejection")
	}
	if got := len(svc.Store().ListActionPlans()); got != 1 {
		t.Fatalf("expected one plan, got %d", got)
	}
}

func TestCreateActionPlanPlayBudget(t *testing.T) {
	svc := newTestService(t)
	seedDataset(t, svc)
	plays := []Play{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}
	if _, err := svc.Dispatch(context.Background(), CreateActionPlan{AccountID: "acc-1", Title: "over budget", Plays: plays}); err == nil {
		t.Fatal("expected play budget rejection")
	}
}

func TestUpdateActionPlanByLookupKey(t *testing.T) {
	svc := newTestService(t, WithGateway(&fakeGateway{}))
	seedDataset(t, svc)
	ctx := context.Background()

	if _, err := svc.Dispatch(ctx, CreateActionPlan{AccountID: "acc-1", LookupKey: "acc-1:act-1", Title: "draft"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	status := domain.PlanStatusInProgress
	outcome, err := svc.Dispatch(ctx, UpdateActionPlan{LookupKey: "acc-1:act-1", Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	plan := outcome.Entity.(ActionPlan)
	if plan.Status != domain.PlanStatusInProgress || plan.UpdatedBy != "u-1" {
		t.Fatalf("unexpected plan %+v", plan)
	}

	if _, err := svc.Dispatch(ctx, DeleteActionPlan{LookupKey: "acc-1:act-1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := len(svc.Store().ListActionPlans()); got != 0 {
		t.Fatalf("expected plan removed, got %d", got)
	}
}

func TestNoteLifecycle(t *testing.T) {
	svc := newTestService(t, WithGateway(&fakeGateway{}))
	seedDataset(t, svc)
	ctx := context.Background()

	outcome, err := svc.Dispatch(ctx, AddNote{AccountID: "acc-1", Text: "renewal call scheduled", Pinned: true})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	note := outcome.Entity.(Note)

	pinned, err := svc.PinnedNotes(ctx)
	if err != nil {
		t.Fatalf("pinned: %v", err)
	}
	if len(pinned) != 1 || pinned[0].ID != note.ID {
		t.Fatalf("expected pinned note, got %+v", pinned)
	}

	if _, err := svc.Dispatch(ctx, ToggleNotePin{NoteID: note.ID}); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if pinned, _ = svc.PinnedNotes(ctx); len(pinned) != 0 {
		t.Fatalf("expected no pinned notes, got %+v", pinned)
	}

	if _, err := svc.Dispatch(ctx, RemoveNote{NoteID: note.ID}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	live, _ := svc.NotesByAccount(ctx, "acc-1")
	if len(live) != 0 {
		t.Fatalf("soft-deleted note still listed: %+v", live)
	}
	// Row survives for audit.
	if got := len(svc.Store().ListNotes()); got != 1 {
		t.Fatalf("expected note row retained, got %d", got)
	}
}

func TestLoadDatasetReplacesWorkingSet(t *testing.T) {
	svc := newTestService(t)
	seedDataset(t, svc)
	ctx := context.Background()

	// Reload without sig-med and with refreshed metrics but a blank name.
	actionID := "act-1"
	_, err := svc.Dispatch(ctx, LoadDataset{
		Accounts: []Account{{Base: domain.Base{ID: "acc-1"}, GPAScore: 2.8}},
		Actions: []RecommendedAction{
			{Base: domain.Base{ID: actionID}, AccountID: "acc-1", Recommended: "Schedule executive business review"},
		},
		Signals: []Signal{
			{Base: domain.Base{ID: "sig-high"}, AccountID: "acc-1", Priority: domain.PriorityHigh, Polarity: domain.PolarityRisk, ActionID: &actionID, CallDate: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)},
		},
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if _, ok := svc.Store().GetSignal("sig-med"); ok {
		t.Fatal("expected sig-med pruned")
	}
	account, _ := svc.Store().GetAccount("acc-1")
	if account.Name != "Acme Analytics" {
		t.Fatalf("blank reload overwrote name: %q", account.Name)
	}
	if account.GPAScore != 2.8 {
		t.Fatalf("metrics not refreshed: %v", account.GPAScore)
	}
}

func TestRemoveSignalKeepsCommentLog(t *testing.T) {
	svc := newTestService(t, WithGateway(&fakeGateway{nextID: "c-1"}))
	seedDataset(t, svc)
	ctx := context.Background()

	if _, err := svc.Dispatch(ctx, AddComment{SignalID: "sig-low", Text: "context"}); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if _, err := svc.Dispatch(ctx, RemoveSignal{SignalID: "sig-low"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := svc.Store().GetSignal("sig-low"); ok {
		t.Fatal("signal not removed")
	}
	if got := len(svc.Store().ListComments()); got != 1 {
		t.Fatalf("comment log lost rows: %d", got)
	}
}

func TestEditCommentMarksEdited(t *testing.T) {
	svc := newTestService(t, WithGateway(&fakeGateway{nextID: "c-9"}))
	seedDataset(t, svc)
	ctx := context.Background()

	created, err := svc.Dispatch(ctx, AddComment{AccountID: "acc-1", Text: "first draft"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id := created.Entity.(Comment).ID
	outcome, err := svc.Dispatch(ctx, EditComment{CommentID: id, Text: "final"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	comment := outcome.Entity.(Comment)
	if !comment.Edited || comment.EditedAt == nil || comment.Text != "final" {
		t.Fatalf("unexpected comment %+v", comment)
	}
}

func TestFeedbackRollbackRestoresPriorState(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(t, WithGateway(gw))
	seedDataset(t, svc)
	ctx := context.Background()

	if _, err := svc.Dispatch(ctx, ApplySignalFeedback{SignalID: "sig-high", Type: domain.InteractionLike}); err != nil {
		t.Fatalf("like: %v", err)
	}

	// The replacement write fails at the gateway, so the like must survive.
	gw.failCreate = true
	outcome, err := svc.Dispatch(ctx, ApplySignalFeedback{SignalID: "sig-high", Type: domain.InteractionNotAccurate})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !outcome.RolledBack {
		t.Fatal("expected rollback")
	}
	row, _ := svc.SignalByID(ctx, "sig-high")
	if row.Likes != 1 || row.NotAccurate != 0 {
		t.Fatalf("rollback did not restore like: %+v", row)
	}
}

func TestDegradedFlagPropagates(t *testing.T) {
	svc := newTestService(t, WithGateway(&fakeGateway{degraded: true, nextID: "c-2"}))
	seedDataset(t, svc)

	outcome, err := svc.Dispatch(context.Background(), AddComment{SignalID: "sig-high", Text: "offline"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !outcome.Degraded {
		t.Fatal("expected degraded outcome")
	}
}

func TestPortfolioSortUsesBestHighPrioritySignalDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	day := func(d int) time.Time {
		return time.Date(2026, time.March, d, 0, 0, 0, 0, time.UTC)
	}
	_, err := svc.Dispatch(ctx, LoadDataset{
		Accounts: []Account{
			{Base: domain.Base{ID: "acc-a"}, Name: "Aster Labs"},
			{Base: domain.Base{ID: "acc-b"}, Name: "Beacon Foods"},
		},
		Signals: []Signal{
			{Base: domain.Base{ID: "sig-a-risk"}, AccountID: "acc-a", Priority: domain.PriorityHigh, Polarity: domain.PolarityRisk, CallDate: day(5)},
			{Base: domain.Base{ID: "sig-a-opp"}, AccountID: "acc-a", Priority: domain.PriorityHigh, Polarity: domain.PolarityOpportunity, CallDate: day(20)},
			{Base: domain.Base{ID: "sig-b-risk"}, AccountID: "acc-b", Priority: domain.PriorityHigh, Polarity: domain.PolarityRisk, CallDate: day(10)},
		},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	rows, err := svc.Accounts(ctx)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	// Both accounts tie at risk rank; the tie-break is the best-ranked
	// signal's date, so acc-b's Mar 10 risk beats acc-a's Mar 5 risk even
	// though acc-a carries a newer opportunity signal.
	if rows[0].ID != "acc-b" || rows[1].ID != "acc-a" {
		t.Fatalf("portfolio order = %s, %s", rows[0].ID, rows[1].ID)
	}
	if rows[1].LatestSignal == nil || !rows[1].LatestSignal.Equal(day(5)) {
		t.Fatalf("acc-a sort date = %v, want %v", rows[1].LatestSignal, day(5))
	}
}

func TestPortfolioMergedRationale(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.Dispatch(ctx, LoadDataset{
		Accounts: []Account{{Base: domain.Base{ID: "acc-1"}, Name: "Acme Analytics"}},
		Signals: []Signal{
			{Base: domain.Base{ID: "sig-1"}, AccountID: "acc-1", Priority: domain.PriorityHigh, Polarity: domain.PolarityRisk, Rationale: "usage dropped"},
			{Base: domain.Base{ID: "sig-2"}, AccountID: "acc-1", Priority: domain.PriorityMedium, Polarity: domain.PolarityOpportunity, Rationale: "usage dropped"},
			{Base: domain.Base{ID: "sig-3"}, AccountID: "acc-1", Priority: domain.PriorityLow, Polarity: domain.PolarityEnrichment, Rationale: "new team onboarding"},
			{Base: domain.Base{ID: "sig-4"}, AccountID: "acc-1", Priority: domain.PriorityLow, Polarity: domain.PolarityEnrichment, Rationale: "  "},
		},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	row, err := svc.AccountByID(ctx, "acc-1")
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	// Distinct rationales only, blank ones skipped, joined in signal order.
	want := "usage dropped\nnew team onboarding"
	if row.MergedRationale != want {
		t.Fatalf("merged rationale = %q, want %q", row.MergedRationale, want)
	}
}
