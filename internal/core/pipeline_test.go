package core

import (
	"context"
	"strings"
	"testing"

	"signalsai/internal/ingest"
)

// TestFeedToPlanPipeline drives the full path: raw CSV through the loader,
// the normalized dataset through Dispatch, then plan creation and duplicate
// rejection against the ingested action.
func TestFeedToPlanPipeline(t *testing.T) {
	const account = "001300000ACC123"
	feed := "signal_id,account_id,account_name,name,category,priority,confidence,summary,signal_rationale,signal_polarity,action_id,recommended_action,play_1,Play 1 Name,Play 1 Description,play_2,Play 2 Name,Call Scheduled Date,at_risk_cat,Account GPA Numeric,AE,CSM\n" +
		`s-1,` + account + `,Acme Analytics,Churn risk,Business,High,0.9,"Renewal at risk, usage down",usage dropped,Risk,A1,Schedule EBR,p-1,Exec briefing,Brief the exec sponsor,p-2,Usage review,2026-03-10,At Risk,2.1,Jo Smith,Lee Wu` + "\n" +
		`s-2,` + account + `,Acme Analytics,Upsell,Use Case,Medium,0.7,Expansion interest,new team onboarding,Opportunity,,,,,,,,2026-03-12,At Risk,2.1,Jo Smith,Lee Wu` + "\n"

	dataset, report, err := ingest.NewLoader().Load(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("load feed: %v", err)
	}
	if report.RowsAccepted != 2 {
		t.Fatalf("rows accepted = %d", report.RowsAccepted)
	}

	svc := newTestService(t, WithGateway(&fakeGateway{nextID: "plan-srv-1"}))
	ctx := context.Background()
	if _, err := svc.Dispatch(ctx, LoadDataset{
		Accounts: dataset.Accounts,
		Signals:  dataset.Signals,
		Actions:  dataset.Actions,
	}); err != nil {
		t.Fatalf("install dataset: %v", err)
	}

	store := svc.Store()
	if got := len(store.ListAccounts()); got != 1 {
		t.Fatalf("accounts = %d", got)
	}
	if got := len(store.ListSignals()); got != 2 {
		t.Fatalf("signals = %d", got)
	}
	actions := store.ListRecommendedActions()
	if len(actions) != 1 || len(actions[0].Plays) != 2 {
		t.Fatalf("actions = %+v", actions)
	}

	row, err := svc.AccountByID(ctx, account)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	// The opportunity signal carries no action id, so only the risk action
	// counts toward the recommendation totals.
	if row.RiskActions != 1 || row.GrowthActions != 0 {
		t.Fatalf("action counts = risk %d growth %d", row.RiskActions, row.GrowthActions)
	}

	if _, err := svc.Dispatch(ctx, CreateActionPlan{AccountID: account, ActionID: "A1", Title: "EBR prep"}); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	plans, err := svc.ActionPlans(ctx, account)
	if err != nil {
		t.Fatalf("plans: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("expected one plan for account, got %d", len(plans))
	}

	if _, err := svc.Dispatch(ctx, CreateActionPlan{AccountID: account, ActionID: "A1", Title: "second"}); err == nil {
		t.Fatal("expected duplicate plan rejection")
	}
	if got := len(store.ListActionPlans()); got != 1 {
		t.Fatalf("plans after duplicate attempt = %d", got)
	}
}
