package ingest

import (
	"strings"
	"testing"

	"signalsai/pkg/domain"
)

const feedHeader = "signal_id,account_id,account_name,name,category,priority,confidence,summary,signal_rationale,signal_polarity,action_id,recommended_action,play_1,Play 1 Name,Play 1 Description,play_2,Play 2 Name,Call Scheduled Date,at_risk_cat,Account GPA Numeric,AE,CSM\n"

const validAccount = "001300000ACC123"

func TestLoadNormalizesFeed(t *testing.T) {
	feed := feedHeader +
		`s-1,` + validAccount + `,Acme Analytics,Churn risk,Business,High,0.9,"Renewal at risk, usage down",usage dropped,Risk,A1,Schedule EBR,p-1,Exec briefing,Brief the exec sponsor,p-2,Usage review,2026-03-10,At Risk,2.1,Jo Smith,Lee Wu` + "\n" +
		`s-2,` + validAccount + `,Acme Analytics,Upsell,Use Case,Medium,0.7,Expansion interest,new team onboarding,Opportunity,,,,,,,,2026-03-12,At Risk,2.1,Jo Smith,Lee Wu` + "\n"

	dataset, report, err := NewLoader().Load(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(dataset.Accounts) != 1 || len(dataset.Signals) != 2 || len(dataset.Actions) != 1 {
		t.Fatalf("normalized counts = %d/%d/%d", len(dataset.Accounts), len(dataset.Signals), len(dataset.Actions))
	}
	if report.RowsAccepted != 2 || report.RowsRejected != 0 {
		t.Fatalf("report = %+v", report)
	}

	account := dataset.Accounts[0]
	if account.ID != validAccount || account.Name != "Acme Analytics" || account.Health != domain.HealthAtRisk {
		t.Fatalf("account = %+v", account)
	}

	action := dataset.Actions[0]
	if action.ID != "A1" || len(action.Plays) != 2 {
		t.Fatalf("action = %+v", action)
	}
	if action.Plays[0].Name != "Exec briefing" || action.Plays[0].Description != "Brief the exec sponsor" {
		t.Fatalf("play mapping wrong: %+v", action.Plays[0])
	}

	risk := dataset.Signals[0]
	if risk.Polarity != domain.PolarityRisk || risk.Priority != domain.PriorityHigh || risk.ActionID == nil || *risk.ActionID != "A1" {
		t.Fatalf("risk signal = %+v", risk)
	}
	// Opportunity label variant collapses to the canonical polarity.
	if dataset.Signals[1].Polarity != domain.PolarityOpportunity {
		t.Fatalf("polarity = %q", dataset.Signals[1].Polarity)
	}
	if dataset.Signals[1].ActionID != nil {
		t.Fatal("opportunity signal should carry no action")
	}
}

func TestLoadDeduplicatesByNaturalKey(t *testing.T) {
	line := `s-1,` + validAccount + `,Acme,Churn risk,Business,High,0.9,x,y,Risk,,,,,,,,2026-03-10,At Risk,2.1,,` + "\n"
	dataset, report, err := NewLoader().Load(strings.NewReader(feedHeader + line + line))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(dataset.Signals) != 1 {
		t.Fatalf("expected dedup to one signal, got %d", len(dataset.Signals))
	}
	if report.DuplicateRows != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestLoadDropsInvalidAccountIDs(t *testing.T) {
	feed := feedHeader +
		`s-1,Teaching assistance offering,Bad Row,Sig,Business,High,0.9,x,y,Risk,,,,,,,,2026-03-10,,,,` + "\n" +
		`s-2,` + validAccount + `,Acme,Sig,Business,High,0.9,x,y,Risk,,,,,,,,2026-03-10,,,,` + "\n"

	dataset, report, err := NewLoader().Load(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(dataset.Accounts) != 1 || dataset.Accounts[0].ID != validAccount {
		t.Fatalf("accounts = %+v", dataset.Accounts)
	}
	if report.RowsRejected != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestLoadCorrectsProseAccountNames(t *testing.T) {
	feed := feedHeader +
		`s-1,0013000000DXZ1fAAH,Build and develop enablement offering,Sig,Business,High,0.9,x,y,Risk,,,,,,,,2026-03-10,,,,` + "\n"

	dataset, report, err := NewLoader().Load(strings.NewReader(feed))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	account := dataset.Accounts[0]
	if account.Name != "Falvey Insurance Group Ltd" || !account.NameCorrected {
		t.Fatalf("account = %+v", account)
	}
	if report.CorrectedNames != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestLoadFatalOnEmptyInput(t *testing.T) {
	if _, _, err := NewLoader().Load(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty feed")
	}
	if _, _, err := NewLoader().Load(strings.NewReader("name,priority\nx,High\n")); err == nil {
		t.Fatal("expected error for missing account_id header")
	}
}

func TestSalesforceIDValidator(t *testing.T) {
	v := SalesforceIDValidator{}
	cases := []struct {
		id string
		ok bool
	}{
		{"0013000000DXZ1fAAH", true},
		{"001300000ACC123", true},
		{"", false},
		{"short", false},
		{"Teaching assistance for the team", false},
		{"0013000000DXZ1fAAH0013000000DXZ1fAAH", false},
		{"0013000000DXZ1fAA!", false},
	}
	for _, tc := range cases {
		err := v.Validate(tc.id)
		if tc.ok && err != nil {
			t.Errorf("Validate(%q) = %v, want ok", tc.id, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("Validate(%q) accepted", tc.id)
		}
	}
}
