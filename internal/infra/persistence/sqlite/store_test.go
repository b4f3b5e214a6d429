package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"signalsai/pkg/domain"
)

func TestSQLiteSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signalsai.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	actionID := "act-1"
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateAccount(domain.Account{Base: domain.Base{ID: "acct-1"}, Name: "Acme"}); err != nil {
			return err
		}
		if _, err := tx.CreateRecommendedAction(domain.RecommendedAction{Base: domain.Base{ID: actionID}, AccountID: "acct-1", Plays: []domain.Play{{ID: "p1", Name: "Play One"}}}); err != nil {
			return err
		}
		_, err := tx.CreateSignal(domain.Signal{Base: domain.Base{ID: "sig-1"}, AccountID: "acct-1", ActionID: &actionID, Priority: domain.PriorityHigh, Polarity: domain.PolarityRisk})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	sig, ok := reopened.GetSignal("sig-1")
	if !ok {
		t.Fatal("signal missing after reopen")
	}
	if sig.ActionID == nil || *sig.ActionID != actionID {
		t.Fatalf("signal action reference lost: %+v", sig)
	}
	action, ok := reopened.GetRecommendedAction(actionID)
	if !ok || len(action.Plays) != 1 || action.Plays[0].Name != "Play One" {
		t.Fatalf("action plays lost: %+v", action)
	}

	err = reopened.View(context.Background(), func(v domain.TransactionView) error {
		if got := v.SignalIDsByAction(actionID); len(got) != 1 || got[0] != "sig-1" {
			t.Errorf("signalsByAction after reopen = %v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSQLiteFailedTransactionDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signalsai.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateAccount(domain.Account{Base: domain.Base{ID: "acct-1"}}); err != nil {
			return err
		}
		return context.Canceled
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := store.GetAccount("acct-1"); ok {
		t.Fatal("account should not exist after failed transaction")
	}
}
