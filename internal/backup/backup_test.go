package backup

import (
	"context"
	"testing"
	"time"

	blobmemory "signalsai/internal/blob/memory"
	"signalsai/internal/infra/persistence/memory"
	"signalsai/pkg/domain"
)

func TestCreateListRestore(t *testing.T) {
	ctx := context.Background()
	source := memory.NewStore(domain.NewRulesEngine())
	if _, err := source.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateAccount(domain.Account{Base: domain.Base{ID: "acc-1"}, Name: "Acme"}); err != nil {
			return err
		}
		_, err := tx.CreateSignal(domain.Signal{Base: domain.Base{ID: "sig-1"}, AccountID: "acc-1", Priority: domain.PriorityHigh})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mgr := NewManager(blobmemory.New())
	mgr.SetNowFunc(func() time.Time {
		return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	})

	object, err := mgr.Create(ctx, source)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if object.Key != "backups/20260301T120000Z.json" {
		t.Fatalf("key = %q", object.Key)
	}

	listed, err := mgr.List(ctx)
	if err != nil || len(listed) != 1 {
		t.Fatalf("list: %v %+v", err, listed)
	}

	target := memory.NewStore(domain.NewRulesEngine())
	if err := mgr.Restore(ctx, object.Key, target); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, ok := target.GetSignal("sig-1"); !ok {
		t.Fatal("restored store missing signal")
	}
	// Index rebuild happens on import.
	signals := target.ListSignals()
	if len(signals) != 1 || signals[0].AccountID != "acc-1" {
		t.Fatalf("unexpected signals %+v", signals)
	}
}

func TestOpenMissingKey(t *testing.T) {
	mgr := NewManager(blobmemory.New())
	if _, err := mgr.Open(context.Background(), "backups/none.json"); err == nil {
		t.Fatal("expected error for missing key")
	}
}
