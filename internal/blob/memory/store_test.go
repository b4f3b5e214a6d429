package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"signalsai/internal/blob"
)

func TestPutGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	put, err := s.Put(ctx, "backups/a.json", strings.NewReader(`{"ok":true}`), blob.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if put.Size != 11 || put.ContentType != "application/json" {
		t.Fatalf("unexpected object %+v", put)
	}

	got, rc, err := s.Get(ctx, "backups/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != `{"ok":true}` || got.Key != "backups/a.json" {
		t.Fatalf("round trip mismatch: %q %+v", data, got)
	}

	ok, err := s.Delete(ctx, "backups/a.json")
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, _, err := s.Get(ctx, "backups/a.json"); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListPrefixOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, key := range []string{"backups/b.json", "backups/a.json", "reports/x.csv"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), blob.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	out, err := s.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].Key != "backups/a.json" || out[1].Key != "backups/b.json" {
		t.Fatalf("unexpected listing %+v", out)
	}
}

func TestPresignUnsupported(t *testing.T) {
	if _, err := New().PresignURL(context.Background(), "k", 0); !errors.Is(err, blob.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
