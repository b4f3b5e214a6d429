package fs

import (
	"context"
	"io"
	"strings"
	"testing"

	"signalsai/internal/blob"
)

func TestRoundTripWithSidecar(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	_, err = s.Put(ctx, "backups/2026-03-01.json", strings.NewReader(`{}`), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"source": "shutdown"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	object, rc, err := s.Get(ctx, "backups/2026-03-01.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "{}" {
		t.Fatalf("content = %q", data)
	}
	if object.ContentType != "application/json" || object.Metadata["source"] != "shutdown" {
		t.Fatalf("sidecar not applied: %+v", object)
	}
}

func TestListSkipsSidecars(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	for _, key := range []string{"backups/a.json", "backups/b.json"} {
		if _, err := s.Put(ctx, key, strings.NewReader("x"), blob.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	out, err := s.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 objects, got %+v", out)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Put(context.Background(), "../outside", strings.NewReader("x"), blob.PutOptions{}); err == nil {
		t.Fatal("expected invalid key error")
	}
}

func TestDeleteMissingReturnsFalse(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ok, err := s.Delete(context.Background(), "absent")
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}
