// Package backup writes point-in-time store snapshots to blob storage and
// restores them.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signalsai/internal/blob"
	"signalsai/internal/infra/persistence/memory"
)

// Prefix is the key prefix for snapshot objects.
const Prefix = "backups/"

// StateExporter is implemented by stores that can emit a full snapshot. The
// memory store and both durable wrappers qualify.
type StateExporter interface {
	ExportState() memory.Snapshot
}

// StateImporter is implemented by stores that can replace their state.
type StateImporter interface {
	ImportState(memory.Snapshot)
}

// Manager couples a snapshot source with a blob destination.
type Manager struct {
	store blob.Store
	nowFn func() time.Time
}

// NewManager builds a backup manager over the given blob store.
func NewManager(store blob.Store) *Manager {
	return &Manager{store: store, nowFn: time.Now}
}

// SetNowFunc overrides the clock, for tests.
func (m *Manager) SetNowFunc(fn func() time.Time) { m.nowFn = fn }

// Create writes one snapshot under a timestamped key and returns the stored
// object.
func (m *Manager) Create(ctx context.Context, source StateExporter) (blob.Object, error) {
	snapshot := source.ExportState()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return blob.Object{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := Prefix + m.nowFn().UTC().Format("20060102T150405Z") + ".json"
	object, err := m.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"kind": "snapshot"},
	})
	if err != nil {
		return blob.Object{}, fmt.Errorf("store snapshot: %w", err)
	}
	return object, nil
}

// List returns stored snapshots, oldest first.
func (m *Manager) List(ctx context.Context) ([]blob.Object, error) {
	return m.store.List(ctx, Prefix)
}

// Open decodes one stored snapshot.
func (m *Manager) Open(ctx context.Context, key string) (memory.Snapshot, error) {
	_, rc, err := m.store.Get(ctx, key)
	if err != nil {
		return memory.Snapshot{}, err
	}
	defer func() { _ = rc.Close() }()
	var snapshot memory.Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return memory.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snapshot, nil
}

// Restore loads one snapshot into the target store.
func (m *Manager) Restore(ctx context.Context, key string, target StateImporter) error {
	snapshot, err := m.Open(ctx, key)
	if err != nil {
		return err
	}
	target.ImportState(snapshot)
	return nil
}
