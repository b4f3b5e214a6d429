package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Remote is the document API surface wrapped by the fallback.
type Remote interface {
	CreateDocument(ctx context.Context, collection string, doc any) (string, bool, error)
	UpdateDocument(ctx context.Context, collection, id string, doc any) (bool, error)
	DeleteDocument(ctx context.Context, collection, id string) (bool, error)
}

// Fallback wraps a remote gateway with an in-process document store. When the
// remote call fails, the write lands locally and the degraded flag reports it
// so callers can surface reduced durability instead of rolling back.
type Fallback struct {
	remote Remote
	logger *slog.Logger

	mu          sync.Mutex
	collections map[string]map[string]any
}

// NewFallback wraps remote. A nil remote yields a purely local gateway.
func NewFallback(remote Remote, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		remote:      remote,
		logger:      logger,
		collections: make(map[string]map[string]any),
	}
}

// CreateDocument tries the remote first, then stores locally under a
// generated id.
func (f *Fallback) CreateDocument(ctx context.Context, collection string, doc any) (string, bool, error) {
	if f.remote != nil {
		id, degraded, err := f.remote.CreateDocument(ctx, collection, doc)
		if err == nil {
			return id, degraded, nil
		}
		f.logger.Warn("appdb create failed, using local fallback", "collection", collection, "error", err)
	}
	id := uuid.NewString()
	f.put(collection, id, doc)
	return id, true, nil
}

// UpdateDocument tries the remote first, then updates the local copy.
func (f *Fallback) UpdateDocument(ctx context.Context, collection, id string, doc any) (bool, error) {
	if f.remote != nil {
		degraded, err := f.remote.UpdateDocument(ctx, collection, id, doc)
		if err == nil {
			return degraded, nil
		}
		f.logger.Warn("appdb update failed, using local fallback", "collection", collection, "id", id, "error", err)
	}
	f.put(collection, id, doc)
	return true, nil
}

// DeleteDocument tries the remote first, then removes the local copy.
func (f *Fallback) DeleteDocument(ctx context.Context, collection, id string) (bool, error) {
	if f.remote != nil {
		degraded, err := f.remote.DeleteDocument(ctx, collection, id)
		if err == nil {
			return degraded, nil
		}
		f.logger.Warn("appdb delete failed, using local fallback", "collection", collection, "id", id, "error", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, ok := f.collections[collection]
	if !ok {
		return true, nil
	}
	delete(docs, id)
	return true, nil
}

// LocalDocuments returns a copy of the locally buffered documents for one
// collection, for later reconciliation.
func (f *Fallback) LocalDocuments(collection string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("no local documents for collection %s", collection)
	}
	out := make(map[string]any, len(docs))
	for id, doc := range docs {
		out[id] = doc
	}
	return out, nil
}

func (f *Fallback) put(collection, id string, doc any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	docs, ok := f.collections[collection]
	if !ok {
		docs = make(map[string]any)
		f.collections[collection] = docs
	}
	docs[id] = doc
}
