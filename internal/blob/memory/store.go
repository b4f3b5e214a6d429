// Package memory implements an in-process blob store for tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"signalsai/internal/blob"
)

func init() {
	blob.Register(blob.DriverMemory, func(_ context.Context, _ blob.Config) (blob.Store, error) {
		return New(), nil
	})
}

type entry struct {
	object blob.Object
	data   []byte
}

// Store keeps objects in process memory.
type Store struct {
	mu      sync.RWMutex
	objects map[string]entry
}

// New returns an empty in-memory store.
func New() *Store { return &Store{objects: make(map[string]entry)} }

// Driver implements blob.Store.
func (s *Store) Driver() blob.Driver { return blob.DriverMemory }

// Put implements blob.Store.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return blob.Object{}, err
	}
	object := blob.Object{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  opts.ContentType,
		Metadata:     cloneMetadata(opts.Metadata),
		LastModified: time.Now().UTC(),
	}
	s.mu.Lock()
	s.objects[key] = entry{object: object, data: data}
	s.mu.Unlock()
	return object, nil
}

// Get implements blob.Store.
func (s *Store) Get(_ context.Context, key string) (blob.Object, io.ReadCloser, error) {
	s.mu.RLock()
	e, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return blob.Object{}, nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	data := append([]byte(nil), e.data...)
	object := e.object
	object.Metadata = cloneMetadata(object.Metadata)
	return object, io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements blob.Store.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	delete(s.objects, key)
	return ok, nil
}

// List implements blob.Store.
func (s *Store) List(_ context.Context, prefix string) ([]blob.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blob.Object, 0, len(s.objects))
	for key, e := range s.objects {
		if strings.HasPrefix(key, prefix) {
			object := e.object
			object.Metadata = cloneMetadata(object.Metadata)
			out = append(out, object)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL implements blob.Store; unsupported for the memory driver.
func (s *Store) PresignURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", blob.ErrUnsupported
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
