// Package fs implements a local filesystem blob store. Object bytes live
// under the root directory keyed by relative path; a JSON sidecar per object
// carries content type and user metadata.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"signalsai/internal/blob"
)

const sidecarSuffix = ".meta.json"

func init() {
	blob.Register(blob.DriverFilesystem, func(_ context.Context, cfg blob.Config) (blob.Store, error) {
		return New(cfg.FSRoot)
	})
}

// Store persists blobs below a root directory.
type Store struct {
	root string
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// New creates the root directory if needed. An empty root defaults to
// ./blobdata.
func New(root string) (*Store, error) {
	if root == "" {
		root = "blobdata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the backing directory.
func (s *Store) Root() string { return s.root }

// Driver implements blob.Store.
func (s *Store) Driver() blob.Driver { return blob.DriverFilesystem }

// keyPath maps a key onto the root, rejecting escapes.
func (s *Store) keyPath(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || filepath.IsAbs(key) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put implements blob.Store.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Object, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return blob.Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return blob.Object{}, err
	}
	f, err := os.Create(path)
	if err != nil {
		return blob.Object{}, err
	}
	_, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return blob.Object{}, err
	}
	meta, err := json.Marshal(sidecar{ContentType: opts.ContentType, Metadata: opts.Metadata})
	if err != nil {
		return blob.Object{}, err
	}
	if err := os.WriteFile(path+sidecarSuffix, meta, 0o644); err != nil {
		return blob.Object{}, err
	}
	return s.stat(key, path)
}

// Get implements blob.Store.
func (s *Store) Get(_ context.Context, key string) (blob.Object, io.ReadCloser, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return blob.Object{}, nil, err
	}
	object, err := s.stat(key, path)
	if err != nil {
		return blob.Object{}, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return blob.Object{}, nil, err
	}
	return object, f, nil
}

// Delete implements blob.Store.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(path + sidecarSuffix)
	return true, nil
}

// List implements blob.Store.
func (s *Store) List(_ context.Context, prefix string) ([]blob.Object, error) {
	var out []blob.Object
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, sidecarSuffix) {
			return err
		}
		rel, rerr := filepath.Rel(s.root, path)
		if rerr != nil {
			return rerr
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		object, serr := s.stat(key, path)
		if serr != nil {
			return serr
		}
		out = append(out, object)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL implements blob.Store; unsupported on the filesystem.
func (s *Store) PresignURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return "", blob.ErrUnsupported
}

func (s *Store) stat(key, path string) (blob.Object, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return blob.Object{}, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
		}
		return blob.Object{}, err
	}
	object := blob.Object{Key: key, Size: fi.Size(), LastModified: fi.ModTime().UTC()}
	if raw, err := os.ReadFile(path + sidecarSuffix); err == nil {
		var sc sidecar
		if json.Unmarshal(raw, &sc) == nil {
			object.ContentType = sc.ContentType
			object.Metadata = sc.Metadata
		}
	}
	return object, nil
}
