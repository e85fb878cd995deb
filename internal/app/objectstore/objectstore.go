package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is the binary payload backend. Put must be durable before it
// returns; Delete is best-effort and not atomic with reference-row deletes
// in the layer above.
type Store interface {
	Put(ctx context.Context, key string, content io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Filesystem stores payloads under a root directory and serves URLs relative
// to a configured base.
type Filesystem struct {
	root    string
	baseURL string
}

var _ Store = (*Filesystem)(nil)

// NewFilesystem creates the root directory if needed.
func NewFilesystem(root, baseURL string) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("object store root not configured")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Filesystem{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (f *Filesystem) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(f.root, clean), nil
}

func (f *Filesystem) Put(_ context.Context, key string, content io.Reader, size int64) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.root, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, content)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if size >= 0 && written != size {
		return fmt.Errorf("object %s: wrote %d bytes, expected %d", key, written, size)
	}
	return os.Rename(tmp.Name(), path)
}

func (f *Filesystem) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (f *Filesystem) Delete(_ context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (f *Filesystem) URL(key string) string {
	return f.baseURL + "/" + url.PathEscape(key)
}

// Memory keeps payloads in a map; for tests and local development.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, content io.Reader, size int64) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("object %s: read %d bytes, expected %d", key, len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return os.ErrNotExist
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) URL(key string) string {
	return "memory://" + key
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
