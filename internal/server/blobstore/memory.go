package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/dmitrijs2005/filekeeper/internal/common"
)

type memBlob struct {
	data        []byte
	contentType string
}

// MemoryStore keeps blobs in memory. Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memBlob)}
}

func (m *MemoryStore) Put(_ context.Context, path string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: read content: %w", common.ErrIOFailure, err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[path]; ok {
		return fmt.Errorf("blob %s: %w", path, common.ErrAlreadyExists)
	}
	m.blobs[path] = memBlob{data: data, contentType: contentType}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.blobs[path]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", path, common.ErrBlobMissing)
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[path]; !ok {
		return false, nil
	}
	delete(m.blobs, path)
	return true, nil
}

func (m *MemoryStore) Exists(_ context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blobs[path]
	return ok, nil
}

// Paths lists stored paths in sorted order.
func (m *MemoryStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.blobs))
	for p := range m.blobs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

var _ Store = (*MemoryStore)(nil)
