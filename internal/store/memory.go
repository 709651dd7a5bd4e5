package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"timeline-go/internal/timeline"
)

// MemoryStore is an in-memory implementation of both store interfaces. It
// backs tests and demo mode, where submissions must never reach the hosted
// repository. Safe for concurrent use; revision checks are atomic under
// the lock, so racing writers see the same conflict behavior the hosting
// platform enforces.
type MemoryStore struct {
	mu         sync.RWMutex
	files      map[string][]byte
	publicBase string
}

// NewMemoryStore creates an empty in-memory store. publicBase prefixes the
// URLs reported for stored blobs.
func NewMemoryStore(publicBase string) *MemoryStore {
	if publicBase == "" {
		publicBase = "memory://store"
	}
	return &MemoryStore{
		files:      make(map[string][]byte),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// revisionOf derives the opaque revision token for file content, mirroring
// the hosting platform's content-addressed SHA.
func revisionOf(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Get fetches a file's content and revision.
func (m *MemoryStore) Get(_ context.Context, path string) (*timeline.FileContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, timeline.ErrNotFound)
	}
	return &timeline.FileContent{
		Content:  append([]byte(nil), data...),
		Revision: revisionOf(data),
	}, nil
}

// Put creates or replaces a file, enforcing the revision token.
func (m *MemoryStore) Put(_ context.Context, path string, content []byte, _, revision string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.files[path]
	switch {
	case exists && revision != revisionOf(current):
		return "", fmt.Errorf("%s: %w", path, timeline.ErrConflict)
	case !exists && revision != "":
		return "", fmt.Errorf("%s: %w", path, timeline.ErrConflict)
	}

	m.files[path] = append([]byte(nil), content...)
	return revisionOf(content), nil
}

// Delete removes a file, enforcing the revision token.
func (m *MemoryStore) Delete(_ context.Context, path, _, revision string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.files[path]
	if !exists {
		return fmt.Errorf("%s: %w", path, timeline.ErrNotFound)
	}
	if revision != revisionOf(current) {
		return fmt.Errorf("%s: %w", path, timeline.ErrConflict)
	}
	delete(m.files, path)
	return nil
}

// List enumerates the files directly under dir.
func (m *MemoryStore) List(_ context.Context, dir string) ([]timeline.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := strings.TrimRight(dir, "/") + "/"
	var entries []timeline.DirEntry
	for path, data := range m.files {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		entries = append(entries, timeline.DirEntry{Path: path, Revision: revisionOf(data)})
	}
	if entries == nil {
		return nil, fmt.Errorf("%s: %w", dir, timeline.ErrNotFound)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// PutBlob stores a blob, creating or replacing it.
func (m *MemoryStore) PutBlob(_ context.Context, path string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = append([]byte(nil), data...)
	return nil
}

// URL returns the public URL for a stored blob.
func (m *MemoryStore) URL(path string) string {
	return m.publicBase + "/" + path
}

// Compile-time checks that MemoryStore implements the store interfaces.
var (
	_ timeline.ContentStore = (*MemoryStore)(nil)
	_ timeline.BlobStore    = (*MemoryStore)(nil)
)
