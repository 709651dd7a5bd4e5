package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"timeline-go/internal/timeline"
)

// FileSystemStore keeps the dataset in a local directory, mirroring the
// hosted layout one file per path. Revisions are SHA-256 of the current
// content, checked under a process-wide lock so concurrent submissions see
// the same conflict semantics as the hosted backend. Meant for local
// development; commit messages are accepted and discarded.
type FileSystemStore struct {
	root       string
	publicBase string
	mu         sync.Mutex
}

// NewFileSystemStore creates a store rooted at the given directory.
func NewFileSystemStore(root, publicBase string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}
	if publicBase == "" {
		publicBase = "file://" + root
	}
	return &FileSystemStore{
		root:       root,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

func (f *FileSystemStore) fullPath(path string) string {
	return filepath.Join(f.root, filepath.FromSlash(path))
}

func fileRevision(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get fetches a file's content and derived revision.
func (f *FileSystemStore) Get(_ context.Context, path string) (*timeline.FileContent, error) {
	data, err := os.ReadFile(f.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, timeline.ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &timeline.FileContent{Content: data, Revision: fileRevision(data)}, nil
}

// Put creates or replaces a file after verifying the revision token
// against the bytes currently on disk.
func (f *FileSystemStore) Put(_ context.Context, path string, content []byte, _, revision string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkRevision(path, revision); err != nil {
		return "", err
	}
	if err := f.writeAtomic(f.fullPath(path), content); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return fileRevision(content), nil
}

// Delete removes a file at its current revision.
func (f *FileSystemStore) Delete(_ context.Context, path, _, revision string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := os.ReadFile(f.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, timeline.ErrNotFound)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if revision != fileRevision(current) {
		return fmt.Errorf("%s: %w", path, timeline.ErrConflict)
	}
	if err := os.Remove(f.fullPath(path)); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// List enumerates the files directly under dir.
func (f *FileSystemStore) List(_ context.Context, dir string) ([]timeline.DirEntry, error) {
	items, err := os.ReadDir(f.fullPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", dir, timeline.ErrNotFound)
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var entries []timeline.DirEntry
	for _, it := range items {
		if it.IsDir() {
			continue
		}
		path := strings.TrimRight(dir, "/") + "/" + it.Name()
		data, err := os.ReadFile(f.fullPath(path))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		entries = append(entries, timeline.DirEntry{Path: path, Revision: fileRevision(data)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// PutBlob stores a blob, creating or replacing it.
func (f *FileSystemStore) PutBlob(_ context.Context, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.writeAtomic(f.fullPath(path), data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// URL returns the public URL for a stored blob.
func (f *FileSystemStore) URL(path string) string {
	return f.publicBase + "/" + path
}

// checkRevision compares the caller's revision against the file on disk.
// Callers must hold the lock.
func (f *FileSystemStore) checkRevision(path, revision string) error {
	current, err := os.ReadFile(f.fullPath(path))
	switch {
	case os.IsNotExist(err):
		if revision != "" {
			return fmt.Errorf("%s: %w", path, timeline.ErrConflict)
		}
		return nil
	case err != nil:
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if revision != fileRevision(current) {
		return fmt.Errorf("%s: %w", path, timeline.ErrConflict)
	}
	return nil
}

// writeAtomic writes via a temp file in the destination directory plus
// rename, so readers never observe a half-written file.
func (f *FileSystemStore) writeAtomic(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Compile-time checks that FileSystemStore implements the store interfaces.
var (
	_ timeline.ContentStore = (*FileSystemStore)(nil)
	_ timeline.BlobStore    = (*FileSystemStore)(nil)
)
