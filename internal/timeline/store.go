package timeline

import "context"

// FileContent is a stored file's bytes plus the revision token required to
// replace it. Revision is opaque; an empty revision means the file is new.
type FileContent struct {
	Content  []byte
	Revision string
}

// DirEntry describes one file inside a stored directory listing.
type DirEntry struct {
	Path     string
	Revision string
}

// ContentStore reads and writes named files in the hosted repository at a
// fixed branch. Every write produces one commit; that commit history is the
// system's only audit trail.
type ContentStore interface {
	// Get fetches a file's current content and revision.
	// Returns ErrNotFound if the file does not exist.
	Get(ctx context.Context, path string) (*FileContent, error)

	// Put creates the file when revision is empty and replaces it
	// otherwise. A stale revision fails with ErrConflict rather than
	// silently overwriting. Returns the new revision.
	Put(ctx context.Context, path string, content []byte, message, revision string) (string, error)

	// Delete removes a file. Used only by maintenance; the submission
	// path never deletes or mutates in place.
	Delete(ctx context.Context, path, message, revision string) error

	// List enumerates the files directly under a directory path.
	// Returns ErrNotFound if the directory does not exist.
	List(ctx context.Context, dir string) ([]DirEntry, error)
}

// BlobStore holds opaque image blobs. Separate from ContentStore so the
// image collection can live in a different backend (e.g. S3) than the
// tabular file; callers never juggle revisions for blobs.
type BlobStore interface {
	// PutBlob stores a blob, creating or replacing it.
	PutBlob(ctx context.Context, path string, data []byte, message string) error

	// URL returns the public URL a stored blob is served from.
	URL(path string) string
}
