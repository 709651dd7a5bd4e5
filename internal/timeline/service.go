package timeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

// Settings carries the service's stored-layout knobs.
type Settings struct {
	// CSVPath is the tabular file's path inside the repository.
	CSVPath string
	// ImagesDir is the directory holding committed image blobs.
	ImagesDir string
	// FallbackOriginal stores the untranscoded upload when the image
	// codec fails, instead of failing the whole submission.
	FallbackOriginal bool
	// MaxConflictRetries bounds how often a conflicted row append is
	// re-run against a fresh revision.
	MaxConflictRetries uint64
}

func (s *Settings) applyDefaults() {
	if s.CSVPath == "" {
		s.CSVPath = "timeline-data.csv"
	}
	if s.ImagesDir == "" {
		s.ImagesDir = "images"
	}
	if s.MaxConflictRetries == 0 {
		s.MaxConflictRetries = 3
	}
}

// Service orchestrates one form submission: optionally store an image
// blob, then append one row to the tabular file with optimistic
// concurrency. Entirely request-scoped; no state is shared across calls.
type Service struct {
	store    ContentStore
	blobs    BlobStore
	codec    ImageCodec
	clock    Clock
	idgen    IDGenerator
	logger   Logger
	settings Settings
}

// NewService creates a Service with the provided dependencies.
func NewService(store ContentStore, blobs BlobStore, codec ImageCodec, clock Clock, idgen IDGenerator, logger Logger, settings Settings) *Service {
	settings.applyDefaults()
	return &Service{
		store:    store,
		blobs:    blobs,
		codec:    codec,
		clock:    clock,
		idgen:    idgen,
		logger:   logger,
		settings: settings,
	}
}

// SubmitRequest is one inbound form submission.
type SubmitRequest struct {
	Entry Entry `json:"entry"`
	// ImageData is the optional image payload, a data URL or bare
	// base64. Filename supplies the original extension.
	ImageData string `json:"imageData,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

// SubmitResult reports a successful submission.
type SubmitResult struct {
	ImagePath string
	Message   string
}

// Submit runs the full submission sequence. The image store strictly
// precedes the CSV append so the row always references a resolvable URL.
// Failures after the image commit leave no CSV row; the orphaned blob is
// reaped out of band.
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	entry := req.Entry
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	if req.ImageData != "" {
		imagePath, err := s.storeImage(ctx, req.ImageData, req.Filename, entry.Date, entry.Description)
		if err != nil {
			return nil, err
		}
		entry.ImagePath = imagePath
	}

	if err := s.appendWithRetry(ctx, &entry); err != nil {
		return nil, err
	}

	return &SubmitResult{
		ImagePath: entry.ImagePath,
		Message:   "Entry submitted successfully",
	}, nil
}

// AppendEntry appends one row without touching the image collection. The
// entry may carry a pre-resolved imagePath.
func (s *Service) AppendEntry(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return s.appendWithRetry(ctx, &entry)
}

// UploadImage stores a single image blob and returns its public URL. The
// caller-supplied filename is sanitized but otherwise kept.
func (s *Service) UploadImage(ctx context.Context, imageData, filename string) (string, error) {
	if imageData == "" {
		return "", &ValidationError{Field: "imageData", Reason: "required"}
	}
	if filename == "" {
		return "", &ValidationError{Field: "filename", Reason: "required"}
	}

	data, err := decodeImageData(imageData)
	if err != nil {
		return "", err
	}

	ext := ExtensionOf(filename, "png")
	base := filename
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base = sanitize(base); base == "" {
		base = "image"
	}
	path := s.settings.ImagesDir + "/" + base + "." + ext

	if err := s.blobs.PutBlob(ctx, path, data, "Add image: "+base+"."+ext); err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	s.logger.Info("image stored", "path", path, "bytes", len(data))
	return s.blobs.URL(path), nil
}

// storeImage decodes, transcodes, and commits an image blob, returning the
// public URL the CSV row should reference.
func (s *Service) storeImage(ctx context.Context, imageData, filename, date, title string) (string, error) {
	data, err := decodeImageData(imageData)
	if err != nil {
		return "", err
	}

	ext := ExtensionOf(filename, "png")
	if outExt := s.codec.Ext(); outExt != "" {
		converted, err := s.codec.Transcode(ctx, data)
		switch {
		case err == nil:
			data = converted
			ext = outExt
		case s.settings.FallbackOriginal:
			// Policy choice: a broken encoder degrades to storing
			// the original upload rather than losing the entry.
			s.logger.Warn("image transcode failed, storing original", "error", err)
		default:
			return "", fmt.Errorf("transcoding image: %w", err)
		}
	}

	name := ImageFilename(date, title, ext, s.idgen)
	path := s.settings.ImagesDir + "/" + name

	if err := s.blobs.PutBlob(ctx, path, data, "Add image: "+name); err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	s.logger.Info("image stored", "path", path, "bytes", len(data))
	return s.blobs.URL(path), nil
}

// appendWithRetry runs the read-modify-write cycle, re-running it a
// bounded number of times when the hosting platform rejects a stale
// revision. Any other failure is permanent.
func (s *Service) appendWithRetry(ctx context.Context, entry *Entry) error {
	op := func() error {
		err := s.appendOnce(ctx, entry)
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.settings.MaxConflictRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, ErrConflict) {
			return fmt.Errorf("appending row after %d attempts: %w", s.settings.MaxConflictRetries+1, err)
		}
		return err
	}
	return nil
}

// appendOnce performs one optimistic append: fetch the current file (a
// missing file is an empty baseline), derive the quarter, append the row
// against the live header, and write back with the fetched revision.
func (s *Service) appendOnce(ctx context.Context, entry *Entry) error {
	content := ""
	revision := ""

	fc, err := s.store.Get(ctx, s.settings.CSVPath)
	switch {
	case errors.Is(err, ErrNotFound):
		// First submission ever creates the file from scratch.
	case err != nil:
		return fmt.Errorf("reading %s: %w", s.settings.CSVPath, err)
	default:
		content = string(fc.Content)
		revision = fc.Revision
	}

	entry.Quarter = QuarterOf(s.clock.Now())
	updated := AppendRow(content, entry)

	newRev, err := s.store.Put(ctx, s.settings.CSVPath, []byte(updated), "Add timeline entry: "+entry.Date, revision)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.logger.Warn("row append conflicted, refetching", "path", s.settings.CSVPath)
			return err
		}
		return fmt.Errorf("writing %s: %w", s.settings.CSVPath, err)
	}

	s.logger.Info("row appended", "path", s.settings.CSVPath, "date", entry.Date, "revision", newRev)
	return nil
}

var dataURLPrefix = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+;base64,`)

// decodeImageData accepts a data URL or bare base64 payload.
func decodeImageData(imageData string) ([]byte, error) {
	raw := dataURLPrefix.ReplaceAllString(imageData, "")
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, &ValidationError{Field: "imageData", Reason: "not valid base64"}
	}
	if len(data) == 0 {
		return nil, &ValidationError{Field: "imageData", Reason: "empty payload"}
	}
	return data, nil
}
