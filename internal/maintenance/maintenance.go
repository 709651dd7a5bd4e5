// Package maintenance holds the offline housekeeping operations for the
// stored dataset: quarter-format migration, WebP conversion of historical
// images, and reaping of unreferenced image blobs. Each operation makes at
// most one commit to the tabular file.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"timeline-go/internal/timeline"
)

// Runner executes maintenance operations against one stored dataset.
type Runner struct {
	store     timeline.ContentStore
	blobs     timeline.BlobStore
	codec     timeline.ImageCodec
	logger    timeline.Logger
	csvPath   string
	imagesDir string
}

// NewRunner creates a Runner. codec may be nil for operations that do not
// transcode.
func NewRunner(store timeline.ContentStore, blobs timeline.BlobStore, codec timeline.ImageCodec, logger timeline.Logger, csvPath, imagesDir string) *Runner {
	if csvPath == "" {
		csvPath = "timeline-data.csv"
	}
	if imagesDir == "" {
		imagesDir = "images"
	}
	return &Runner{
		store:     store,
		blobs:     blobs,
		codec:     codec,
		logger:    logger,
		csvPath:   csvPath,
		imagesDir: imagesDir,
	}
}

var (
	canonicalQuarter = regexp.MustCompile(`^\d{4}-Q[1-4]$`)
	bareQuarter      = regexp.MustCompile(`^Q[1-4]$`)
)

// Requarter rewrites the quarter column of every stored row to the
// YYYY-Q# format, deriving the year and quarter from the row's own year
// and date fields. Rows that cannot be derived are left untouched.
// Returns the number of rows changed; zero changes means zero commits.
func (r *Runner) Requarter(ctx context.Context) (int, error) {
	fc, entries, header, err := r.loadCSV(ctx)
	if err != nil {
		return 0, err
	}
	if fc == nil {
		return 0, nil
	}

	changed := 0
	for i := range entries {
		e := &entries[i]
		if canonicalQuarter.MatchString(e.Quarter) {
			continue
		}
		q, ok := deriveQuarter(e)
		if !ok {
			r.logger.Warn("cannot derive quarter, row left as-is", "date", e.Date, "year", e.Year, "quarter", e.Quarter)
			continue
		}
		if q == e.Quarter {
			continue
		}
		e.Quarter = q
		changed++
	}

	if changed == 0 {
		return 0, nil
	}

	if err := r.writeCSV(ctx, header, entries, fc.Revision, fmt.Sprintf("Normalize quarter column (%d rows)", changed)); err != nil {
		return 0, err
	}
	r.logger.Info("quarter column normalized", "rows", changed)
	return changed, nil
}

// ConvertImages transcodes every stored non-WebP image referenced by the
// CSV, stores the .webp blob alongside the original, and rewrites the
// referencing rows in a single commit. Returns the number of images
// converted.
func (r *Runner) ConvertImages(ctx context.Context) (int, error) {
	if r.codec == nil || r.codec.Ext() == "" {
		return 0, errors.New("convert-images requires a transcoding image codec")
	}

	fc, entries, header, err := r.loadCSV(ctx)
	if err != nil {
		return 0, err
	}
	if fc == nil {
		return 0, nil
	}

	converted := 0
	for i := range entries {
		e := &entries[i]
		name := blobName(e.ImagePath)
		if name == "" || strings.HasSuffix(name, "."+r.codec.Ext()) {
			continue
		}

		oldPath := r.imagesDir + "/" + name
		blob, err := r.store.Get(ctx, oldPath)
		if errors.Is(err, timeline.ErrNotFound) {
			r.logger.Warn("referenced image missing, row left as-is", "path", oldPath)
			continue
		}
		if err != nil {
			return converted, fmt.Errorf("reading image %s: %w", oldPath, err)
		}

		data, err := r.codec.Transcode(ctx, blob.Content)
		if err != nil {
			return converted, fmt.Errorf("transcoding %s: %w", oldPath, err)
		}

		newName := strings.TrimSuffix(name, extOf(name)) + "." + r.codec.Ext()
		newPath := r.imagesDir + "/" + newName
		if err := r.blobs.PutBlob(ctx, newPath, data, "Convert image to WebP: "+newName); err != nil {
			return converted, fmt.Errorf("storing converted image: %w", err)
		}

		e.ImagePath = r.blobs.URL(newPath)
		converted++
		r.logger.Info("image converted", "from", oldPath, "to", newPath)
	}

	if converted == 0 {
		return 0, nil
	}

	if err := r.writeCSV(ctx, header, entries, fc.Revision, fmt.Sprintf("Point rows at WebP images (%d rows)", converted)); err != nil {
		return converted, err
	}
	return converted, nil
}

// CleanupImages deletes stored image blobs no CSV row references, such as
// originals left behind by ConvertImages. With dryRun the candidates are
// only logged. Returns the number of blobs deleted (or that would be).
func (r *Runner) CleanupImages(ctx context.Context, dryRun bool) (int, error) {
	fc, entries, _, err := r.loadCSV(ctx)
	if err != nil {
		return 0, err
	}
	if fc == nil {
		return 0, nil
	}

	referenced := make(map[string]bool, len(entries))
	for i := range entries {
		if name := blobName(entries[i].ImagePath); name != "" {
			referenced[name] = true
		}
	}

	listing, err := r.store.List(ctx, r.imagesDir)
	if errors.Is(err, timeline.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", r.imagesDir, err)
	}

	removed := 0
	for _, item := range listing {
		name := blobName(item.Path)
		if referenced[name] {
			continue
		}
		if dryRun {
			r.logger.Info("would delete unreferenced image", "path", item.Path)
			removed++
			continue
		}
		if err := r.store.Delete(ctx, item.Path, "Remove unreferenced image: "+name, item.Revision); err != nil {
			return removed, fmt.Errorf("deleting %s: %w", item.Path, err)
		}
		r.logger.Info("unreferenced image deleted", "path", item.Path)
		removed++
	}
	return removed, nil
}

// loadCSV fetches and decodes the tabular file. A missing file yields all
// nils: nothing to maintain.
func (r *Runner) loadCSV(ctx context.Context) (*timeline.FileContent, []timeline.Entry, []string, error) {
	fc, err := r.store.Get(ctx, r.csvPath)
	if errors.Is(err, timeline.ErrNotFound) {
		r.logger.Info("no tabular file, nothing to do", "path", r.csvPath)
		return nil, nil, nil, nil
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading %s: %w", r.csvPath, err)
	}

	content := string(fc.Content)
	return fc, timeline.Decode(content), timeline.ParseHeader(content), nil
}

// writeCSV re-encodes the file against its own header and writes it back
// at the fetched revision.
func (r *Runner) writeCSV(ctx context.Context, header []string, entries []timeline.Entry, revision, message string) error {
	updated := timeline.EncodeFile(header, entries)
	if _, err := r.store.Put(ctx, r.csvPath, []byte(updated), message, revision); err != nil {
		return fmt.Errorf("writing %s: %w", r.csvPath, err)
	}
	return nil
}

// deriveQuarter computes the canonical label from a row's year and date
// fields. A bare "Q#" keeps its quarter digit; otherwise the month name at
// the front of the date (e.g. "Mar 30") decides.
func deriveQuarter(e *timeline.Entry) (string, bool) {
	year := strings.TrimSpace(e.Year)
	if len(year) != 4 {
		return "", false
	}

	if bareQuarter.MatchString(e.Quarter) {
		return year + "-" + e.Quarter, true
	}

	monthName, _, _ := strings.Cut(strings.TrimSpace(e.Date), " ")
	t, err := time.Parse("Jan", monthName)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s-Q%d", year, (int(t.Month())+2)/3), true
}

// blobName extracts the bare filename from an image URL or path.
func blobName(ref string) string {
	if ref == "" {
		return ""
	}
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// extOf returns the ".ext" suffix of a filename, or "".
func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
