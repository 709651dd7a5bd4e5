// Package imaging provides the image codec implementations behind
// timeline.ImageCodec. Encoding is delegated to an external binary; the
// service never decodes pixels itself.
package imaging

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"timeline-go/internal/timeline"
)

// CWebP transcodes uploads to WebP by shelling out to the cwebp encoder.
type CWebP struct {
	binary  string
	quality int
}

// NewCWebP creates a codec using the given binary name (default "cwebp")
// and quality (default 80).
func NewCWebP(binary string, quality int) *CWebP {
	if binary == "" {
		binary = "cwebp"
	}
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &CWebP{binary: binary, quality: quality}
}

// Ext returns the output extension.
func (c *CWebP) Ext() string { return "webp" }

// Transcode runs the encoder over a temp file pair. cwebp reads and writes
// files, not pipes, so the bytes take a round trip through the temp dir.
func (c *CWebP) Transcode(ctx context.Context, src []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "timeline-webp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in")
	out := filepath.Join(dir, "out.webp")
	if err := os.WriteFile(in, src, 0600); err != nil {
		return nil, fmt.Errorf("writing encoder input: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.binary, "-quiet", "-q", strconv.Itoa(c.quality), in, "-o", out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", c.binary, err, strings.TrimSpace(string(output)))
	}

	converted, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("reading encoder output: %w", err)
	}
	return converted, nil
}

// Compile-time check that CWebP implements the codec interface.
var _ timeline.ImageCodec = (*CWebP)(nil)
