// Package testutil provides deterministic fakes for service-level tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"timeline-go/internal/timeline"
)

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// SeqIDs hands out "id000001", "id000002", ... so generated filenames are
// stable across runs.
type SeqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *SeqIDs) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id%06d", s.n)
}

// ConflictStore wraps a ContentStore and rejects the next Conflicts writes
// with ErrConflict, simulating racing writers on the hosted platform.
type ConflictStore struct {
	timeline.ContentStore
	mu        sync.Mutex
	Conflicts int
	// Puts counts every attempted write, including rejected ones.
	Puts int
}

func (c *ConflictStore) Put(ctx context.Context, path string, content []byte, message, revision string) (string, error) {
	c.mu.Lock()
	c.Puts++
	reject := c.Conflicts > 0
	if reject {
		c.Conflicts--
	}
	c.mu.Unlock()

	if reject {
		return "", fmt.Errorf("%s: %w", path, timeline.ErrConflict)
	}
	return c.ContentStore.Put(ctx, path, content, message, revision)
}

// FakeCodec is an ImageCodec with scripted output.
type FakeCodec struct {
	OutExt string
	Out    []byte
	Err    error
}

func (f *FakeCodec) Ext() string { return f.OutExt }

func (f *FakeCodec) Transcode(_ context.Context, src []byte) ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Out != nil {
		return f.Out, nil
	}
	return src, nil
}

// ErrCodecBroken is a stand-in transcoding failure.
var ErrCodecBroken = errors.New("encoder exploded")
