package imaging

import (
	"context"

	"timeline-go/internal/timeline"
)

// Passthrough stores uploads in their original format.
type Passthrough struct{}

func NewPassthrough() *Passthrough { return &Passthrough{} }

// Ext returns "" so the original extension is kept.
func (*Passthrough) Ext() string { return "" }

func (*Passthrough) Transcode(_ context.Context, src []byte) ([]byte, error) {
	return src, nil
}

// Compile-time check that Passthrough implements the codec interface.
var _ timeline.ImageCodec = (*Passthrough)(nil)
