package timeline

import "context"

// ImageCodec converts uploaded image bytes to the storage format. The
// actual encoding is delegated to an external encoder; the service only
// cares about the resulting bytes and extension.
type ImageCodec interface {
	// Transcode converts src to the codec's output format.
	Transcode(ctx context.Context, src []byte) ([]byte, error)

	// Ext returns the output file extension without the dot. An empty
	// string means the input format is kept as-is.
	Ext() string
}
