package imaging

import (
	"fmt"

	"timeline-go/internal/config"
	"timeline-go/internal/timeline"
)

// NewCodecFromConfig creates the image codec selected by the config.
func NewCodecFromConfig(cfg config.ImagesConfig) (timeline.ImageCodec, error) {
	switch cfg.Format {
	case "webp":
		return NewCWebP("", cfg.Quality), nil
	case "", "original":
		return NewPassthrough(), nil
	default:
		return nil, fmt.Errorf("unknown image format: %s", cfg.Format)
	}
}
