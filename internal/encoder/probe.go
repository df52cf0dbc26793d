package encoder

import (
	"context"

	"mediaconv/internal/media/ffprobe"
)

// FFprobe extracts derivative metadata with an ffprobe binary.
type FFprobe struct {
	Binary string
}

// Probe reads display dimensions and duration from path.
func (p FFprobe) Probe(ctx context.Context, path string) (Metadata, error) {
	result, err := ffprobe.Inspect(ctx, p.Binary, path)
	if err != nil {
		return Metadata{}, err
	}
	width, height := result.DisplayDimensions()
	return Metadata{
		Width:           width,
		Height:          height,
		DurationSeconds: result.DurationSeconds(),
	}, nil
}
