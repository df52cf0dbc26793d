package encoder

import (
	"context"
	"time"

	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
)

// Request describes one conversion. Target is a temporary path chosen by the
// caller; invokers never write anywhere else.
type Request struct {
	ItemID   string
	Kind     queue.Kind
	Media    gallery.Media
	Source   string
	Target   string
	Profile  Profile
	Rotation gallery.RotateFlip
	// Timeout bounds the encoder run. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// Metadata is extracted from the produced file.
type Metadata struct {
	Width           int
	Height          int
	DurationSeconds float64
}

// Result reports a finished run. Diagnostic holds the tail of encoder output
// and is populated on failure as well as success.
type Result struct {
	Diagnostic string
	Metadata   Metadata
	Elapsed    time.Duration
}

// Invoker runs an encoder. Errors wrap services.ErrEncoderFailure,
// services.ErrTimeout or services.ErrSourceMissing.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}

// Prober extracts metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}
