package encoder

import (
	"context"

	"mediaconv/internal/config"
	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
)

// draptoContainer is the only container Drapto produces.
const draptoContainer = "mkv"

// ContainerOverride is implemented by invokers that choose the output
// container themselves instead of following the profile.
type ContainerOverride interface {
	OutputContainer(kind queue.Kind, media gallery.Media) (string, bool)
}

// Dispatcher routes optimized video to Drapto when that engine is selected
// and everything else to ffmpeg.
type Dispatcher struct {
	engine string
	ffmpeg Invoker
	drapto Invoker
}

// NewDispatcher builds a dispatcher. drapto may be nil when the engine is ffmpeg.
func NewDispatcher(engine string, ffmpeg, drapto Invoker) *Dispatcher {
	return &Dispatcher{engine: engine, ffmpeg: ffmpeg, drapto: drapto}
}

// Invoke implements Invoker.
func (d *Dispatcher) Invoke(ctx context.Context, req Request) (Result, error) {
	return d.route(req).Invoke(ctx, req)
}

// OutputContainer implements ContainerOverride. Drapto always writes
// Matroska whatever the profile asks for.
func (d *Dispatcher) OutputContainer(kind queue.Kind, media gallery.Media) (string, bool) {
	if d.usesDrapto(kind, media) {
		return draptoContainer, true
	}
	return "", false
}

func (d *Dispatcher) route(req Request) Invoker {
	if d.usesDrapto(req.Kind, req.Media) {
		return d.drapto
	}
	return d.ffmpeg
}

func (d *Dispatcher) usesDrapto(kind queue.Kind, media gallery.Media) bool {
	return d.engine == config.EngineDrapto && d.drapto != nil &&
		kind == queue.KindCreateOptimized && media == gallery.MediaVideo
}

var (
	_ Invoker           = (*Dispatcher)(nil)
	_ ContainerOverride = (*Dispatcher)(nil)
)
