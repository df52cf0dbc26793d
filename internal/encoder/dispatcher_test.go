package encoder

import (
	"context"
	"testing"

	"mediaconv/internal/config"
	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
)

type namedInvoker struct {
	name  string
	calls *[]string
}

func (n namedInvoker) Invoke(context.Context, Request) (Result, error) {
	*n.calls = append(*n.calls, n.name)
	return Result{}, nil
}

func TestDispatcherRoutesByEngine(t *testing.T) {
	var calls []string
	ff := namedInvoker{name: "ffmpeg", calls: &calls}
	dr := namedInvoker{name: "drapto", calls: &calls}

	d := NewDispatcher(config.EngineDrapto, ff, dr)
	requests := []Request{
		{Kind: queue.KindCreateOptimized, Media: gallery.MediaVideo},
		{Kind: queue.KindCreateOptimized, Media: gallery.MediaAudio},
		{Kind: queue.KindRotateOriginal, Media: gallery.MediaVideo},
	}
	for _, req := range requests {
		if _, err := d.Invoke(context.Background(), req); err != nil {
			t.Fatalf("Invoke: %v", err)
		}
	}
	want := []string{"drapto", "ffmpeg", "ffmpeg"}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d: expected %s, got %s", i, want[i], calls[i])
		}
	}

	calls = nil
	plain := NewDispatcher(config.EngineFFmpeg, ff, dr)
	_, _ = plain.Invoke(context.Background(), requests[0])
	if len(calls) != 1 || calls[0] != "ffmpeg" {
		t.Fatalf("expected ffmpeg engine to ignore drapto, got %v", calls)
	}
}

func TestDispatcherForcesMatroskaForDrapto(t *testing.T) {
	var calls []string
	d := NewDispatcher(config.EngineDrapto, namedInvoker{name: "ffmpeg", calls: &calls}, namedInvoker{name: "drapto", calls: &calls})
	if ext, ok := d.OutputContainer(queue.KindCreateOptimized, gallery.MediaVideo); !ok || ext != "mkv" {
		t.Fatalf("expected mkv override for drapto video, got %q ok=%v", ext, ok)
	}
	if _, ok := d.OutputContainer(queue.KindRotateOriginal, gallery.MediaVideo); ok {
		t.Fatal("rotation must keep the profile container")
	}
	plain := NewDispatcher(config.EngineFFmpeg, namedInvoker{name: "ffmpeg", calls: &calls}, nil)
	if _, ok := plain.OutputContainer(queue.KindCreateOptimized, gallery.MediaVideo); ok {
		t.Fatal("ffmpeg engine must keep the profile container")
	}
}
