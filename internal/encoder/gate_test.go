package encoder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediaconv/internal/config"
	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
	"mediaconv/internal/testsupport"
)

func TestProfileLookupOrder(t *testing.T) {
	cfg := config.Encoder{
		Profiles: []config.Profile{
			{Kind: "create_optimized", Source: "*", Output: "bin", Args: []string{"{target}"}},
			{Kind: "create_optimized", Source: "*video", Output: "mp4", Args: []string{"{target}"}},
			{Kind: "create_optimized", Source: ".MOV", Output: "webm", Args: []string{"{target}"}},
			{Kind: "create_optimized", Source: "mov", Output: "ignored", Args: []string{"{target}"}},
		},
	}
	gate := NewGate(cfg)

	tests := []struct {
		name   string
		format Format
		want   string
	}{
		{name: "exact extension", format: Format{Extension: "mov", Media: gallery.MediaVideo}, want: "webm"},
		{name: "media wildcard", format: Format{Extension: "avi", Media: gallery.MediaVideo}, want: "mp4"},
		{name: "catch all", format: Format{Extension: "wav", Media: gallery.MediaAudio}, want: "bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := gate.ProfileFor(tt.format, queue.KindCreateOptimized)
			if !ok {
				t.Fatal("expected profile")
			}
			if p.Output != tt.want {
				t.Fatalf("expected output %q, got %q", tt.want, p.Output)
			}
		})
	}

	if gate.HasProfileFor(Format{Extension: "mov", Media: gallery.MediaVideo}, queue.KindRotateOriginal) {
		t.Fatal("expected no rotate profile")
	}
}

func TestIsEncoderAvailableCachesResult(t *testing.T) {
	dir := t.TempDir()
	binary := testsupport.WriteScript(t, filepath.Join(dir, "ffmpeg"), "exit 0")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGate(config.Encoder{FFmpegBinary: binary, ProbeCacheSeconds: 30}, WithClock(func() time.Time { return now }))
	if !gate.IsEncoderAvailable() {
		t.Fatal("expected encoder available")
	}

	if err := os.Remove(binary); err != nil {
		t.Fatalf("remove binary: %v", err)
	}
	if !gate.IsEncoderAvailable() {
		t.Fatal("expected cached availability within ttl")
	}

	now = now.Add(31 * time.Second)
	if gate.IsEncoderAvailable() {
		t.Fatal("expected re-check after ttl to report missing binary")
	}
}

func TestIsEncoderAvailableRejectsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(binary, []byte("not executable"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	gate := NewGate(config.Encoder{FFmpegBinary: binary})
	if gate.IsEncoderAvailable() {
		t.Fatal("expected non-executable binary to be unavailable")
	}
}

func TestGateInvalidate(t *testing.T) {
	gate := NewGate(config.Encoder{FFmpegBinary: "ffmpeg", ProbeCacheSeconds: 3600})
	calls := 0
	gate.lookPath = func(string) (string, error) {
		calls++
		return "", errors.New("missing")
	}
	gate.IsEncoderAvailable()
	gate.IsEncoderAvailable()
	gate.Invalidate()
	gate.IsEncoderAvailable()
	if calls != 2 {
		t.Fatalf("expected 2 lookups, got %d", calls)
	}
}

func TestGateStatusIncludesDraptoFFmpeg(t *testing.T) {
	gate := NewGate(config.Encoder{Engine: config.EngineDrapto, FFmpegBinary: "ffmpeg", FFprobeBinary: "ffprobe"})
	statuses := gate.Status()
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if statuses[2].Name != "FFmpeg (drapto)" {
		t.Fatalf("unexpected drapto status %+v", statuses[2])
	}

	plain := NewGate(config.Encoder{Engine: config.EngineFFmpeg, FFmpegBinary: "ffmpeg"})
	if got := len(plain.Status()); got != 2 {
		t.Fatalf("expected 2 statuses for ffmpeg engine, got %d", got)
	}
}
