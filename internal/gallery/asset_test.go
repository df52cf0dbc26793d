package gallery

import (
	"path/filepath"
	"testing"
)

func TestMediaForFile(t *testing.T) {
	cases := map[string]Media{
		"clip.MOV":    MediaVideo,
		"song.flac":   MediaAudio,
		"photo.jpeg":  MediaImage,
		"dir/a.b.mkv": MediaVideo,
	}
	for name, want := range cases {
		got, ok := MediaForFile(name)
		if !ok || got != want {
			t.Fatalf("MediaForFile(%q) = %q, %v; want %q", name, got, ok, want)
		}
	}
	if _, ok := MediaForFile("notes.txt"); ok {
		t.Fatal("expected unknown extension to be rejected")
	}
}

func TestAssetPaths(t *testing.T) {
	a := &Asset{Dir: "/srv/album", OriginalFileName: "clip.mov", OptimizedFileName: "clip.mov"}
	if a.OriginalPath() != filepath.Join("/srv/album", "clip.mov") {
		t.Fatalf("unexpected original path %q", a.OriginalPath())
	}
	if a.HasDistinctOptimized() {
		t.Fatal("equal names must not count as a distinct derivative")
	}
	a.OptimizedFileName = "zOpt_clip.mp4"
	if !a.HasDistinctOptimized() {
		t.Fatal("expected distinct derivative")
	}
	if a.Format() != "mov" {
		t.Fatalf("unexpected format %q", a.Format())
	}
	if Stem("/x/clip.final.mov") != "clip.final" {
		t.Fatalf("unexpected stem %q", Stem("/x/clip.final.mov"))
	}
}

func TestParseRotateFlip(t *testing.T) {
	cases := map[string]RotateFlip{"": RotateNone, "90": Rotate90, "ROTATE270": Rotate270, "hflip": FlipX}
	for input, want := range cases {
		got, err := ParseRotateFlip(input)
		if err != nil || got != want {
			t.Fatalf("ParseRotateFlip(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParseRotateFlip("sideways"); err == nil {
		t.Fatal("expected error for unknown rotation")
	}
}

func TestRotateFlipFilter(t *testing.T) {
	if RotateNone.Requested() || RotateFlip("").Requested() {
		t.Fatal("none must not count as requested")
	}
	if Rotate180.Filter() != "transpose=1,transpose=1" {
		t.Fatalf("unexpected filter %q", Rotate180.Filter())
	}
	if !Rotate90.SwapsDimensions() || FlipY.SwapsDimensions() {
		t.Fatal("unexpected dimension swap classification")
	}
}
