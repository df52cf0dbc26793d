package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func writeStub(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", path, err)
	}
}

func TestCheckBinaries(t *testing.T) {
	tmp := t.TempDir()
	present := filepath.Join(tmp, executableName("ffmpeg"))
	writeStub(t, present)

	statuses := CheckBinaries([]Requirement{
		{Name: "ffmpeg", Command: present, Description: "encoder"},
		{Name: "ffprobe", Command: filepath.Join(tmp, "missing-ffprobe"), Optional: true},
		{Name: "empty", Command: "  "},
	})
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}
	if !statuses[0].Available || statuses[0].Resolved != present {
		t.Fatalf("expected ffmpeg to resolve to %q, got %+v", present, statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Fatalf("expected missing ffprobe with detail, got %+v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Fatalf("expected unconfigured command, got %+v", statuses[2])
	}

	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "empty" {
		t.Fatalf("expected only the required empty command to be missing, got %+v", missing)
	}
}

func TestCheckFFmpegForDraptoSidecar(t *testing.T) {
	tmp := t.TempDir()
	host := filepath.Join(tmp, executableName("mediaconvd"))
	writeStub(t, host)
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	writeStub(t, ffmpegPath)
	t.Setenv("PATH", "")

	status := CheckFFmpegForDrapto(host)
	if !status.Available {
		t.Fatalf("expected ffmpeg sidecar to be available, got detail %q", status.Detail)
	}
	if status.Resolved != ffmpegPath {
		t.Fatalf("expected ffmpeg %q, got %q", ffmpegPath, status.Resolved)
	}
}

func TestCheckFFmpegForDraptoPathFallback(t *testing.T) {
	tmp := t.TempDir()
	host := filepath.Join(tmp, executableName("mediaconvd"))
	writeStub(t, host)

	binDir := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	ffmpegPath := filepath.Join(binDir, executableName("ffmpeg"))
	writeStub(t, ffmpegPath)
	t.Setenv("PATH", binDir)

	status := CheckFFmpegForDrapto(host)
	if !status.Available {
		t.Fatalf("expected ffmpeg fallback to be available, got detail %q", status.Detail)
	}
	if status.Resolved != ffmpegPath {
		t.Fatalf("expected ffmpeg %q, got %q", ffmpegPath, status.Resolved)
	}
}

func TestCheckFFmpegForDraptoNotFound(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("PATH", "")
	status := CheckFFmpegForDrapto(filepath.Join(tmp, executableName("mediaconvd")))
	if status.Available {
		t.Fatal("expected ffmpeg resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffmpeg is unavailable")
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
