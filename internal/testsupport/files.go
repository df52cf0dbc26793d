package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	for remaining := size; remaining > 0; {
		n := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}

// WriteScript writes an executable /bin/sh script with the given body.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}

// copyEncoderBody copies the file after -i to the last argument.
const copyEncoderBody = `src=""
target=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-i" ]; then
    src="$2"
  fi
  target="$1"
  shift
done
cp "$src" "$target"`

// CopyEncoder writes an ffmpeg stand-in that copies its input to its output.
func CopyEncoder(t testing.TB, dir string) string {
	t.Helper()
	return WriteScript(t, filepath.Join(dir, "ffmpeg-copy"), copyEncoderBody)
}

// FailingEncoder writes an ffmpeg stand-in that writes partial output, prints
// message on stderr and exits non-zero.
func FailingEncoder(t testing.TB, dir, message string) string {
	t.Helper()
	body := `for last; do :; done
printf 'partial' > "$last"
echo "` + message + `" >&2
exit 1`
	return WriteScript(t, filepath.Join(dir, "ffmpeg-fail"), body)
}

// SlowEncoder writes an ffmpeg stand-in that writes partial output and then
// sleeps far longer than any test timeout.
func SlowEncoder(t testing.TB, dir string) string {
	t.Helper()
	body := `for last; do :; done
printf 'partial' > "$last"
sleep 30`
	return WriteScript(t, filepath.Join(dir, "ffmpeg-slow"), body)
}

// BlockingEncoder writes a copying ffmpeg stand-in that waits until release
// exists before producing output.
func BlockingEncoder(t testing.TB, dir, release string) string {
	t.Helper()
	body := `while [ ! -f "` + release + `" ]; do sleep 0.05; done
` + copyEncoderBody
	return WriteScript(t, filepath.Join(dir, "ffmpeg-blocking"), body)
}

// StagedEncoder writes a copying ffmpeg stand-in that holds each encode until
// ReleaseStage is called for the target's extension, so optimized (.mp4) and
// rotated (.mov) outputs can be released separately.
func StagedEncoder(t testing.TB, dir string) string {
	t.Helper()
	body := `for last; do :; done
while [ ! -f "` + filepath.Join(dir, "release-") + `${last##*.}" ]; do sleep 0.05; done
` + copyEncoderBody
	return WriteScript(t, filepath.Join(dir, "ffmpeg-staged"), body)
}

// ReleaseStage lets StagedEncoder runs writing ext finish.
func ReleaseStage(t testing.TB, dir, ext string) {
	t.Helper()
	WriteFile(t, filepath.Join(dir, "release-"+ext), 1)
}
