package deps

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFmpegForDrapto reports the FFmpeg binary the embedded Drapto encoder
// will execute.
//
// Drapto prefers an ffmpeg binary that sits next to the host executable and
// falls back to resolving "ffmpeg" from PATH. hostBinary is normally the
// running mediaconv executable; an empty value skips the sidecar lookup.
func CheckFFmpegForDrapto(hostBinary string) Status {
	result := Status{
		Name:        "FFmpeg (drapto)",
		Description: "Used by Drapto for AV1 encoding",
	}

	if host := strings.TrimSpace(hostBinary); host != "" {
		if candidate, ok := ffmpegSidecarCandidate(host); ok {
			if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
				result.Command = candidate
				result.Resolved = candidate
				result.Available = true
				return result
			}
		}
	}

	ffmpegName := "ffmpeg"
	if ffmpegPath, err := lookPath(ffmpegName); err == nil {
		result.Command = ffmpegName
		result.Resolved = ffmpegPath
		result.Available = true
		return result
	}

	result.Command = ffmpegName
	result.Detail = fmt.Sprintf("binary %q not found", ffmpegName)
	return result
}

func ffmpegSidecarCandidate(hostPath string) (string, bool) {
	if hostPath == "" {
		return "", false
	}
	name := "ffmpeg"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(hostPath), name), true
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
