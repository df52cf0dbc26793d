// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and returns a Result; helpers on Result pick the
// primary video stream, report display dimensions (honouring rotation side
// data and the legacy rotate tag), and parse durations defensively.
package ffprobe
