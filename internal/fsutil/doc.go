// Package fsutil provides the durable file operations used when publishing
// encoder output: existence checks, fsync-then-rename replacement, and a
// cross-device move that falls back to an atomic copy.
package fsutil
