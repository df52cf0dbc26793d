package gallery

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Media identifies the broad class of a gallery asset.
type Media string

const (
	MediaImage Media = "image"
	MediaAudio Media = "audio"
	MediaVideo Media = "video"
)

var mediaByExtension = map[string]Media{
	"jpg": MediaImage, "jpeg": MediaImage, "png": MediaImage, "gif": MediaImage,
	"webp": MediaImage, "heic": MediaImage, "tif": MediaImage, "tiff": MediaImage, "bmp": MediaImage,

	"mp3": MediaAudio, "m4a": MediaAudio, "aac": MediaAudio, "wav": MediaAudio,
	"flac": MediaAudio, "ogg": MediaAudio, "oga": MediaAudio, "opus": MediaAudio, "wma": MediaAudio,

	"mp4": MediaVideo, "m4v": MediaVideo, "mov": MediaVideo, "avi": MediaVideo,
	"mkv": MediaVideo, "webm": MediaVideo, "mts": MediaVideo, "m2ts": MediaVideo,
	"3gp": MediaVideo, "wmv": MediaVideo, "mpg": MediaVideo, "mpeg": MediaVideo,
}

// MediaForFile classifies a file by extension.
func MediaForFile(name string) (Media, bool) {
	m, ok := mediaByExtension[Extension(name)]
	return m, ok
}

// ParseMedia validates a media kind string.
func ParseMedia(value string) (Media, bool) {
	switch m := Media(strings.ToLower(strings.TrimSpace(value))); m {
	case MediaImage, MediaAudio, MediaVideo:
		return m, true
	default:
		return "", false
	}
}

// Extension returns the lower-cased extension of name without the leading dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Stem returns the file name without directory and extension.
func Stem(name string) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		return base
	}
	return stem
}

// Asset is the subset of a gallery media record the conversion pipeline reads
// and writes.
//
// A freshly imported asset has OptimizedFileName equal to OriginalFileName;
// that equality means no real derivative has been produced yet.
type Asset struct {
	ID                        int64
	Media                     Media
	IsNew                     bool
	Dir                       string
	OriginalFileName          string
	OptimizedFileName         string
	RegenerateOptimizedOnSave bool
	RotateFlip                RotateFlip
	Width                     int
	Height                    int
	DurationSeconds           float64
	OriginalDiscarded         bool
}

// OriginalPath resolves the physical location of the original file.
func (a *Asset) OriginalPath() string {
	return filepath.Join(a.Dir, a.OriginalFileName)
}

// OptimizedPath resolves the physical location of the optimized derivative.
func (a *Asset) OptimizedPath() string {
	if a.OptimizedFileName == "" {
		return ""
	}
	return filepath.Join(a.Dir, a.OptimizedFileName)
}

// Format is the source extension used for encoder profile lookup.
func (a *Asset) Format() string {
	return Extension(a.OriginalFileName)
}

// HasDistinctOptimized reports whether the optimized name differs from the original.
func (a *Asset) HasDistinctOptimized() bool {
	return a.OptimizedFileName != "" && a.OptimizedFileName != a.OriginalFileName
}

// Clone returns a copy the caller may mutate freely.
func (a *Asset) Clone() *Asset {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// ErrAssetNotFound is returned by repositories for unknown asset IDs.
var ErrAssetNotFound = errors.New("asset not found")

// OptimizedResult is what a finished create_optimized conversion writes
// back. It never touches the pending rotation.
type OptimizedResult struct {
	AssetID           int64
	OptimizedFileName string
	Width             int
	Height            int
	DurationSeconds   float64
	DiscardOriginal   bool
	// SourceChanged is set when the original was rotated while the
	// derivative was being encoded. The regenerate flag and the stored
	// dimensions are then left alone.
	SourceChanged bool
}

// RotatedResult is what a finished rotate_original conversion writes back.
// The pending rotation is cleared only if it still equals Rotation, and the
// optimized file name is never touched.
type RotatedResult struct {
	AssetID         int64
	Rotation        RotateFlip
	Width           int
	Height          int
	DurationSeconds float64
}

// Repository is the persistence boundary for gallery assets. Each
// conversion kind persists only the columns it owns so concurrent requests
// for the other kind survive.
type Repository interface {
	Asset(ctx context.Context, id int64) (*Asset, error)
	SaveOptimized(ctx context.Context, result OptimizedResult) error
	SaveRotated(ctx context.Context, result RotatedResult) error
}
