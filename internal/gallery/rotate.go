package gallery

import (
	"fmt"
	"strings"
)

// RotateFlip is a pending orientation change requested for an original.
type RotateFlip string

const (
	RotateNone RotateFlip = "none"
	Rotate90   RotateFlip = "rotate90"
	Rotate180  RotateFlip = "rotate180"
	Rotate270  RotateFlip = "rotate270"
	FlipX      RotateFlip = "flipx"
	FlipY      RotateFlip = "flipy"
)

// ParseRotateFlip accepts the canonical names plus a few common aliases.
func ParseRotateFlip(value string) (RotateFlip, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none", "0":
		return RotateNone, nil
	case "rotate90", "90", "cw":
		return Rotate90, nil
	case "rotate180", "180":
		return Rotate180, nil
	case "rotate270", "270", "ccw":
		return Rotate270, nil
	case "flipx", "hflip":
		return FlipX, nil
	case "flipy", "vflip":
		return FlipY, nil
	default:
		return "", fmt.Errorf("unknown rotation %q", value)
	}
}

// Requested reports whether r asks for an orientation change.
func (r RotateFlip) Requested() bool {
	return r != "" && r != RotateNone
}

// SwapsDimensions reports whether applying r exchanges width and height.
func (r RotateFlip) SwapsDimensions() bool {
	return r == Rotate90 || r == Rotate270
}

// Filter returns the ffmpeg video filter that applies r.
func (r RotateFlip) Filter() string {
	switch r {
	case Rotate90:
		return "transpose=1"
	case Rotate180:
		return "transpose=1,transpose=1"
	case Rotate270:
		return "transpose=2"
	case FlipX:
		return "hflip"
	case FlipY:
		return "vflip"
	default:
		return ""
	}
}
