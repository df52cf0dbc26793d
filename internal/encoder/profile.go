package encoder

import (
	"fmt"
	"strings"

	"mediaconv/internal/config"
	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
)

// Placeholders expanded in profile arguments.
const (
	PlaceholderSource       = "{source}"
	PlaceholderTarget       = "{target}"
	PlaceholderRotateFilter = "{rotate_filter}"
)

// Profile is an encoder argument template for one source format and kind.
type Profile struct {
	Kind   queue.Kind
	Source string
	Output string
	Args   []string
}

// ProfilesFromConfig converts configured profiles, normalizing source keys.
func ProfilesFromConfig(profiles []config.Profile) []Profile {
	out := make([]Profile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, Profile{
			Kind:   queue.Kind(strings.TrimSpace(p.Kind)),
			Source: normalizeSource(p.Source),
			Output: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p.Output), ".")),
			Args:   append([]string(nil), p.Args...),
		})
	}
	return out
}

func normalizeSource(source string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(source), "."))
}

// OutputExtension returns the derivative extension for a source extension.
func (p Profile) OutputExtension(sourceExt string) string {
	if p.Output != "" {
		return p.Output
	}
	return sourceExt
}

// Format identifies what a profile is matched against.
type Format struct {
	Extension string
	Media     gallery.Media
}

// FormatOf derives the lookup format from an asset's original file.
func FormatOf(asset *gallery.Asset) Format {
	if asset == nil {
		return Format{}
	}
	return Format{Extension: asset.Format(), Media: asset.Media}
}

// lookupKeys lists profile source keys from most to least specific.
func (f Format) lookupKeys() []string {
	keys := make([]string, 0, 3)
	if ext := normalizeSource(f.Extension); ext != "" {
		keys = append(keys, ext)
	}
	if f.Media != "" {
		keys = append(keys, "*"+string(f.Media))
	}
	return append(keys, "*")
}

// ExpandArgs substitutes placeholders in the profile arguments. An empty
// rotation expands {rotate_filter} to ffmpeg's pass-through filter.
func ExpandArgs(args []string, source, target string, rotation gallery.RotateFlip) ([]string, error) {
	filter := rotation.Filter()
	if filter == "" {
		filter = "null"
	}
	replacer := strings.NewReplacer(
		PlaceholderSource, source,
		PlaceholderTarget, target,
		PlaceholderRotateFilter, filter,
	)
	expanded := make([]string, 0, len(args))
	sawTarget := false
	for _, arg := range args {
		if strings.Contains(arg, PlaceholderTarget) {
			sawTarget = true
		}
		expanded = append(expanded, replacer.Replace(arg))
	}
	if !sawTarget {
		return nil, fmt.Errorf("profile arguments missing %s", PlaceholderTarget)
	}
	return expanded, nil
}
