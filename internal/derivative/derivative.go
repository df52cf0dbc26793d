package derivative

import (
	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
)

// Reason explains an evaluation result.
type Reason string

const (
	ReasonNewAsset          Reason = "new_asset"
	ReasonAlreadyQueued     Reason = "already_queued"
	ReasonDerivativeMissing Reason = "derivative_missing"
	ReasonNameMatches       Reason = "name_matches_original"
	ReasonRegenerate        Reason = "regenerate_requested"
	ReasonCurrent           Reason = "derivative_current"
	ReasonNoRotation        Reason = "no_rotation_requested"
	ReasonRotationPending   Reason = "rotation_pending"
	ReasonSourceMissing     Reason = "source_missing"
	ReasonUnsupportedMedia  Reason = "unsupported_media"
	ReasonUnknownKind       Reason = "unknown_kind"
	ReasonCheckFailed       Reason = "file_check_failed"
)

// ReasonRotationNotApplied is reported by callers when a new rotation arrives
// while an earlier one is already being encoded.
const ReasonRotationNotApplied Reason = "rotation_not_applied"

// Decision is the outcome of a requirement check.
type Decision struct {
	Required bool
	Reason   Reason
}

func required(r Reason) Decision { return Decision{Required: true, Reason: r} }
func skip(r Reason) Decision     { return Decision{Reason: r} }

// FileChecker reports whether a regular file exists at path.
type FileChecker interface {
	Exists(path string) (bool, error)
}

// PendingChecker reports whether a pair already has active work.
type PendingChecker interface {
	IsPendingOrProcessing(assetID int64, kind queue.Kind) bool
}

// Evaluate dispatches to the evaluator for kind.
func Evaluate(kind queue.Kind, asset *gallery.Asset, files FileChecker, pending PendingChecker) Decision {
	switch kind {
	case queue.KindCreateOptimized:
		return Optimized(asset, files, pending)
	case queue.KindRotateOriginal:
		return Rotation(asset, files)
	default:
		return skip(ReasonUnknownKind)
	}
}

// Optimized decides whether an audio or video asset needs an optimized
// derivative. It is required when the asset is not new, no optimized work is
// waiting or processing for it, and either the derivative file is missing,
// the optimized name still equals the original name, or regeneration was
// requested. Once the original has been discarded nothing can be rebuilt.
func Optimized(asset *gallery.Asset, files FileChecker, pending PendingChecker) Decision {
	if asset.Media != gallery.MediaAudio && asset.Media != gallery.MediaVideo {
		return skip(ReasonUnsupportedMedia)
	}
	if asset.IsNew {
		return skip(ReasonNewAsset)
	}
	if asset.OriginalDiscarded {
		return skip(ReasonSourceMissing)
	}
	if pending != nil && pending.IsPendingOrProcessing(asset.ID, queue.KindCreateOptimized) {
		return skip(ReasonAlreadyQueued)
	}
	if asset.OptimizedFileName == asset.OriginalFileName {
		return required(ReasonNameMatches)
	}
	if asset.RegenerateOptimizedOnSave {
		return required(ReasonRegenerate)
	}
	exists, err := files.Exists(asset.OptimizedPath())
	if err != nil {
		return skip(ReasonCheckFailed)
	}
	if !exists {
		return required(ReasonDerivativeMissing)
	}
	return skip(ReasonCurrent)
}

// Rotation decides whether a video original needs re-orientation. It is
// required when the asset is not new, a rotation is pending and the original
// file exists. A missing original is a silent no-op.
func Rotation(asset *gallery.Asset, files FileChecker) Decision {
	if asset.Media != gallery.MediaVideo {
		return skip(ReasonUnsupportedMedia)
	}
	if asset.IsNew {
		return skip(ReasonNewAsset)
	}
	if !asset.RotateFlip.Requested() {
		return skip(ReasonNoRotation)
	}
	exists, err := files.Exists(asset.OriginalPath())
	if err != nil {
		return skip(ReasonCheckFailed)
	}
	if !exists {
		return skip(ReasonSourceMissing)
	}
	return required(ReasonRotationPending)
}
