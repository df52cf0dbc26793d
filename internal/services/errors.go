package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrSourceMissing  = errors.New("source missing")
	ErrEncoderFailure = errors.New("encoder failure")
	ErrTimeout        = errors.New("timeout")
	ErrNoProfile      = errors.New("no encoder profile")
	ErrAssetMissing   = errors.New("asset missing")
	ErrPersistence    = errors.New("persistence failure")
	ErrConfiguration  = errors.New("configuration error")
	ErrTransient      = errors.New("transient failure")
)

// Error kinds recorded on failed conversion items.
const (
	KindSourceMissing      = "source_missing"
	KindEncoderUnavailable = "encoder_unavailable"
	KindEncoderFailure     = "encoder_failure"
	KindTimeout            = "timeout"
	KindNoProfile          = "no_profile"
	KindAssetMissing       = "asset_missing"
	KindPersistence        = "persistence"
	KindStale              = "stale"
	KindInternal           = "internal"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf maps an error to the kind string stored on a failed item.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceMissing):
		return KindSourceMissing
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrNoProfile):
		return KindNoProfile
	case errors.Is(err, ErrAssetMissing):
		return KindAssetMissing
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	case errors.Is(err, ErrEncoderFailure):
		return KindEncoderFailure
	default:
		return KindInternal
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
