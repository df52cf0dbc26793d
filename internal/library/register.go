package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mediaconv/internal/encoder"
	"mediaconv/internal/gallery"
	"mediaconv/internal/logging"
	"mediaconv/internal/services"
)

// AssetStore is the catalog surface the library writes to.
type AssetStore interface {
	AddAsset(ctx context.Context, asset *gallery.Asset) (*gallery.Asset, error)
	AssetByPath(ctx context.Context, dir, name string) (*gallery.Asset, error)
}

// Registrar turns media files into catalog assets.
type Registrar struct {
	store  AssetStore
	prober encoder.Prober
	logger *slog.Logger
}

// NewRegistrar builds a registrar. prober may be nil.
func NewRegistrar(store AssetStore, prober encoder.Prober, logger *slog.Logger) *Registrar {
	return &Registrar{store: store, prober: prober, logger: logging.NewComponentLogger(logger, "library")}
}

// Register adds path as a ready (not new) asset. An already registered path
// returns the existing asset with created=false.
func (r *Registrar) Register(ctx context.Context, path string) (*gallery.Asset, bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false, services.Wrap(services.ErrInvalidRequest, "library", "resolve path", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, false, services.Wrap(services.ErrSourceMissing, "library", "stat", abs, err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, services.Wrap(services.ErrInvalidRequest, "library", "stat", "not a regular file: "+abs, nil)
	}
	dir, name := filepath.Dir(abs), filepath.Base(abs)
	media, ok := gallery.MediaForFile(name)
	if !ok {
		return nil, false, services.Wrap(services.ErrInvalidRequest, "library", "classify",
			fmt.Sprintf("unsupported extension %q", filepath.Ext(name)), nil)
	}

	if existing, err := r.store.AssetByPath(ctx, dir, name); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, gallery.ErrAssetNotFound) {
		return nil, false, services.Wrap(services.ErrPersistence, "library", "lookup asset", abs, err)
	}

	asset := &gallery.Asset{
		Media:             media,
		Dir:               dir,
		OriginalFileName:  name,
		OptimizedFileName: name,
		RotateFlip:        gallery.RotateNone,
	}
	if r.prober != nil && media != gallery.MediaImage {
		meta, err := r.prober.Probe(ctx, abs)
		if err != nil {
			r.logger.Debug("original probe failed", logging.String("path", abs), logging.Error(err))
		} else {
			asset.Width, asset.Height = meta.Width, meta.Height
			asset.DurationSeconds = meta.DurationSeconds
		}
	}
	stored, err := r.store.AddAsset(ctx, asset)
	if err != nil {
		return nil, false, services.Wrap(services.ErrPersistence, "library", "add asset", abs, err)
	}
	r.logger.Info("asset registered",
		logging.Int64(logging.FieldAssetID, stored.ID),
		logging.String("path", abs),
		logging.String("media", string(media)),
	)
	return stored, true, nil
}
