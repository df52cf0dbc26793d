package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"mediaconv/internal/gallery"
)

// ErrDuplicateAsset is returned when an asset already exists for the same file.
var ErrDuplicateAsset = errors.New("asset already registered")

const assetColumns = "id, media, is_new, dir, original_file_name, optimized_file_name, regenerate_optimized, rotate_flip, width, height, duration_seconds, original_discarded"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*gallery.Asset, error) {
	var (
		asset       gallery.Asset
		media       string
		isNew       int
		optimized   sql.NullString
		regenerate  int
		rotateFlip  string
		discarded   int
		durationRaw sql.NullFloat64
	)
	if err := scanner.Scan(
		&asset.ID,
		&media,
		&isNew,
		&asset.Dir,
		&asset.OriginalFileName,
		&optimized,
		&regenerate,
		&rotateFlip,
		&asset.Width,
		&asset.Height,
		&durationRaw,
		&discarded,
	); err != nil {
		return nil, err
	}
	asset.Media = gallery.Media(media)
	asset.IsNew = isNew != 0
	asset.OptimizedFileName = optimized.String
	asset.RegenerateOptimizedOnSave = regenerate != 0
	asset.RotateFlip = gallery.RotateFlip(rotateFlip)
	asset.DurationSeconds = durationRaw.Float64
	asset.OriginalDiscarded = discarded != 0
	return &asset, nil
}

// AddAsset registers a new asset and assigns its ID. An empty optimized file
// name defaults to the original name, the "no derivative yet" marker.
func (s *Store) AddAsset(ctx context.Context, asset *gallery.Asset) (*gallery.Asset, error) {
	if asset == nil {
		return nil, errors.New("asset is nil")
	}
	if strings.TrimSpace(asset.Dir) == "" || strings.TrimSpace(asset.OriginalFileName) == "" {
		return nil, errors.New("asset dir and original file name are required")
	}
	stored := asset.Clone()
	if stored.OptimizedFileName == "" {
		stored.OptimizedFileName = stored.OriginalFileName
	}
	if stored.RotateFlip == "" {
		stored.RotateFlip = gallery.RotateNone
	}
	now := s.timestamp()

	res, err := s.execWithRetry(ctx,
		`INSERT INTO assets (
            media, is_new, dir, original_file_name, optimized_file_name, regenerate_optimized,
            rotate_flip, width, height, duration_seconds, original_discarded, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(stored.Media),
		boolToInt(stored.IsNew),
		stored.Dir,
		stored.OriginalFileName,
		nullableString(stored.OptimizedFileName),
		boolToInt(stored.RegenerateOptimizedOnSave),
		string(stored.RotateFlip),
		stored.Width,
		stored.Height,
		stored.DurationSeconds,
		boolToInt(stored.OriginalDiscarded),
		now,
		now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAsset, stored.OriginalPath())
		}
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	stored.ID = id
	return stored, nil
}

// Asset implements gallery.Repository.
func (s *Store) Asset(ctx context.Context, id int64) (*gallery.Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", gallery.ErrAssetNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// AssetByPath looks up an asset by its directory and original file name.
func (s *Store) AssetByPath(ctx context.Context, dir, name string) (*gallery.Asset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE dir = ? AND original_file_name = ?`, dir, name)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", gallery.ErrAssetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset by path: %w", err)
	}
	return asset, nil
}

// ListAssets returns assets ordered by ID, optionally filtered by media kind.
func (s *Store) ListAssets(ctx context.Context, media ...gallery.Media) ([]*gallery.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets`
	args := make([]any, 0, len(media))
	if len(media) > 0 {
		query += ` WHERE media IN (` + makePlaceholders(len(media)) + `)`
		for _, m := range media {
			args = append(args, string(m))
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []*gallery.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// SaveAsset persists every mutable field of an existing asset.
func (s *Store) SaveAsset(ctx context.Context, asset *gallery.Asset) error {
	if asset == nil {
		return errors.New("asset is nil")
	}
	return s.updateAsset(ctx, asset.ID,
		`media = ?, is_new = ?, optimized_file_name = ?, regenerate_optimized = ?, rotate_flip = ?,
         width = ?, height = ?, duration_seconds = ?, original_discarded = ?`,
		string(asset.Media),
		boolToInt(asset.IsNew),
		nullableString(asset.OptimizedFileName),
		boolToInt(asset.RegenerateOptimizedOnSave),
		string(asset.RotateFlip),
		asset.Width,
		asset.Height,
		asset.DurationSeconds,
		boolToInt(asset.OriginalDiscarded),
	)
}

// SaveOptimized implements gallery.Repository. Only optimize-owned columns
// are written; rotate_flip is left as stored.
func (s *Store) SaveOptimized(ctx context.Context, result gallery.OptimizedResult) error {
	hasDims := !result.SourceChanged && result.Width > 0 && result.Height > 0
	return s.updateAsset(ctx, result.AssetID,
		`optimized_file_name = ?,
         regenerate_optimized = CASE WHEN ? THEN regenerate_optimized ELSE 0 END,
         width = CASE WHEN ? THEN ? ELSE width END,
         height = CASE WHEN ? THEN ? ELSE height END,
         duration_seconds = CASE WHEN ? > 0 THEN ? ELSE duration_seconds END,
         original_discarded = CASE WHEN ? THEN 1 ELSE original_discarded END`,
		nullableString(result.OptimizedFileName),
		boolToInt(result.SourceChanged),
		boolToInt(hasDims), result.Width,
		boolToInt(hasDims), result.Height,
		result.DurationSeconds, result.DurationSeconds,
		boolToInt(result.DiscardOriginal),
	)
}

// SaveRotated implements gallery.Repository. The pending rotation is cleared
// only when it still matches the one applied. Without probed dimensions a
// quarter turn swaps the stored ones.
func (s *Store) SaveRotated(ctx context.Context, result gallery.RotatedResult) error {
	hasDims := result.Width > 0 && result.Height > 0
	swap := !hasDims && result.Rotation.SwapsDimensions()
	return s.updateAsset(ctx, result.AssetID,
		`rotate_flip = CASE WHEN rotate_flip = ? THEN ? ELSE rotate_flip END,
         width = CASE WHEN ? THEN ? WHEN ? THEN height ELSE width END,
         height = CASE WHEN ? THEN ? WHEN ? THEN width ELSE height END,
         duration_seconds = CASE WHEN ? > 0 THEN ? ELSE duration_seconds END,
         regenerate_optimized = 1`,
		string(result.Rotation), string(gallery.RotateNone),
		boolToInt(hasDims), result.Width, boolToInt(swap),
		boolToInt(hasDims), result.Height, boolToInt(swap),
		result.DurationSeconds, result.DurationSeconds,
	)
}

func (s *Store) updateAsset(ctx context.Context, id int64, set string, args ...any) error {
	args = append(args, s.timestamp(), id)
	res, err := s.execWithRetry(ctx, `UPDATE assets SET `+set+`, updated_at = ? WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update asset %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", gallery.ErrAssetNotFound, id)
	}
	return nil
}

// RemoveAsset deletes an asset record. Files on disk are untouched.
func (s *Store) RemoveAsset(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %d", gallery.ErrAssetNotFound, id)
	}
	return nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

var _ gallery.Repository = (*Store)(nil)
