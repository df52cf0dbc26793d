package api

import (
	"time"

	"mediaconv/internal/catalog"
	"mediaconv/internal/conversion"
	"mediaconv/internal/deps"
	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
)

// FromQueueItem converts a queue snapshot to its API representation.
func FromQueueItem(item queue.Item) QueueItem {
	dto := QueueItem{
		ID:            item.ID,
		AssetID:       item.AssetID,
		Kind:          string(item.Kind),
		Status:        string(item.Status),
		ErrorKind:     item.ErrorKind,
		StatusDetail:  item.StatusDetail,
		Attempt:       item.Attempt,
		EnqueuedAt:    formatTime(item.EnqueuedAt),
		StartedAt:     formatTime(item.StartedAt),
		CompletedAt:   formatTime(item.CompletedAt),
		LastHeartbeat: formatTime(item.LastHeartbeat),
	}
	if item.Rotation.Requested() {
		dto.Rotation = string(item.Rotation)
	}
	return dto
}

// FromQueueItems converts a slice of queue snapshots into API DTOs.
func FromQueueItems(items []queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromStats converts queue counts.
func FromStats(stats queue.Stats) QueueStats {
	return QueueStats{
		Waiting:    stats.Waiting,
		Processing: stats.Processing,
		Completed:  stats.Completed,
		Error:      stats.Error,
		Total:      stats.Total(),
	}
}

// FromAsset converts a catalog asset.
func FromAsset(asset *gallery.Asset) Asset {
	if asset == nil {
		return Asset{}
	}
	rotate := asset.RotateFlip
	if rotate == "" {
		rotate = gallery.RotateNone
	}
	return Asset{
		ID:                  asset.ID,
		Media:               string(asset.Media),
		IsNew:               asset.IsNew,
		Dir:                 asset.Dir,
		OriginalFileName:    asset.OriginalFileName,
		OptimizedFileName:   asset.OptimizedFileName,
		RegenerateOptimized: asset.RegenerateOptimizedOnSave,
		RotateFlip:          string(rotate),
		Width:               asset.Width,
		Height:              asset.Height,
		DurationSeconds:     asset.DurationSeconds,
		OriginalDiscarded:   asset.OriginalDiscarded,
	}
}

// FromAssets converts a slice of catalog assets.
func FromAssets(assets []*gallery.Asset) []Asset {
	if len(assets) == 0 {
		return nil
	}
	out := make([]Asset, 0, len(assets))
	for _, asset := range assets {
		out = append(out, FromAsset(asset))
	}
	return out
}

// FromOutcome converts an evaluate-and-enqueue result.
func FromOutcome(outcome conversion.Outcome) Outcome {
	dto := Outcome{
		Disposition: string(outcome.Disposition),
		Reason:      string(outcome.Reason),
	}
	if outcome.Item != nil {
		item := FromQueueItem(*outcome.Item)
		dto.Item = &item
	}
	return dto
}

// FromDependencies converts binary availability checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Resolved:    dep.Resolved,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromCatalogHealth converts catalog diagnostics.
func FromCatalogHealth(health catalog.Health) CatalogHealth {
	return CatalogHealth{
		Path:          health.DBPath,
		Exists:        health.DatabaseExists,
		Readable:      health.DatabaseReadable,
		SchemaVersion: health.SchemaVersion,
		Assets:        health.Assets,
		HistoryRows:   health.HistoryRows,
		Error:         health.Error,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
