package api

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mediaconv/internal/conversion"
	"mediaconv/internal/deps"
	"mediaconv/internal/derivative"
	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
)

func TestFromQueueItem(t *testing.T) {
	enqueued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	item := queue.Item{
		ID:           "item-1",
		AssetID:      7,
		Kind:         queue.KindRotateOriginal,
		Status:       queue.StatusError,
		StatusDetail: "exit status 1",
		ErrorKind:    "encoder_failure",
		Rotation:     gallery.Rotate90,
		Attempt:      2,
		EnqueuedAt:   enqueued,
	}

	got := FromQueueItem(item)
	want := QueueItem{
		ID:           "item-1",
		AssetID:      7,
		Kind:         "rotate_original",
		Status:       "error",
		ErrorKind:    "encoder_failure",
		StatusDetail: "exit status 1",
		Rotation:     "rotate90",
		Attempt:      2,
		EnqueuedAt:   "2026-03-01T11:00:00.000Z",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FromQueueItem mismatch (-want +got):\n%s", diff)
	}

	item.Rotation = gallery.RotateNone
	if got := FromQueueItem(item); got.Rotation != "" {
		t.Fatalf("expected no rotation for none, got %q", got.Rotation)
	}
}

func TestFromQueueItemsEmpty(t *testing.T) {
	if got := FromQueueItems(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestFromStatsTotals(t *testing.T) {
	got := FromStats(queue.Stats{Waiting: 1, Processing: 2, Completed: 3, Error: 4})
	if got.Total != 10 {
		t.Fatalf("Total = %d, want 10", got.Total)
	}
}

func TestFromAssetDefaultsRotation(t *testing.T) {
	asset := &gallery.Asset{
		ID:                        3,
		Media:                     gallery.MediaVideo,
		Dir:                       "/gallery",
		OriginalFileName:          "clip.mov",
		OptimizedFileName:         "zOpt_clip.mp4",
		RegenerateOptimizedOnSave: true,
		Width:                     1280,
		Height:                    720,
		DurationSeconds:           4.5,
	}
	got := FromAsset(asset)
	if got.RotateFlip != "none" || !got.RegenerateOptimized || got.Media != "video" {
		t.Fatalf("unexpected asset dto: %+v", got)
	}
	if empty := FromAsset(nil); empty.ID != 0 {
		t.Fatalf("expected zero dto for nil asset, got %+v", empty)
	}
}

func TestFromOutcome(t *testing.T) {
	item := queue.Item{ID: "abc", AssetID: 1, Kind: queue.KindCreateOptimized, Status: queue.StatusWaiting}
	got := FromOutcome(conversion.Outcome{
		Disposition: conversion.DispositionEnqueued,
		Reason:      derivative.ReasonNewAsset,
		Item:        &item,
	})
	if got.Disposition != "enqueued" || got.Reason != "new_asset" {
		t.Fatalf("unexpected outcome: %+v", got)
	}
	if got.Item == nil || got.Item.ID != "abc" || got.Item.Status != "waiting" {
		t.Fatalf("unexpected outcome item: %+v", got.Item)
	}

	if got := FromOutcome(conversion.Outcome{Disposition: conversion.DispositionNotRequired}); got.Item != nil {
		t.Fatalf("expected no item, got %+v", got.Item)
	}
}

func TestFromDependencies(t *testing.T) {
	got := FromDependencies([]deps.Status{
		{Name: "FFmpeg", Command: "ffmpeg", Resolved: "/usr/bin/ffmpeg", Available: true},
		{Name: "FFprobe", Command: "ffprobe", Optional: true, Detail: "not found"},
	})
	want := []DependencyStatus{
		{Name: "FFmpeg", Command: "ffmpeg", Resolved: "/usr/bin/ffmpeg", Available: true},
		{Name: "FFprobe", Command: "ffprobe", Optional: true, Detail: "not found"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("FromDependencies mismatch (-want +got):\n%s", diff)
	}
}
