package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mediaconv/internal/catalog"
	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
	"mediaconv/internal/testsupport"
)

func newAsset(dir, name string) *gallery.Asset {
	return &gallery.Asset{
		Media:            gallery.MediaVideo,
		IsNew:            true,
		Dir:              dir,
		OriginalFileName: name,
	}
}

func TestAddAssetDefaultsOptimizedName(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	added := testsupport.MustAddAsset(t, store, newAsset("/photos/2026", "clip.mov"))
	if added.ID == 0 {
		t.Fatal("expected asset ID to be assigned")
	}

	fetched, err := store.Asset(ctx, added.ID)
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	want := &gallery.Asset{
		ID:                added.ID,
		Media:             gallery.MediaVideo,
		IsNew:             true,
		Dir:               "/photos/2026",
		OriginalFileName:  "clip.mov",
		OptimizedFileName: "clip.mov",
		RotateFlip:        gallery.RotateNone,
	}
	if diff := cmp.Diff(want, fetched); diff != "" {
		t.Fatalf("asset mismatch (-want +got):\n%s", diff)
	}

	if _, err := store.AddAsset(ctx, newAsset("/photos/2026", "clip.mov")); !errors.Is(err, catalog.ErrDuplicateAsset) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestAssetNotFound(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	if _, err := store.Asset(context.Background(), 42); !errors.Is(err, gallery.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
	if err := store.SaveOptimized(context.Background(), gallery.OptimizedResult{AssetID: 42}); !errors.Is(err, gallery.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound on optimized save, got %v", err)
	}
	if err := store.SaveRotated(context.Background(), gallery.RotatedResult{AssetID: 42, Rotation: gallery.Rotate90}); !errors.Is(err, gallery.ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound on rotated save, got %v", err)
	}
}

func TestSaveOptimizedLeavesOwnershipFields(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	added := testsupport.MustAddAsset(t, store, newAsset("/a", "clip.mov"))

	err := store.SaveOptimized(ctx, gallery.OptimizedResult{
		AssetID:           added.ID,
		OptimizedFileName: "zOpt_clip.mp4",
		Width:             1280,
		Height:            720,
		DurationSeconds:   3.5,
	})
	if err != nil {
		t.Fatalf("SaveOptimized: %v", err)
	}

	fetched, err := store.Asset(ctx, added.ID)
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	if !fetched.IsNew {
		t.Fatal("expected is_new to be untouched by conversion save")
	}
	if fetched.OptimizedFileName != "zOpt_clip.mp4" || fetched.Width != 1280 || fetched.DurationSeconds != 3.5 || fetched.RegenerateOptimizedOnSave {
		t.Fatalf("conversion fields not saved: %+v", fetched)
	}

	fetched.IsNew = false
	if err := store.SaveAsset(ctx, fetched); err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	fetched, _ = store.Asset(ctx, added.ID)
	if fetched.IsNew {
		t.Fatal("expected SaveAsset to persist is_new")
	}
}

func TestSaveOptimizedKeepsPendingRotation(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	added := testsupport.MustAddAsset(t, store, newAsset("/a", "clip.mov"))

	added.RotateFlip = gallery.Rotate90
	if err := store.SaveAsset(ctx, added); err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	if err := store.SaveOptimized(ctx, gallery.OptimizedResult{AssetID: added.ID, OptimizedFileName: "zOpt_clip.mp4"}); err != nil {
		t.Fatalf("SaveOptimized: %v", err)
	}
	fetched, _ := store.Asset(ctx, added.ID)
	if fetched.RotateFlip != gallery.Rotate90 {
		t.Fatalf("expected pending rotation to survive optimize save, got %q", fetched.RotateFlip)
	}
}

func TestSaveOptimizedAfterSourceChangeKeepsRegenerate(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	added := testsupport.MustAddAsset(t, store, newAsset("/a", "clip.mov"))

	if err := store.SaveRotated(ctx, gallery.RotatedResult{AssetID: added.ID, Rotation: gallery.Rotate90, Width: 720, Height: 1280}); err != nil {
		t.Fatalf("SaveRotated: %v", err)
	}
	err := store.SaveOptimized(ctx, gallery.OptimizedResult{
		AssetID:           added.ID,
		OptimizedFileName: "zOpt_clip.mp4",
		Width:             1280,
		Height:            720,
		SourceChanged:     true,
	})
	if err != nil {
		t.Fatalf("SaveOptimized: %v", err)
	}
	fetched, _ := store.Asset(ctx, added.ID)
	if !fetched.RegenerateOptimizedOnSave {
		t.Fatal("expected regenerate flag to survive a stale optimize save")
	}
	if fetched.Width != 720 || fetched.Height != 1280 {
		t.Fatalf("expected rotated dimensions to be kept, got %dx%d", fetched.Width, fetched.Height)
	}
}

func TestSaveRotatedKeepsOptimizedFileName(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	added := testsupport.MustAddAsset(t, store, newAsset("/a", "clip.mov"))

	added.RotateFlip = gallery.Rotate90
	added.Width, added.Height = 1920, 1080
	if err := store.SaveAsset(ctx, added); err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	if err := store.SaveOptimized(ctx, gallery.OptimizedResult{AssetID: added.ID, OptimizedFileName: "zOpt_clip.mp4"}); err != nil {
		t.Fatalf("SaveOptimized: %v", err)
	}
	if err := store.SaveRotated(ctx, gallery.RotatedResult{AssetID: added.ID, Rotation: gallery.Rotate90}); err != nil {
		t.Fatalf("SaveRotated: %v", err)
	}

	fetched, _ := store.Asset(ctx, added.ID)
	if fetched.OptimizedFileName != "zOpt_clip.mp4" {
		t.Fatalf("expected optimized file name to survive rotate save, got %q", fetched.OptimizedFileName)
	}
	if fetched.RotateFlip != gallery.RotateNone {
		t.Fatalf("expected applied rotation to be cleared, got %q", fetched.RotateFlip)
	}
	if fetched.Width != 1080 || fetched.Height != 1920 {
		t.Fatalf("expected swapped dimensions, got %dx%d", fetched.Width, fetched.Height)
	}
	if !fetched.RegenerateOptimizedOnSave {
		t.Fatal("expected regenerate flag after rotation")
	}
}

func TestSaveRotatedKeepsNewerRotation(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	added := testsupport.MustAddAsset(t, store, newAsset("/a", "clip.mov"))

	added.RotateFlip = gallery.Rotate180
	if err := store.SaveAsset(ctx, added); err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	if err := store.SaveRotated(ctx, gallery.RotatedResult{AssetID: added.ID, Rotation: gallery.Rotate90}); err != nil {
		t.Fatalf("SaveRotated: %v", err)
	}
	fetched, _ := store.Asset(ctx, added.ID)
	if fetched.RotateFlip != gallery.Rotate180 {
		t.Fatalf("expected newer rotation to survive, got %q", fetched.RotateFlip)
	}
}

func TestListAssetsFiltersByMedia(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	testsupport.MustAddAsset(t, store, newAsset("/a", "one.mov"))
	audio := newAsset("/a", "two.mp3")
	audio.Media = gallery.MediaAudio
	testsupport.MustAddAsset(t, store, audio)

	all, err := store.ListAssets(context.Background())
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 assets, got %d (%v)", len(all), err)
	}
	onlyAudio, err := store.ListAssets(context.Background(), gallery.MediaAudio)
	if err != nil || len(onlyAudio) != 1 || onlyAudio[0].OriginalFileName != "two.mp3" {
		t.Fatalf("unexpected audio filter result %+v (%v)", onlyAudio, err)
	}

	found, err := store.AssetByPath(context.Background(), "/a", "two.mp3")
	if err != nil || found.Media != gallery.MediaAudio {
		t.Fatalf("AssetByPath: %+v %v", found, err)
	}
}

func TestRecordOutcomeAndHistory(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	first := queue.Item{
		ID: "a", AssetID: 1, Kind: queue.KindCreateOptimized, Status: queue.StatusCompleted, Attempt: 1,
		EnqueuedAt: base, StartedAt: base.Add(time.Second), CompletedAt: base.Add(2 * time.Second),
	}
	second := queue.Item{
		ID: "b", AssetID: 2, Kind: queue.KindRotateOriginal, Status: queue.StatusError, Attempt: 1,
		ErrorKind: "timeout", StatusDetail: "exceeded 15m0s", Rotation: gallery.Rotate90,
		EnqueuedAt: base.Add(time.Minute), StartedAt: base.Add(time.Minute), CompletedAt: base.Add(2 * time.Minute),
	}
	for _, item := range []queue.Item{first, second} {
		if err := store.RecordOutcome(ctx, item); err != nil {
			t.Fatalf("RecordOutcome: %v", err)
		}
	}

	items, err := store.History(ctx, catalog.HistoryFilter{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if diff := cmp.Diff([]queue.Item{second, first}, items); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	failed, err := store.History(ctx, catalog.HistoryFilter{Status: queue.StatusError})
	if err != nil || len(failed) != 1 || failed[0].ID != "b" {
		t.Fatalf("unexpected filtered history %+v (%v)", failed, err)
	}

	n, err := store.ClearHistory(ctx)
	if err != nil || n != 2 {
		t.Fatalf("ClearHistory: %d %v", n, err)
	}
}

func TestCheckHealth(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	testsupport.MustAddAsset(t, store, newAsset("/a", "clip.mov"))

	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || health.SchemaVersion != 1 || health.Assets != 1 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	added, err := store.AddAsset(context.Background(), newAsset("/a", "clip.mov"))
	if err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenCatalog(t, cfg)
	if _, err := reopened.Asset(context.Background(), added.ID); err != nil {
		t.Fatalf("expected asset after reopen: %v", err)
	}
}
