package daemon_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mediaconv/internal/catalog"
	"mediaconv/internal/config"
	"mediaconv/internal/conversion"
	"mediaconv/internal/daemon"
	"mediaconv/internal/derivative"
	"mediaconv/internal/encoder"
	"mediaconv/internal/gallery"
	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
	"mediaconv/internal/services"
	"mediaconv/internal/testsupport"
)

type stubProber struct{}

func (stubProber) Probe(context.Context, string) (encoder.Metadata, error) {
	return encoder.Metadata{Width: 1280, Height: 720, DurationSeconds: 4}, nil
}

func newTestDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*daemon.Daemon, *config.Config) {
	t.Helper()
	return newTestDaemonWithEncoder(t, testsupport.CopyEncoder(t, t.TempDir()), opts...)
}

func newTestDaemonWithEncoder(t *testing.T, bin string, opts ...testsupport.ConfigOption) (*daemon.Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithEncoderBinary(bin)}, opts...)...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenCatalog(t, cfg)
	d, err := daemon.New(cfg, store, logging.NewNop(), daemon.Options{Prober: stubProber{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d, cfg
}

func waitForItem(t *testing.T, d *daemon.Daemon, id string, status queue.Status) queue.Item {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if item, ok := d.QueueItem(id); ok && item.Status == status {
			return item
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("item %s never reached %s", id, status)
	return queue.Item{}
}

// waitForHistory polls because the catalog sink runs after the item turns
// terminal.
func waitForHistory(t *testing.T, d *daemon.Daemon, assetID int64) []queue.Item {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		items, err := d.History(context.Background(), catalog.HistoryFilter{AssetID: assetID})
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(items) > 0 {
			return items
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no history recorded for asset %d", assetID)
	return nil
}

func TestDaemonStartStop(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if status.APIAddress == "" {
		t.Fatal("expected api address while running")
	}
	if !status.Catalog.DatabaseReadable {
		t.Fatalf("expected readable catalog, got %+v", status.Catalog)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestDaemonSecondInstanceLocked(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	other, err := daemon.New(cfg, testsupport.MustOpenCatalog(t, cfg), logging.NewNop(), daemon.Options{Prober: stubProber{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = other.Close() })
	if err := other.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonAddAssetProducesDerivative(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	path := filepath.Join(testsupport.BaseDir(cfg), "gallery", "holiday.mov")
	testsupport.WriteFile(t, path, 512)
	asset, created, outcome, err := d.AddAsset(ctx, path)
	if err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	if !created || outcome.Disposition != conversion.DispositionEnqueued {
		t.Fatalf("expected new enqueued asset, got created=%v outcome=%+v", created, outcome)
	}
	waitForItem(t, d, outcome.Item.ID, queue.StatusCompleted)

	stored, err := d.Asset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	if stored.OptimizedFileName != "zOpt_holiday.mp4" {
		t.Fatalf("unexpected optimized name %q", stored.OptimizedFileName)
	}
	if stored.Width != 1280 || stored.Height != 720 {
		t.Fatalf("expected probed dimensions, got %dx%d", stored.Width, stored.Height)
	}

	_, created, again, err := d.AddAsset(ctx, path)
	if err != nil {
		t.Fatalf("AddAsset again: %v", err)
	}
	if created || again.Disposition != conversion.DispositionNotRequired {
		t.Fatalf("expected existing asset to need nothing, got created=%v outcome=%+v", created, again)
	}

	history := waitForHistory(t, d, asset.ID)
	if len(history) != 1 || history[0].Status != queue.StatusCompleted {
		t.Fatalf("expected one completed history row, got %+v", history)
	}
}

func TestDaemonRotateAsset(t *testing.T) {
	dir := t.TempDir()
	release := filepath.Join(dir, "release")
	d, cfg := newTestDaemonWithEncoder(t, testsupport.BlockingEncoder(t, dir, release))
	t.Cleanup(func() { testsupport.WriteFile(t, release, 1) })
	ctx := context.Background()

	path := filepath.Join(testsupport.BaseDir(cfg), "gallery", "turn.mov")
	testsupport.WriteFile(t, path, 128)
	asset, _, _, err := d.AddAsset(ctx, path)
	if err != nil {
		t.Fatalf("AddAsset: %v", err)
	}

	if _, _, err := d.RotateAsset(ctx, asset.ID, gallery.RotateNone); !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}

	_, outcome, err := d.RotateAsset(ctx, asset.ID, gallery.Rotate90)
	if err != nil {
		t.Fatalf("RotateAsset: %v", err)
	}
	if outcome.Disposition != conversion.DispositionEnqueued {
		t.Fatalf("expected rotate enqueued, got %+v", outcome)
	}
	if !d.Service().IsWaitingInQueueOrProcessing(asset.ID, queue.KindRotateOriginal) {
		t.Fatal("expected rotate item active")
	}
	_, again, err := d.RotateAsset(ctx, asset.ID, gallery.Rotate180)
	if err != nil {
		t.Fatalf("RotateAsset again: %v", err)
	}
	if again.Disposition != conversion.DispositionAlreadyQueued {
		t.Fatalf("expected already queued, got %+v", again)
	}
	if again.Item == nil || again.Item.ID != outcome.Item.ID {
		t.Fatalf("expected existing rotate item %s, got %+v", outcome.Item.ID, again.Item)
	}
	waiting, ok := d.QueueItem(outcome.Item.ID)
	if !ok || waiting.Status != queue.StatusWaiting || waiting.Rotation != gallery.Rotate180 {
		t.Fatalf("expected waiting item to carry rotate180, got %+v ok=%v", waiting, ok)
	}
	stored, err := d.Asset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	if stored.RotateFlip != gallery.Rotate180 {
		t.Fatalf("expected stored rotate180, got %q", stored.RotateFlip)
	}
	if got := len(d.ListQueue(queue.StatusWaiting, queue.StatusProcessing)); got > 2 {
		t.Fatalf("expected at most optimize and rotate items, got %d", got)
	}
}

func TestDaemonRotateDuringRotationEncodeIsNotApplied(t *testing.T) {
	dir := t.TempDir()
	d, cfg := newTestDaemonWithEncoder(t, testsupport.StagedEncoder(t, dir))
	t.Cleanup(func() { testsupport.ReleaseStage(t, dir, "mov") })
	testsupport.ReleaseStage(t, dir, "mp4")
	ctx := context.Background()

	path := filepath.Join(testsupport.BaseDir(cfg), "gallery", "turn.mov")
	testsupport.WriteFile(t, path, 128)
	asset, _, added, err := d.AddAsset(ctx, path)
	if err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	waitForItem(t, d, added.Item.ID, queue.StatusCompleted)

	_, first, err := d.RotateAsset(ctx, asset.ID, gallery.Rotate90)
	if err != nil || first.Disposition != conversion.DispositionEnqueued {
		t.Fatalf("RotateAsset: %+v %v", first, err)
	}
	waitForItem(t, d, first.Item.ID, queue.StatusProcessing)

	_, second, err := d.RotateAsset(ctx, asset.ID, gallery.Rotate180)
	if err != nil {
		t.Fatalf("RotateAsset again: %v", err)
	}
	if second.Disposition != conversion.DispositionAlreadyQueued || second.Reason != derivative.ReasonRotationNotApplied {
		t.Fatalf("expected rotation not applied, got %+v", second)
	}
	if second.Item == nil || second.Item.Rotation != gallery.Rotate90 {
		t.Fatalf("expected running rotate90 item, got %+v", second.Item)
	}
	stored, err := d.Asset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("Asset: %v", err)
	}
	if stored.RotateFlip != gallery.Rotate90 {
		t.Fatalf("expected stored rotation to stay rotate90, got %q", stored.RotateFlip)
	}

	testsupport.ReleaseStage(t, dir, "mov")
	waitForItem(t, d, first.Item.ID, queue.StatusCompleted)
	if stored, _ = d.Asset(ctx, asset.ID); stored.RotateFlip != gallery.RotateNone {
		t.Fatalf("expected applied rotation cleared, got %q", stored.RotateFlip)
	}
}

func TestDaemonMissingAsset(t *testing.T) {
	d, _ := newTestDaemon(t)
	_, err := d.Enqueue(context.Background(), 999, queue.KindCreateOptimized)
	if !errors.Is(err, services.ErrAssetMissing) {
		t.Fatalf("expected asset missing, got %v", err)
	}
	_, err = d.Enqueue(context.Background(), 0, queue.KindCreateOptimized)
	if !errors.Is(err, services.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestDaemonClearHistory(t *testing.T) {
	d, cfg := newTestDaemon(t)
	ctx := context.Background()

	path := filepath.Join(testsupport.BaseDir(cfg), "gallery", "gone.mov")
	testsupport.WriteFile(t, path, 64)
	asset, _, outcome, err := d.AddAsset(ctx, path)
	if err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	waitForItem(t, d, outcome.Item.ID, queue.StatusCompleted)
	waitForHistory(t, d, asset.ID)

	removed, persisted, err := d.ClearHistory(ctx)
	if err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if removed != 1 || persisted != 1 {
		t.Fatalf("expected one removed item, got memory=%d persisted=%d", removed, persisted)
	}
	if items := d.ListQueue(); len(items) != 0 {
		t.Fatalf("expected empty queue, got %+v", items)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(path), "zOpt_gone.mp4")); err != nil {
		t.Fatalf("derivative should survive history clear: %v", err)
	}
}
