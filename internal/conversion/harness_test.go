package conversion_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mediaconv/internal/catalog"
	"mediaconv/internal/config"
	"mediaconv/internal/conversion"
	"mediaconv/internal/encoder"
	"mediaconv/internal/gallery"
	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
	"mediaconv/internal/testsupport"
)

type harness struct {
	cfg     *config.Config
	store   *catalog.Store
	queue   *queue.Queue
	svc     *conversion.Service
	gallery string
}

type harnessOptions struct {
	settings func(*conversion.Settings)
	repo     func(gallery.Repository) gallery.Repository
	invoker  func(encoder.Invoker) encoder.Invoker
	config   []testsupport.ConfigOption
}

type harnessOption func(*harnessOptions)

func withSettings(fn func(*conversion.Settings)) harnessOption {
	return func(o *harnessOptions) { o.settings = fn }
}

func withRepository(wrap func(gallery.Repository) gallery.Repository) harnessOption {
	return func(o *harnessOptions) { o.repo = wrap }
}

func withInvoker(wrap func(encoder.Invoker) encoder.Invoker) harnessOption {
	return func(o *harnessOptions) { o.invoker = wrap }
}

func withConfig(opts ...testsupport.ConfigOption) harnessOption {
	return func(o *harnessOptions) { o.config = append(o.config, opts...) }
}

func newHarness(t *testing.T, encoderBinary string, opts ...harnessOption) *harness {
	t.Helper()
	var o harnessOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithEncoderBinary(encoderBinary)}, o.config...)...)
	store := testsupport.MustOpenCatalog(t, cfg)
	logger := logging.NewNop()
	q := queue.New(queue.Options{Sink: store, Logger: logger})

	var repo gallery.Repository = store
	if o.repo != nil {
		repo = o.repo(store)
	}
	settings := conversion.SettingsFromConfig(cfg)
	if o.settings != nil {
		o.settings(&settings)
	}
	var invoker encoder.Invoker = encoder.NewFFmpeg(encoderBinary, time.Second, nil, logger)
	if o.invoker != nil {
		invoker = o.invoker(invoker)
	}
	svc, err := conversion.NewService(settings, conversion.Dependencies{
		Queue:      q,
		Repository: repo,
		Gate:       encoder.NewGate(cfg.Encoder),
		Invoker:    invoker,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Stop)

	dir := filepath.Join(testsupport.BaseDir(cfg), "gallery")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir gallery: %v", err)
	}
	return &harness{cfg: cfg, store: store, queue: q, svc: svc, gallery: dir}
}

// addVideo writes an original file and registers an asset for it.
func (h *harness) addVideo(t *testing.T, name string, mutate func(*gallery.Asset)) *gallery.Asset {
	t.Helper()
	testsupport.WriteFile(t, filepath.Join(h.gallery, name), 256)
	asset := &gallery.Asset{
		Media:             gallery.MediaVideo,
		Dir:               h.gallery,
		OriginalFileName:  name,
		OptimizedFileName: name,
		Width:             1920,
		Height:            1080,
	}
	if mutate != nil {
		mutate(asset)
	}
	return testsupport.MustAddAsset(t, h.store, asset)
}

func (h *harness) asset(t *testing.T, id int64) *gallery.Asset {
	t.Helper()
	asset, err := h.store.Asset(context.Background(), id)
	if err != nil {
		t.Fatalf("load asset %d: %v", id, err)
	}
	return asset
}

func (h *harness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := h.svc.Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}

func (h *harness) item(t *testing.T, id string) queue.Item {
	t.Helper()
	item, ok := h.queue.Get(id)
	if !ok {
		t.Fatalf("item %s not found", id)
	}
	return item
}

// waitForStatus polls until the item reaches status.
func (h *harness) waitForStatus(t *testing.T, id string, status queue.Status) queue.Item {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if item, ok := h.queue.Get(id); ok && item.Status == status {
			return item
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("item %s never reached %s", id, status)
	return queue.Item{}
}

// assertNoTempFiles fails if any encoder temp sibling remains in dir.
func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".mediaconv-") {
			t.Fatalf("leftover temp file %s", entry.Name())
		}
	}
}

type failingSaves struct {
	gallery.Repository
}

var errDiskFull = errors.New("disk full")

func (failingSaves) SaveOptimized(context.Context, gallery.OptimizedResult) error {
	return errDiskFull
}

func (failingSaves) SaveRotated(context.Context, gallery.RotatedResult) error {
	return errDiskFull
}
