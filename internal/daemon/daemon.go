package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"mediaconv/internal/catalog"
	"mediaconv/internal/config"
	"mediaconv/internal/conversion"
	"mediaconv/internal/deps"
	"mediaconv/internal/derivative"
	"mediaconv/internal/encoder"
	"mediaconv/internal/fsutil"
	"mediaconv/internal/gallery"
	"mediaconv/internal/library"
	"mediaconv/internal/logging"
	"mediaconv/internal/metrics"
	"mediaconv/internal/queue"
	"mediaconv/internal/services"
)

// Daemon owns the conversion pipeline for the lifetime of the process and
// enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *catalog.Store
	queue     *queue.Queue
	gate      *encoder.Gate
	service   *conversion.Service
	metrics   *metrics.Metrics
	registrar *library.Registrar
	watcher   *library.Watcher
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Options overrides collaborators, mostly for tests. Zero values build the
// production stack from configuration.
type Options struct {
	Invoker encoder.Invoker
	Prober  encoder.Prober
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	SocketPath   string
	APIAddress   string
	Queue        queue.Health
	Workers      int
	Engine       string
	Encoder      []deps.Status
	Catalog      catalog.Health
	Watching     []string
}

// New wires the queue, encoder gate, invokers and conversion service around
// an open catalog. The queue records terminal items in the catalog history.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and catalog store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	q := queue.New(queue.Options{
		HistoryLimit: cfg.Queue.HistoryLimit,
		Sink:         store,
		Logger:       logger,
	})
	gate := encoder.NewGate(cfg.Encoder)
	m := metrics.New(q)

	prober := opts.Prober
	if prober == nil {
		prober = encoder.FFprobe{Binary: cfg.Encoder.FFprobeBinary}
	}
	invoker := opts.Invoker
	if invoker == nil {
		ffmpeg := encoder.NewFFmpeg(cfg.Encoder.FFmpegBinary, cfg.KillGrace(), prober, logger)
		var drapto encoder.Invoker
		if cfg.Encoder.Engine == config.EngineDrapto {
			drapto = encoder.NewDrapto(fsutil.OS{}, prober, logger)
		}
		invoker = encoder.NewDispatcher(cfg.Encoder.Engine, ffmpeg, drapto)
	}

	svc, err := conversion.NewService(conversion.SettingsFromConfig(cfg), conversion.Dependencies{
		Queue:      q,
		Repository: store,
		Gate:       gate,
		Invoker:    invoker,
		Metrics:    m,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create conversion service: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		queue:     q,
		gate:      gate,
		service:   svc,
		metrics:   m,
		registrar: library.NewRegistrar(store, prober, logger),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}
	if len(cfg.Library.WatchDirs) > 0 {
		d.watcher, err = library.NewWatcher(library.WatcherOptions{
			Dirs:            cfg.Library.WatchDirs,
			Settle:          cfg.SettleDelay(),
			OptimizedPrefix: cfg.Gallery.OptimizedPrefix,
			Registrar:       d.registrar,
			Evaluator:       svc,
			Logger:          logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create library watcher: %w", err)
		}
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then launches the conversion worker, the
// library watcher and the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another mediaconv daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.service.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start conversion worker: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.service.StopWorker()
		_ = d.lock.Unlock()
		return err
	}
	if d.watcher != nil {
		d.wg.Go(func() {
			if err := d.watcher.Run(runCtx); err != nil {
				logging.WarnWithContext(d.logger, "library watcher stopped", "library_watch_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "new files in watch directories are not registered"),
					logging.String(logging.FieldErrorHint, "check library.watch_dirs exist and are readable"),
				)
			}
		})
	}

	d.ctx, d.cancel = runCtx, cancel
	d.running.Store(true)
	d.logger.Info("mediaconv daemon started",
		logging.String("lock", d.lockPath),
		logging.String("engine", d.gate.Engine()),
		logging.Bool("encoder_available", d.gate.IsEncoderAvailable()),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. Waiting
// items stay queued and run after the next Start.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.service.StopWorker()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("mediaconv daemon stopped")
}

// Close stops the daemon and the conversion service. The catalog store is
// owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	d.service.Stop()
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Service exposes the conversion service.
func (d *Daemon) Service() *conversion.Service {
	return d.service
}

// Metrics exposes the Prometheus collectors.
func (d *Daemon) Metrics() *metrics.Metrics {
	return d.metrics
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.CheckHealth(ctx)
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.Paths.SocketPath,
		APIAddress:   d.api.address(),
		Queue:        d.queue.Health(),
		Workers:      d.cfg.Queue.Workers,
		Engine:       d.gate.Engine(),
		Encoder:      d.gate.Status(),
		Catalog:      health,
	}
	if d.watcher != nil {
		status.Watching = append([]string(nil), d.cfg.Library.WatchDirs...)
	}
	return status
}

// EncoderAvailable reports the gate's cached binary check.
func (d *Daemon) EncoderAvailable() bool {
	return d.gate.IsEncoderAvailable()
}

// EncoderCheck re-resolves the encoder binaries, bypassing the gate cache.
func (d *Daemon) EncoderCheck() (string, bool, []deps.Status) {
	d.gate.Invalidate()
	return d.gate.Engine(), d.gate.IsEncoderAvailable(), d.gate.Status()
}

// ListQueue returns queue snapshots filtered by optional statuses.
func (d *Daemon) ListQueue(statuses ...queue.Status) []queue.Item {
	return d.queue.List(statuses...)
}

// QueueItem returns a single queue snapshot.
func (d *Daemon) QueueItem(id string) (queue.Item, bool) {
	return d.queue.Get(id)
}

// Enqueue evaluates the asset for the given kind and enqueues it when
// required.
func (d *Daemon) Enqueue(ctx context.Context, assetID int64, kind queue.Kind) (conversion.Outcome, error) {
	asset, err := d.asset(ctx, assetID)
	if err != nil {
		return conversion.Outcome{}, err
	}
	return d.service.EvaluateAndEnqueue(ctx, asset, kind)
}

// Process wakes the processor.
func (d *Daemon) Process() {
	d.service.Process()
}

// Retry re-enqueues errored items, all of them when ids is empty.
func (d *Daemon) Retry(ids ...string) ([]queue.Item, error) {
	return d.service.Retry(ids...)
}

// ClearHistory drops terminal items from memory and the catalog.
func (d *Daemon) ClearHistory(ctx context.Context) (int, int64, error) {
	removed := d.queue.ClearHistory()
	persisted, err := d.store.ClearHistory(ctx)
	if err != nil {
		return removed, 0, fmt.Errorf("clear catalog history: %w", err)
	}
	return removed, persisted, nil
}

// History returns recorded outcomes from the catalog.
func (d *Daemon) History(ctx context.Context, filter catalog.HistoryFilter) ([]queue.Item, error) {
	return d.store.History(ctx, filter)
}

// AddAsset registers a media file and, for audio and video, evaluates it for
// an optimized derivative.
func (d *Daemon) AddAsset(ctx context.Context, path string) (*gallery.Asset, bool, conversion.Outcome, error) {
	asset, created, err := d.registrar.Register(ctx, path)
	if err != nil {
		return nil, false, conversion.Outcome{}, err
	}
	if asset.Media == gallery.MediaImage {
		return asset, created, conversion.Outcome{Disposition: conversion.DispositionNotRequired}, nil
	}
	outcome, err := d.service.EvaluateAndEnqueue(ctx, asset, queue.KindCreateOptimized)
	if err != nil {
		return asset, created, conversion.Outcome{}, err
	}
	return asset, created, outcome, nil
}

// ListAssets returns catalog assets, optionally filtered by media kind.
func (d *Daemon) ListAssets(ctx context.Context, media ...gallery.Media) ([]*gallery.Asset, error) {
	return d.store.ListAssets(ctx, media...)
}

// Asset returns one catalog asset.
func (d *Daemon) Asset(ctx context.Context, id int64) (*gallery.Asset, error) {
	return d.asset(ctx, id)
}

// RotateAsset records a pending orientation change and evaluates the
// rotate conversion.
func (d *Daemon) RotateAsset(ctx context.Context, id int64, rotation gallery.RotateFlip) (*gallery.Asset, conversion.Outcome, error) {
	if !rotation.Requested() {
		return nil, conversion.Outcome{}, services.Wrap(services.ErrInvalidRequest, "daemon", "rotate", "rotation is required", nil)
	}
	asset, err := d.asset(ctx, id)
	if err != nil {
		return nil, conversion.Outcome{}, err
	}
	if active, ok := d.service.ActiveItem(id, queue.KindRotateOriginal); ok && active.Status == queue.StatusProcessing {
		return asset, rotationNotApplied(active), nil
	}
	asset.RotateFlip = rotation
	if err := d.store.SaveAsset(ctx, asset); err != nil {
		return nil, conversion.Outcome{}, services.Wrap(services.ErrPersistence, "daemon", "rotate", "save asset", err)
	}
	outcome, err := d.service.EvaluateAndEnqueue(ctx, asset, queue.KindRotateOriginal)
	if err != nil {
		return asset, outcome, err
	}
	// The item may have been claimed between the check and the enqueue.
	if outcome.Item != nil && outcome.Item.Rotation != rotation {
		return asset, rotationNotApplied(*outcome.Item), nil
	}
	return asset, outcome, nil
}

// rotationNotApplied reports a rotation request that arrived after the
// active item had already started encoding.
func rotationNotApplied(active queue.Item) conversion.Outcome {
	return conversion.Outcome{
		Disposition: conversion.DispositionAlreadyQueued,
		Reason:      derivative.ReasonRotationNotApplied,
		Item:        &active,
	}
}

// RegenerateAsset sets the regenerate flag and evaluates the optimized
// conversion.
func (d *Daemon) RegenerateAsset(ctx context.Context, id int64) (*gallery.Asset, conversion.Outcome, error) {
	asset, err := d.asset(ctx, id)
	if err != nil {
		return nil, conversion.Outcome{}, err
	}
	asset.RegenerateOptimizedOnSave = true
	if err := d.store.SaveAsset(ctx, asset); err != nil {
		return nil, conversion.Outcome{}, services.Wrap(services.ErrPersistence, "daemon", "regenerate", "save asset", err)
	}
	outcome, err := d.service.EvaluateAndEnqueue(ctx, asset, queue.KindCreateOptimized)
	return asset, outcome, err
}

func (d *Daemon) asset(ctx context.Context, id int64) (*gallery.Asset, error) {
	if id <= 0 {
		return nil, services.Wrap(services.ErrInvalidRequest, "daemon", "load asset", fmt.Sprintf("invalid asset id %d", id), nil)
	}
	asset, err := d.store.Asset(ctx, id)
	if err != nil {
		if errors.Is(err, gallery.ErrAssetNotFound) {
			return nil, services.Wrap(services.ErrAssetMissing, "daemon", "load asset", "", err)
		}
		return nil, services.Wrap(services.ErrPersistence, "daemon", "load asset", "", err)
	}
	return asset, nil
}
