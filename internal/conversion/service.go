package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"mediaconv/internal/derivative"
	"mediaconv/internal/encoder"
	"mediaconv/internal/fsutil"
	"mediaconv/internal/gallery"
	"mediaconv/internal/logging"
	"mediaconv/internal/metrics"
	"mediaconv/internal/queue"
	"mediaconv/internal/services"
)

// EncoderGate is the slice of encoder.Gate the service consults before
// enqueueing.
type EncoderGate interface {
	IsEncoderAvailable() bool
	ProfileResolver
}

// Dependencies are the collaborators a Service is built from. Metrics and
// Logger may be nil.
type Dependencies struct {
	Queue      *queue.Queue
	Repository gallery.Repository
	Gate       EncoderGate
	Invoker    encoder.Invoker
	Files      fsutil.FileSystem
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Service is the conversion pipeline facade used by request paths and the
// daemon.
type Service struct {
	queue     *queue.Queue
	gate      EncoderGate
	files     fsutil.FileSystem
	metrics   *metrics.Metrics
	logger    *slog.Logger
	settings  Settings
	processor *Processor

	drains singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	running    bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewService wires a service. The returned service is idle until Start is
// called; Process still drains in the background without it.
func NewService(settings Settings, deps Dependencies) (*Service, error) {
	switch {
	case deps.Queue == nil:
		return nil, errors.New("conversion: queue is required")
	case deps.Repository == nil:
		return nil, errors.New("conversion: repository is required")
	case deps.Gate == nil:
		return nil, errors.New("conversion: encoder gate is required")
	case deps.Invoker == nil:
		return nil, errors.New("conversion: invoker is required")
	}
	if deps.Files == nil {
		deps.Files = fsutil.OS{}
	}
	settings = settings.withDefaults()
	logger := logging.NewComponentLogger(deps.Logger, "conversion")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		queue:    deps.Queue,
		gate:     deps.Gate,
		files:    deps.Files,
		metrics:  deps.Metrics,
		logger:   logger,
		settings: settings,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.processor = &Processor{
		queue:    deps.Queue,
		repo:     deps.Repository,
		profiles: deps.Gate,
		invoker:  deps.Invoker,
		files:    deps.Files,
		metrics:  deps.Metrics,
		logger:   logger,
		settings: settings,
		followUp: s.regenerateAfterRotation,
	}
	return s, nil
}

// EvaluateAndEnqueue decides whether asset needs work of the given kind and
// enqueues it. Only contract violations return an error; every other result,
// including a missing encoder, is an Outcome.
func (s *Service) EvaluateAndEnqueue(ctx context.Context, asset *gallery.Asset, kind queue.Kind) (Outcome, error) {
	if asset == nil {
		return Outcome{}, services.Wrap(services.ErrInvalidRequest, "conversion", "evaluate", "asset is nil", nil)
	}
	if !kind.Valid() {
		return Outcome{}, services.Wrap(services.ErrInvalidRequest, "conversion", "evaluate", fmt.Sprintf("unknown kind %q", kind), nil)
	}
	ctx = services.WithAssetID(ctx, asset.ID)
	ctx = services.WithKind(ctx, string(kind))
	logger := logging.WithContext(ctx, s.logger)

	outcome, err := s.evaluate(asset, kind)
	if err != nil {
		return Outcome{}, err
	}
	s.metrics.Evaluated(kind, string(outcome.Disposition))
	logger.Debug("conversion evaluated",
		logging.String("outcome", string(outcome.Disposition)),
		logging.String("reason", string(outcome.Reason)),
	)
	if outcome.Disposition == DispositionEnqueued {
		logger.Info("conversion enqueued", logging.String(logging.FieldItemID, outcome.Item.ID))
		s.Process()
	}
	return outcome, nil
}

func (s *Service) evaluate(asset *gallery.Asset, kind queue.Kind) (Outcome, error) {
	decision := derivative.Evaluate(kind, asset, s.files, s.queue)
	if !decision.Required {
		if decision.Reason == derivative.ReasonAlreadyQueued {
			if kind == queue.KindRotateOriginal && asset.RotateFlip.Requested() {
				// A waiting rotation takes the latest requested orientation.
				return s.enqueue(asset, kind, derivative.ReasonRotationPending)
			}
			return s.existing(asset.ID, kind, decision.Reason), nil
		}
		return Outcome{Disposition: DispositionNotRequired, Reason: decision.Reason}, nil
	}
	if !s.gate.IsEncoderAvailable() {
		return Outcome{Disposition: DispositionEncoderUnavailable, Reason: decision.Reason}, nil
	}
	if _, ok := s.gate.ProfileFor(encoder.FormatOf(asset), kind); !ok {
		return Outcome{Disposition: DispositionNoProfile, Reason: decision.Reason}, nil
	}
	return s.enqueue(asset, kind, decision.Reason)
}

func (s *Service) enqueue(asset *gallery.Asset, kind queue.Kind, reason derivative.Reason) (Outcome, error) {
	req := queue.Request{AssetID: asset.ID, Kind: kind}
	if kind == queue.KindRotateOriginal {
		req.Rotation = asset.RotateFlip
	}
	item, created, err := s.queue.Enqueue(req)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrInvalidRequest, "conversion", "enqueue", "", err)
	}
	s.metrics.Enqueued(kind, created)
	if !created {
		return Outcome{Disposition: DispositionAlreadyQueued, Reason: derivative.ReasonAlreadyQueued, Item: &item}, nil
	}
	return Outcome{Disposition: DispositionEnqueued, Reason: reason, Item: &item}, nil
}

func (s *Service) existing(assetID int64, kind queue.Kind, reason derivative.Reason) Outcome {
	out := Outcome{Disposition: DispositionAlreadyQueued, Reason: reason}
	if item, ok := s.queue.Latest(assetID, kind); ok && item.Status.Active() {
		out.Item = &item
	}
	s.metrics.Enqueued(kind, false)
	return out
}

// ActiveItem returns the waiting or processing item for the pair.
func (s *Service) ActiveItem(assetID int64, kind queue.Kind) (queue.Item, bool) {
	item, ok := s.queue.Latest(assetID, kind)
	if !ok || !item.Status.Active() {
		return queue.Item{}, false
	}
	return item, true
}

// IsWaitingInQueueOrProcessing reports whether the pair has active work.
func (s *Service) IsWaitingInQueueOrProcessing(assetID int64, kind queue.Kind) bool {
	return s.queue.IsPendingOrProcessing(assetID, kind)
}

// Item returns a snapshot of a queue item.
func (s *Service) Item(id string) (queue.Item, bool) {
	return s.queue.Get(id)
}

// Queue exposes the underlying queue for status and maintenance paths.
func (s *Service) Queue() *queue.Queue {
	return s.queue
}

// Process arranges for waiting items to be drained without blocking the
// caller. With the worker loop running the queue signal is enough; otherwise
// a detached drain is started.
func (s *Service) Process() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running || s.ctx.Err() != nil {
		return
	}
	s.wg.Go(func() {
		for {
			if err := s.Drain(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("background drain failed", logging.Error(err))
			}
			if s.ctx.Err() != nil || s.queue.Stats().Waiting == 0 {
				return
			}
		}
	})
}

// Drain processes waiting items until none remain. Concurrent calls share a
// single in-flight drain.
func (s *Service) Drain(ctx context.Context) error {
	_, err, _ := s.drains.Do("drain", func() (any, error) {
		return nil, s.drain(ctx)
	})
	return err
}

func (s *Service) drain(ctx context.Context) error {
	for {
		var g errgroup.Group
		g.SetLimit(s.settings.Workers)
		for ctx.Err() == nil && s.queue.Stats().Waiting > 0 {
			// Go blocks for a free slot; the item is claimed only once a
			// worker is ready to heartbeat it.
			g.Go(func() error {
				claim, ok := s.queue.ClaimNext()
				if !ok {
					return nil
				}
				s.processor.Process(ctx, claim)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Follow-up work enqueued while the last items ran.
		if s.queue.Stats().Waiting == 0 {
			return nil
		}
	}
}

// Start launches the worker loop and stale-item reclamation. The loop stops
// when ctx is cancelled, StopWorker is called or the service is stopped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("conversion: worker already running")
	}
	if s.ctx.Err() != nil {
		return errors.New("conversion: service stopped")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	context.AfterFunc(s.ctx, cancel)
	done := make(chan struct{})
	s.running = true
	s.loopCancel = cancel
	s.loopDone = done

	var loops sync.WaitGroup
	loops.Go(func() { s.workerLoop(loopCtx) })
	loops.Go(func() { s.reclaimLoop(loopCtx) })
	s.wg.Go(func() {
		loops.Wait()
		cancel()
		s.mu.Lock()
		s.running = false
		s.loopCancel = nil
		s.loopDone = nil
		s.mu.Unlock()
		close(done)
	})
	s.logger.Info("conversion worker started",
		logging.Int("workers", s.settings.Workers),
		logging.Duration("poll_interval", s.settings.PollInterval),
	)
	return nil
}

// Running reports whether the worker loop is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// StopWorker cancels the worker loop and waits for it to exit. The service
// stays usable and may be started again.
func (s *Service) StopWorker() {
	s.mu.Lock()
	cancel, done := s.loopCancel, s.loopDone
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("conversion worker stopped")
}

// Stop cancels in-flight work and waits for background goroutines. A
// stopped service cannot be restarted.
func (s *Service) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Service) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(s.settings.PollInterval)
	defer ticker.Stop()
	for {
		if err := s.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("drain failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-s.queue.Signal():
		case <-ticker.C:
		}
	}
}

func (s *Service) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(s.settings.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReclaimStale(time.Now())
		}
	}
}

// ReclaimStale fails processing items whose heartbeat is older than the
// configured timeout relative to now.
func (s *Service) ReclaimStale(now time.Time) []queue.Item {
	reclaimed := s.queue.ReclaimStale(now.Add(-s.settings.HeartbeatTimeout))
	for _, item := range reclaimed {
		s.metrics.Finished(item)
		logging.WarnWithContext(s.logger, "stale conversion reclaimed", "conversion_stale",
			logging.String(logging.FieldItemID, item.ID),
			logging.Int64(logging.FieldAssetID, item.AssetID),
			logging.String(logging.FieldKind, string(item.Kind)),
			logging.String(logging.FieldErrorHint, "retry the item once the encoder is healthy"),
			logging.String(logging.FieldImpact, "item marked error without a derivative"),
		)
	}
	return reclaimed
}

// Retry re-enqueues failed items and wakes the processor.
func (s *Service) Retry(ids ...string) ([]queue.Item, error) {
	items, err := s.queue.RetryFailed(ids...)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		s.Process()
	}
	return items, nil
}

func (s *Service) regenerateAfterRotation(ctx context.Context, asset *gallery.Asset) {
	outcome, err := s.EvaluateAndEnqueue(ctx, asset, queue.KindCreateOptimized)
	if err != nil {
		s.logger.Warn("optimized regeneration not evaluated", logging.Int64(logging.FieldAssetID, asset.ID), logging.Error(err))
		return
	}
	s.logger.Debug("optimized regeneration after rotation",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("outcome", string(outcome.Disposition)),
	)
}
