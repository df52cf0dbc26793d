package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"mediaconv/internal/conversion"
	"mediaconv/internal/fsutil"
	"mediaconv/internal/gallery"
	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
)

// Evaluator receives every registered asset.
type Evaluator interface {
	EvaluateAndEnqueue(ctx context.Context, asset *gallery.Asset, kind queue.Kind) (conversion.Outcome, error)
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	Dirs []string
	// Settle is how long a file must go without write events before it is
	// registered.
	Settle          time.Duration
	OptimizedPrefix string
	Registrar       *Registrar
	Evaluator       Evaluator
	Logger          *slog.Logger
}

// Watcher registers media files that appear in the watched directories.
type Watcher struct {
	dirs      []string
	settle    time.Duration
	prefix    string
	registrar *Registrar
	evaluator Evaluator
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher validates opts and builds a watcher. Call Run to start it.
func NewWatcher(opts WatcherOptions) (*Watcher, error) {
	if opts.Registrar == nil || opts.Evaluator == nil {
		return nil, errors.New("library watcher: registrar and evaluator are required")
	}
	if opts.Settle <= 0 {
		opts.Settle = 5 * time.Second
	}
	return &Watcher{
		dirs:      opts.Dirs,
		settle:    opts.Settle,
		prefix:    opts.OptimizedPrefix,
		registrar: opts.Registrar,
		evaluator: opts.Evaluator,
		logger:    logging.NewComponentLogger(opts.Logger, "library-watcher"),
		pending:   make(map[string]time.Time),
	}, nil
}

// Run watches until ctx is cancelled. Directories that cannot be watched
// fail the call before any event is processed.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = fw.Close()
	}()
	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}
	w.logger.Info("library watcher started",
		logging.String("dirs", strings.Join(w.dirs, ",")),
		logging.Duration("settle", w.settle),
	)

	tick := max(w.settle/4, 10*time.Millisecond)
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("library watcher: event channel closed")
			}
			w.observe(event, time.Now())
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("library watcher: error channel closed")
			}
			w.logger.Warn("fsnotify watcher error", logging.Error(err))
		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				w.handle(ctx, path)
			}
		}
	}
}

func (w *Watcher) observe(event fsnotify.Event, now time.Time) {
	if !w.candidate(event.Name) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.pending[event.Name] = now
	}
}

// candidate filters out processor temp siblings, derivatives and files whose
// extension is not a known media type.
func (w *Watcher) candidate(path string) bool {
	name := filepath.Base(path)
	if fsutil.IsTempSibling(name) || strings.HasPrefix(name, ".") {
		return false
	}
	if w.prefix != "" && strings.HasPrefix(name, w.prefix) {
		return false
	}
	_, ok := gallery.MediaForFile(name)
	return ok
}

// settled removes and returns paths whose last event is older than the
// settle delay.
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return
	}
	asset, created, err := w.registrar.Register(ctx, path)
	if err != nil {
		logging.WarnWithContext(w.logger, "library file not registered", "library_register_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file will not be converted until added manually"),
		)
		return
	}
	if !created {
		return
	}
	if asset.Media == gallery.MediaImage {
		return
	}
	outcome, err := w.evaluator.EvaluateAndEnqueue(ctx, asset, queue.KindCreateOptimized)
	if err != nil {
		w.logger.Warn("library asset not evaluated", logging.Int64(logging.FieldAssetID, asset.ID), logging.Error(err))
		return
	}
	w.logger.Debug("library asset evaluated",
		logging.Int64(logging.FieldAssetID, asset.ID),
		logging.String("outcome", string(outcome.Disposition)),
	)
}
