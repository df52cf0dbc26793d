package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"mediaconv/internal/encoder"
	"mediaconv/internal/fsutil"
	"mediaconv/internal/gallery"
	"mediaconv/internal/logging"
	"mediaconv/internal/metrics"
	"mediaconv/internal/queue"
	"mediaconv/internal/services"
)

// ProfileResolver looks up encoder profiles.
type ProfileResolver interface {
	ProfileFor(format encoder.Format, kind queue.Kind) (encoder.Profile, bool)
}

// FollowUpFunc is called after a completed item leaves the asset flagged for
// regeneration so the optimized derivative can be rebuilt from the current
// original.
type FollowUpFunc func(ctx context.Context, asset *gallery.Asset)

// Processor executes claimed conversion items one at a time per call.
type Processor struct {
	queue    *queue.Queue
	repo     gallery.Repository
	profiles ProfileResolver
	invoker  encoder.Invoker
	files    fsutil.FileSystem
	metrics  *metrics.Metrics
	logger   *slog.Logger
	settings Settings
	followUp FollowUpFunc
}

// errClaimLost marks work abandoned because the claim was reclaimed.
var errClaimLost = errors.New("claim lost")

// failure carries an error plus the encoder diagnostic for the item detail.
type failure struct {
	err        error
	diagnostic string
}

// Process runs one claimed item to a terminal status and returns the final
// snapshot. If the claim was reclaimed meanwhile, nothing is recorded and the
// claim's last snapshot is returned.
func (p *Processor) Process(ctx context.Context, claim *queue.Claim) queue.Item {
	item := claim.Item
	ctx = services.WithItemID(ctx, item.ID)
	ctx = services.WithAssetID(ctx, item.AssetID)
	ctx = services.WithKind(ctx, string(item.Kind))
	logger := logging.WithContext(ctx, p.logger)

	workCtx, cancelWork := context.WithCancel(ctx)
	defer cancelWork()
	var hb sync.WaitGroup
	hb.Go(func() { p.heartbeat(workCtx, claim, cancelWork, logger) })

	logger.Info("conversion started", logging.Int("attempt", item.Attempt))
	var fail *failure
	switch item.Kind {
	case queue.KindCreateOptimized:
		fail = p.optimize(workCtx, claim, logger)
	case queue.KindRotateOriginal:
		fail = p.rotate(workCtx, claim, logger)
	default:
		fail = &failure{err: fmt.Errorf("%w: unknown kind %q", services.ErrInvalidRequest, item.Kind)}
	}
	cancelWork()
	hb.Wait()

	final, err := p.finish(claim, fail)
	if err != nil {
		if errors.Is(err, queue.ErrNotClaimed) {
			logger.Info("conversion abandoned after claim was reclaimed")
		} else {
			logging.ErrorWithContext(logger, "conversion status not recorded", "status_update_failed", logging.Error(err))
		}
		return claim.Item
	}
	p.metrics.Finished(final)

	elapsed := final.CompletedAt.Sub(final.StartedAt)
	if final.Status == queue.StatusCompleted {
		logger.Info("conversion completed", logging.Duration("elapsed", elapsed))
		p.followUpIfFlagged(context.WithoutCancel(ctx), final.AssetID, logger)
	} else {
		logging.ErrorWithContext(logger, "conversion failed", "conversion_failed",
			logging.String(logging.FieldErrorKind, final.ErrorKind),
			logging.String("detail", final.StatusDetail),
			logging.String(logging.FieldErrorHint, errorHint(final.ErrorKind)),
			logging.Duration("elapsed", elapsed),
		)
	}
	return final
}

func (p *Processor) finish(claim *queue.Claim, fail *failure) (queue.Item, error) {
	if fail == nil {
		return p.queue.Complete(claim, "")
	}
	if errors.Is(fail.err, errClaimLost) {
		return queue.Item{}, queue.ErrNotClaimed
	}
	detail := fail.err.Error()
	if fail.diagnostic != "" {
		detail += "\n" + fail.diagnostic
	}
	return p.queue.Fail(claim, services.KindOf(fail.err), detail)
}

// heartbeat refreshes the claim until ctx ends. Losing the claim cancels the
// in-flight work.
func (p *Processor) heartbeat(ctx context.Context, claim *queue.Claim, cancel context.CancelFunc, logger *slog.Logger) {
	ticker := time.NewTicker(p.settings.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.Heartbeat(claim); err != nil {
				logging.WarnWithContext(logger, "conversion claim lost", "claim_lost",
					logging.Error(err),
					logging.String(logging.FieldImpact, "encoder stopped; item was marked stale"),
				)
				cancel()
				return
			}
		}
	}
}

// followUpIfFlagged runs after the item left the active set, so a
// regeneration requested while it ran is not deduplicated against it.
func (p *Processor) followUpIfFlagged(ctx context.Context, assetID int64, logger *slog.Logger) {
	if p.followUp == nil {
		return
	}
	asset, err := p.repo.Asset(ctx, assetID)
	if err != nil {
		logging.WarnWithContext(logger, "regeneration check skipped", "regeneration_check_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "derivative may stay stale until the next evaluation"),
		)
		return
	}
	if asset.RegenerateOptimizedOnSave {
		p.followUp(ctx, asset)
	}
}

// stillClaimed lets a finished encode bail out early; writes are guarded by
// queue.Publish.
func (p *Processor) stillClaimed(claim *queue.Claim) bool {
	return p.queue.Heartbeat(claim) == nil
}

func (p *Processor) loadAsset(ctx context.Context, id int64) (*gallery.Asset, *failure) {
	asset, err := p.repo.Asset(ctx, id)
	if err != nil {
		if errors.Is(err, gallery.ErrAssetNotFound) {
			return nil, &failure{err: services.Wrap(services.ErrAssetMissing, "conversion", "load asset", "", err)}
		}
		return nil, &failure{err: services.Wrap(services.ErrPersistence, "conversion", "load asset", "", err)}
	}
	return asset, nil
}

func (p *Processor) requireSource(asset *gallery.Asset) *failure {
	source := asset.OriginalPath()
	exists, err := p.files.Exists(source)
	if err != nil {
		return &failure{err: services.Wrap(services.ErrSourceMissing, "conversion", "check source", source, err)}
	}
	if !exists || asset.OriginalDiscarded {
		return &failure{err: services.Wrap(services.ErrSourceMissing, "conversion", "check source", "source missing: "+source, nil)}
	}
	return nil
}

func (p *Processor) profileFor(asset *gallery.Asset, kind queue.Kind) (encoder.Profile, *failure) {
	profile, ok := p.profiles.ProfileFor(encoder.FormatOf(asset), kind)
	if !ok {
		return encoder.Profile{}, &failure{err: services.Wrap(services.ErrNoProfile, "conversion", "resolve profile",
			fmt.Sprintf("%s for .%s", kind, asset.Format()), nil)}
	}
	return profile, nil
}

// encode runs the invoker into a fresh temp sibling of dest. On failure the
// temp file is already removed.
func (p *Processor) encode(ctx context.Context, claim *queue.Claim, asset *gallery.Asset, profile encoder.Profile, dest string) (string, encoder.Result, *failure) {
	tmp := fsutil.TempSibling(dest)
	result, err := p.invoker.Invoke(ctx, encoder.Request{
		ItemID:   claim.Item.ID,
		Kind:     claim.Item.Kind,
		Media:    asset.Media,
		Source:   asset.OriginalPath(),
		Target:   tmp,
		Profile:  profile,
		Rotation: claim.Item.Rotation,
		Timeout:  p.settings.EncoderTimeout,
	})
	if !p.stillClaimed(claim) {
		err = errClaimLost
	}
	if err != nil {
		p.removeQuietly(tmp)
		return "", result, &failure{err: err, diagnostic: result.Diagnostic}
	}
	return tmp, result, nil
}

// outputExtension honours invokers that pick the container themselves.
func (p *Processor) outputExtension(asset *gallery.Asset, profile encoder.Profile) string {
	if override, ok := p.invoker.(encoder.ContainerOverride); ok {
		if ext, forced := override.OutputContainer(queue.KindCreateOptimized, asset.Media); forced {
			return ext
		}
	}
	return profile.OutputExtension(asset.Format())
}

// publish runs fn under the claim. Losing the claim discards tmp.
func (p *Processor) publish(claim *queue.Claim, tmp string, fn func(queue.PublishState) error) *failure {
	err := p.queue.Publish(claim, fn)
	if err == nil {
		return nil
	}
	p.removeQuietly(tmp)
	if errors.Is(err, queue.ErrNotClaimed) || errors.Is(err, queue.ErrNotFound) {
		return &failure{err: errClaimLost}
	}
	return &failure{err: err}
}

func (p *Processor) optimize(ctx context.Context, claim *queue.Claim, logger *slog.Logger) *failure {
	asset, fail := p.loadAsset(ctx, claim.Item.AssetID)
	if fail != nil {
		return fail
	}
	if fail := p.requireSource(asset); fail != nil {
		return fail
	}
	profile, fail := p.profileFor(asset, queue.KindCreateOptimized)
	if fail != nil {
		return fail
	}

	finalName := p.settings.OptimizedPrefix + gallery.Stem(asset.OriginalFileName) + "." + p.outputExtension(asset, profile)
	finalPath := filepath.Join(asset.Dir, finalName)
	tmp, result, fail := p.encode(ctx, claim, asset, profile, finalPath)
	if fail != nil {
		return fail
	}

	saved := gallery.OptimizedResult{
		AssetID:           asset.ID,
		OptimizedFileName: finalName,
		Width:             result.Metadata.Width,
		Height:            result.Metadata.Height,
		DurationSeconds:   result.Metadata.DurationSeconds,
		DiscardOriginal:   p.settings.DiscardOriginal,
	}
	fail = p.publish(claim, tmp, func(state queue.PublishState) error {
		if err := p.files.ReplaceFile(tmp, finalPath); err != nil {
			return services.Wrap(services.ErrEncoderFailure, "conversion", "publish derivative", finalPath, err)
		}
		saved.SourceChanged = state.SourceRewritten
		if err := p.repo.SaveOptimized(context.WithoutCancel(ctx), saved); err != nil {
			if finalName != asset.OptimizedFileName {
				p.removeQuietly(finalPath)
			}
			return services.Wrap(services.ErrPersistence, "conversion", "save asset", "", err)
		}
		return nil
	})
	if fail != nil {
		return fail
	}

	if asset.HasDistinctOptimized() && asset.OptimizedFileName != finalName {
		p.removeQuietly(asset.OptimizedPath())
	}
	if saved.DiscardOriginal && !asset.OriginalDiscarded {
		if err := p.files.Remove(asset.OriginalPath()); err != nil {
			logging.WarnWithContext(logger, "original not discarded", "discard_original_failed",
				logging.String("path", asset.OriginalPath()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "original remains on disk"),
			)
		}
	}
	if saved.SourceChanged {
		logger.Info("original rotated during encode; derivative will be rebuilt")
	}
	logger.Debug("derivative published", logging.String("path", finalPath), logging.Duration("encode", result.Elapsed))
	return nil
}

func (p *Processor) rotate(ctx context.Context, claim *queue.Claim, logger *slog.Logger) *failure {
	asset, fail := p.loadAsset(ctx, claim.Item.AssetID)
	if fail != nil {
		return fail
	}
	if fail := p.requireSource(asset); fail != nil {
		return fail
	}
	profile, fail := p.profileFor(asset, queue.KindRotateOriginal)
	if fail != nil {
		return fail
	}

	original := asset.OriginalPath()
	tmp, result, fail := p.encode(ctx, claim, asset, profile, original)
	if fail != nil {
		return fail
	}
	fail = p.publish(claim, tmp, func(queue.PublishState) error {
		if err := p.files.ReplaceFile(tmp, original); err != nil {
			return services.Wrap(services.ErrEncoderFailure, "conversion", "replace original", original, err)
		}
		err := p.repo.SaveRotated(context.WithoutCancel(ctx), gallery.RotatedResult{
			AssetID:         asset.ID,
			Rotation:        claim.Item.Rotation,
			Width:           result.Metadata.Width,
			Height:          result.Metadata.Height,
			DurationSeconds: result.Metadata.DurationSeconds,
		})
		if err != nil {
			return services.Wrap(services.ErrPersistence, "conversion", "save asset", "original already rotated", err)
		}
		return nil
	})
	if fail != nil {
		return fail
	}
	logger.Debug("original rotated", logging.String("rotation", string(claim.Item.Rotation)))
	return nil
}

func (p *Processor) removeQuietly(path string) {
	if err := p.files.Remove(path); err != nil {
		p.logger.Warn("cleanup failed", logging.String("path", path), logging.Error(err))
	}
}

func errorHint(kind string) string {
	switch kind {
	case services.KindSourceMissing:
		return "original file is gone; re-import the asset"
	case services.KindTimeout:
		return "raise encoder.timeout_seconds or check encoder load"
	case services.KindNoProfile:
		return "add an [[encoder.profiles]] entry for this format"
	case services.KindAssetMissing:
		return "asset was deleted before conversion ran"
	case services.KindPersistence:
		return "check the catalog database"
	case services.KindEncoderFailure:
		return "see status detail for encoder output"
	default:
		return "check logs for details"
	}
}
