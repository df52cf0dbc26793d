package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	draptolib "github.com/five82/drapto"

	"mediaconv/internal/fsutil"
	"mediaconv/internal/gallery"
	"mediaconv/internal/logging"
	"mediaconv/internal/services"
)

// draptoEncode runs the embedded encoder. Tests replace it.
var draptoEncode = func(ctx context.Context, input, outputDir string, rep draptolib.Reporter) error {
	enc, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return err
	}
	_, err = enc.EncodeWithReporter(ctx, input, outputDir, rep)
	return err
}

// Drapto produces AV1 optimized video through the Drapto library. Drapto
// chooses its own encoding settings, so profile arguments are ignored.
type Drapto struct {
	files  fsutil.FileSystem
	prober Prober
	logger *slog.Logger
}

// NewDrapto constructs a Drapto invoker.
func NewDrapto(files fsutil.FileSystem, prober Prober, logger *slog.Logger) *Drapto {
	if files == nil {
		files = fsutil.OS{}
	}
	return &Drapto{
		files:  files,
		prober: prober,
		logger: logging.NewComponentLogger(logger, "drapto"),
	}
}

// Invoke encodes into a scratch directory beside the target, then moves the
// <stem>.mkv output onto the target path.
func (d *Drapto) Invoke(ctx context.Context, req Request) (Result, error) {
	if _, err := os.Stat(req.Source); err != nil {
		return Result{}, services.Wrap(services.ErrSourceMissing, "drapto", "stat source", req.Source, err)
	}
	workDir, err := os.MkdirTemp(filepath.Dir(req.Target), ".mediaconv-drapto-")
	if err != nil {
		return Result{}, services.Wrap(services.ErrEncoderFailure, "drapto", "create work dir", "", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			d.logger.Debug("drapto work dir cleanup failed", logging.String("path", workDir), logging.Error(err))
		}
	}()

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	rep := newLogReporter(d.logger.With(logging.String(logging.FieldItemID, req.ItemID)))
	started := time.Now()
	encodeErr := draptoEncode(runCtx, req.Source, workDir, rep)
	result := Result{Diagnostic: rep.Diagnostic(), Elapsed: time.Since(started)}
	if encodeErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return result, services.Wrap(services.ErrTimeout, "drapto", "encode",
				fmt.Sprintf("exceeded %s", req.Timeout), encodeErr)
		}
		return result, services.Wrap(services.ErrEncoderFailure, "drapto", "encode", "", encodeErr)
	}

	output := filepath.Join(workDir, gallery.Stem(req.Source)+".mkv")
	if ok, err := d.files.Exists(output); err != nil || !ok {
		return result, services.Wrap(services.ErrEncoderFailure, "drapto", "locate output", output, err)
	}
	if err := d.files.MoveFile(output, req.Target); err != nil {
		return result, services.Wrap(services.ErrEncoderFailure, "drapto", "move output", req.Target, err)
	}
	result.Metadata = probeMetadata(ctx, d.prober, d.logger, req)
	return result, nil
}
