package encoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mediaconv/internal/logging"
	"mediaconv/internal/services"
)

// FFmpeg runs profile argument templates with an external ffmpeg binary.
type FFmpeg struct {
	binary    string
	killGrace time.Duration
	prober    Prober
	logger    *slog.Logger
}

// NewFFmpeg constructs an ffmpeg invoker. killGrace is how long a cancelled
// encoder may take to exit after SIGTERM before it is killed. prober may be
// nil, in which case results carry no metadata.
func NewFFmpeg(binary string, killGrace time.Duration, prober Prober, logger *slog.Logger) *FFmpeg {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary:    binary,
		killGrace: killGrace,
		prober:    prober,
		logger:    logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// Invoke runs the request's profile. On any failure the target may hold
// partial output; callers own its removal.
func (f *FFmpeg) Invoke(ctx context.Context, req Request) (Result, error) {
	if _, err := os.Stat(req.Source); err != nil {
		return Result{}, services.Wrap(services.ErrSourceMissing, "ffmpeg", "stat source", req.Source, err)
	}
	args, err := ExpandArgs(req.Profile.Args, req.Source, req.Target, req.Rotation)
	if err != nil {
		return Result{}, services.Wrap(services.ErrEncoderFailure, "ffmpeg", "expand args", "", err)
	}

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	stderr := newTailBuffer(diagnosticLimit)
	cmd := exec.CommandContext(runCtx, f.binary, args...) //nolint:gosec
	cmd.Stderr = stderr
	startInGroup(cmd)
	cmd.Cancel = func() error {
		return signalGroup(cmd, unix.SIGTERM)
	}
	cmd.WaitDelay = f.killGrace

	f.logger.Debug("ffmpeg starting",
		logging.String(logging.FieldItemID, req.ItemID),
		logging.String("kind", string(req.Kind)),
		logging.String("source", req.Source),
		logging.String("target", req.Target),
	)
	started := time.Now()
	runErr := cmd.Run()
	// Children that outlived the leader still hold the group.
	_ = signalGroup(cmd, unix.SIGKILL)

	result := Result{Diagnostic: stderr.String(), Elapsed: time.Since(started)}
	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return result, services.Wrap(services.ErrTimeout, "ffmpeg", "run",
				fmt.Sprintf("exceeded %s", req.Timeout), runErr)
		}
		if ctx.Err() != nil {
			return result, services.Wrap(services.ErrEncoderFailure, "ffmpeg", "run", "cancelled", ctx.Err())
		}
		return result, services.Wrap(services.ErrEncoderFailure, "ffmpeg", "run", lastLine(result.Diagnostic), runErr)
	}

	info, err := os.Stat(req.Target)
	if err != nil || info.Size() == 0 {
		return result, services.Wrap(services.ErrEncoderFailure, "ffmpeg", "verify output", "no output produced", err)
	}
	result.Metadata = probeMetadata(ctx, f.prober, f.logger, req)
	return result, nil
}

func probeMetadata(ctx context.Context, prober Prober, logger *slog.Logger, req Request) Metadata {
	if prober == nil {
		return Metadata{}
	}
	meta, err := prober.Probe(ctx, req.Target)
	if err != nil {
		logging.WarnWithContext(logger, "derivative probe failed", "probe_failed",
			logging.String(logging.FieldItemID, req.ItemID),
			logging.String("path", req.Target),
			logging.Error(err),
			logging.String(logging.FieldImpact, "asset dimensions and duration not refreshed"),
		)
		return Metadata{}
	}
	return meta
}

func lastLine(diagnostic string) string {
	if idx := strings.LastIndexByte(diagnostic, '\n'); idx >= 0 {
		return strings.TrimSpace(diagnostic[idx+1:])
	}
	return diagnostic
}
