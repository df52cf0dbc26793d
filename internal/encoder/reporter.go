package encoder

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	draptolib "github.com/five82/drapto"

	"mediaconv/internal/logging"
)

// logReporter forwards Drapto progress to structured logs and keeps the
// warnings and errors for the item diagnostic.
type logReporter struct {
	logger *slog.Logger

	mu          sync.Mutex
	notes       []string
	lastPercent int
}

func newLogReporter(logger *slog.Logger) *logReporter {
	return &logReporter{logger: logger, lastPercent: -1}
}

func (r *logReporter) note(line string) {
	r.mu.Lock()
	r.notes = append(r.notes, line)
	r.mu.Unlock()
}

// Diagnostic returns collected warnings and errors, newest last.
func (r *logReporter) Diagnostic() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.notes, "\n")
}

func (r *logReporter) Hardware(s draptolib.HardwareSummary) {
	r.logger.Debug("drapto hardware", logging.Any("hostname", s.Hostname))
}

func (r *logReporter) Initialization(s draptolib.InitializationSummary) {
	r.logger.Info("drapto encode initialized",
		logging.Any("input", s.InputFile),
		logging.Any("output", s.OutputFile),
		logging.Any("duration", s.Duration),
		logging.Any("resolution", s.Resolution),
		logging.Any("dynamic_range", s.DynamicRange),
	)
}

func (r *logReporter) StageProgress(s draptolib.StageProgress) {
	attrs := []logging.Attr{
		logging.Any("stage", s.Stage),
		logging.Float64("percent", float64(s.Percent)),
		logging.Any("message", s.Message),
	}
	if s.ETA != nil {
		attrs = append(attrs, logging.Any("eta", *s.ETA))
	}
	r.logger.Debug("drapto stage", logging.Args(attrs...)...)
}

func (r *logReporter) CropResult(s draptolib.CropSummary) {
	r.logger.Debug("drapto crop detection",
		logging.Any("crop", s.Crop),
		logging.Any("required", s.Required),
		logging.Any("disabled", s.Disabled),
		logging.Any("message", s.Message),
	)
}

func (r *logReporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.logger.Info("drapto encoding config",
		logging.Any("encoder", s.Encoder),
		logging.Any("preset", s.Preset),
		logging.Any("quality", s.Quality),
		logging.Any("audio_codec", s.AudioCodec),
	)
}

func (r *logReporter) EncodingStarted(totalFrames uint64) {
	r.logger.Debug("drapto encoding started", logging.Any("total_frames", totalFrames))
}

// EncodingProgress logs at most once per ten percent.
func (r *logReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	bucket := int(float64(s.Percent)) / 10
	r.mu.Lock()
	if bucket <= r.lastPercent {
		r.mu.Unlock()
		return
	}
	r.lastPercent = bucket
	r.mu.Unlock()
	r.logger.Info("drapto encoding progress",
		logging.Float64("percent", float64(s.Percent)),
		logging.Float64("speed", float64(s.Speed)),
		logging.Float64("fps", float64(s.FPS)),
		logging.Any("eta", s.ETA),
	)
}

func (r *logReporter) ValidationComplete(s draptolib.ValidationSummary) {
	if s.Passed {
		r.logger.Debug("drapto validation passed", logging.Int("steps", len(s.Steps)))
		return
	}
	for _, step := range s.Steps {
		if !step.Passed {
			r.note(fmt.Sprintf("validation %v failed: %v", step.Name, step.Details))
		}
	}
	logging.WarnWithContext(r.logger, "drapto validation failed", "drapto_validation_failed",
		logging.Int("steps", len(s.Steps)),
		logging.String(logging.FieldImpact, "encoded output may not match the source"),
	)
}

func (r *logReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.logger.Info("drapto encoding complete",
		logging.Int64("original_bytes", int64(s.OriginalSize)),
		logging.Int64("encoded_bytes", int64(s.EncodedSize)),
		logging.Any("elapsed", s.TotalTime),
	)
}

func (r *logReporter) Warning(message string) {
	r.note("warning: " + message)
	logging.WarnWithContext(r.logger, "drapto warning", "drapto_warning",
		logging.String("message", message),
	)
}

func (r *logReporter) Error(e draptolib.ReporterError) {
	line := strings.TrimSpace(fmt.Sprintf("%v: %v", e.Title, e.Message))
	suggestion := strings.TrimSpace(fmt.Sprint(e.Suggestion))
	if suggestion != "" {
		line += " (" + suggestion + ")"
	}
	r.note(line)
	logging.ErrorWithContext(r.logger, "drapto error", "drapto_error",
		logging.Any("title", e.Title),
		logging.Any("message", e.Message),
		logging.Any("context", e.Context),
		logging.String(logging.FieldErrorHint, suggestion),
	)
}

func (r *logReporter) OperationComplete(message string) {
	r.logger.Debug("drapto operation complete", logging.String("message", message))
}

func (r *logReporter) BatchStarted(s draptolib.BatchStartInfo) {
	r.logger.Debug("drapto batch started", logging.Any("files", s.TotalFiles))
}

func (r *logReporter) FileProgress(s draptolib.FileProgressContext) {
	r.logger.Debug("drapto file progress", logging.Any("current", s.CurrentFile), logging.Any("total", s.TotalFiles))
}

func (r *logReporter) BatchComplete(s draptolib.BatchSummary) {
	r.logger.Debug("drapto batch complete", logging.Any("successful", s.SuccessfulCount), logging.Any("total", s.TotalFiles))
}

var _ draptolib.Reporter = (*logReporter)(nil)
