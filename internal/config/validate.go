package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var knownKinds = []string{"create_optimized", "rotate_original"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGallery(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGallery() error {
	if strings.ContainsAny(c.Gallery.OptimizedPrefix, `/\`) {
		return errors.New("gallery.optimized_prefix must not contain path separators")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	switch c.Encoder.Engine {
	case EngineFFmpeg, EngineDrapto:
	default:
		return fmt.Errorf("encoder.engine: unsupported value %q", c.Encoder.Engine)
	}
	if err := ensurePositiveMap(map[string]int{
		"encoder.timeout_seconds": c.Encoder.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Encoder.KillGraceSeconds < 0 {
		return errors.New("encoder.kill_grace_seconds must be zero or positive")
	}
	if c.Encoder.ProbeCacheSeconds < 0 {
		return errors.New("encoder.probe_cache_seconds must be zero or positive")
	}
	for idx, p := range c.Encoder.Profiles {
		label := fmt.Sprintf("encoder.profiles[%d]", idx)
		if !slices.Contains(knownKinds, p.Kind) {
			return fmt.Errorf("%s.kind: unsupported value %q", label, p.Kind)
		}
		if p.Source == "" {
			return fmt.Errorf("%s.source must be set", label)
		}
		if len(p.Args) == 0 {
			return fmt.Errorf("%s.args must not be empty", label)
		}
		if !slices.Contains(p.Args, "{target}") {
			return fmt.Errorf("%s.args must reference {target}", label)
		}
		if p.Kind == "rotate_original" && p.Output != "" {
			return fmt.Errorf("%s.output must be empty for rotate_original", label)
		}
		if c.Encoder.Engine == EngineDrapto && p.Kind == "create_optimized" && p.Source == "*video" && p.Output != "mkv" {
			return fmt.Errorf("%s.output must be mkv when encoder.engine is drapto", label)
		}
	}
	return nil
}

func (c *Config) validateQueue() error {
	if err := ensurePositiveMap(map[string]int{
		"queue.workers":            c.Queue.Workers,
		"queue.poll_interval":      c.Queue.PollInterval,
		"queue.heartbeat_interval": c.Queue.HeartbeatInterval,
		"queue.heartbeat_timeout":  c.Queue.HeartbeatTimeout,
		"queue.history_limit":      c.Queue.HistoryLimit,
	}); err != nil {
		return err
	}
	if c.Queue.HeartbeatTimeout <= c.Queue.HeartbeatInterval {
		return errors.New("queue.heartbeat_timeout must be greater than queue.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
