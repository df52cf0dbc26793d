package conversion

import (
	"time"

	"mediaconv/internal/config"
)

// Settings carries the tunables the service and processor read.
type Settings struct {
	Workers           int
	EncoderTimeout    time.Duration
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	OptimizedPrefix   string
	DiscardOriginal   bool
}

// SettingsFromConfig extracts Settings from a loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Workers:           cfg.Queue.Workers,
		EncoderTimeout:    cfg.EncoderTimeout(),
		PollInterval:      cfg.PollInterval(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
		HeartbeatTimeout:  cfg.HeartbeatTimeout(),
		OptimizedPrefix:   cfg.Gallery.OptimizedPrefix,
		DiscardOriginal:   cfg.Gallery.DiscardOriginal,
	}
}

func (s Settings) withDefaults() Settings {
	if s.Workers <= 0 {
		s.Workers = 1
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 5 * time.Second
	}
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = 15 * time.Second
	}
	if s.HeartbeatTimeout <= s.HeartbeatInterval {
		s.HeartbeatTimeout = 8 * s.HeartbeatInterval
	}
	if s.OptimizedPrefix == "" {
		s.OptimizedPrefix = "zOpt_"
	}
	return s
}
