package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGallery()
	c.normalizeEncoder()
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.DataDir, defaultSocketName)
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("MEDIACONV_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeGallery() {
	c.Gallery.OptimizedPrefix = strings.TrimSpace(c.Gallery.OptimizedPrefix)
	if c.Gallery.OptimizedPrefix == "" {
		c.Gallery.OptimizedPrefix = defaultOptimizedPrefix
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Engine = strings.ToLower(strings.TrimSpace(c.Encoder.Engine))
	if c.Encoder.Engine == "" {
		c.Encoder.Engine = defaultEngine
	}
	if value, ok := os.LookupEnv("MEDIACONV_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Encoder.FFmpegBinary = value
	}
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	if c.Encoder.FFmpegBinary == "" {
		c.Encoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	if c.Encoder.FFprobeBinary == "" {
		c.Encoder.FFprobeBinary = defaultFFprobeBinary
	}
	if len(c.Encoder.Profiles) == 0 {
		c.Encoder.Profiles = DefaultProfiles()
	}
	for i := range c.Encoder.Profiles {
		p := &c.Encoder.Profiles[i]
		p.Kind = strings.ToLower(strings.TrimSpace(p.Kind))
		p.Source = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p.Source), "."))
		p.Output = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(p.Output), "."))
	}
}

func (c *Config) normalizeLibrary() error {
	dirs := make([]string, 0, len(c.Library.WatchDirs))
	for _, dir := range c.Library.WatchDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(dir))
		if err != nil {
			return fmt.Errorf("library.watch_dirs: %w", err)
		}
		dirs = append(dirs, expanded)
	}
	c.Library.WatchDirs = dirs
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text":
		c.Logging.Format = "console"
	default:
		c.Logging.Format = format
	}
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
