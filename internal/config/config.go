package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, socket and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Gallery controls how derivatives are named and what happens to originals.
type Gallery struct {
	OptimizedPrefix string `toml:"optimized_prefix"`
	DiscardOriginal bool   `toml:"discard_original"`
}

// Profile maps a source format and conversion kind to an encoder argument
// template. Source is a file extension ("mov") or a media wildcard
// ("*video", "*audio", "*image", "*"). Output is the derivative extension;
// empty keeps the source extension.
type Profile struct {
	Kind   string   `toml:"kind"`
	Source string   `toml:"source"`
	Output string   `toml:"output"`
	Args   []string `toml:"args"`
}

// Encoder contains external encoder settings.
type Encoder struct {
	Engine            string    `toml:"engine"`
	FFmpegBinary      string    `toml:"ffmpeg_binary"`
	FFprobeBinary     string    `toml:"ffprobe_binary"`
	TimeoutSeconds    int       `toml:"timeout_seconds"`
	KillGraceSeconds  int       `toml:"kill_grace_seconds"`
	ProbeCacheSeconds int       `toml:"probe_cache_seconds"`
	Profiles          []Profile `toml:"profiles"`
}

// Queue contains conversion queue and worker timing.
type Queue struct {
	Workers           int `toml:"workers"`
	PollInterval      int `toml:"poll_interval"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
	HistoryLimit      int `toml:"history_limit"`
}

// Library configures the optional directory watcher that registers new
// media files as gallery assets.
type Library struct {
	WatchDirs     []string `toml:"watch_dirs"`
	SettleSeconds int      `toml:"settle_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mediaconv.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories, IPC socket and API bind address
//   - Gallery: derivative naming and original retention
//   - Encoder: encoder binaries, engine, timeouts and profiles
//   - Queue: worker count, poll and heartbeat timing, history bound
//   - Library: directory watcher
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Gallery Gallery `toml:"gallery"`
	Encoder Encoder `toml:"encoder"`
	Queue   Queue   `toml:"queue"`
	Library Library `toml:"library"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediaconv/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaconv.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Watch directories are created on a best-effort basis so the daemon can run
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Paths.SocketPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range c.Library.WatchDirs {
		_ = os.MkdirAll(dir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite catalog location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "mediaconv.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "mediaconv.lock")
}

// PIDPath returns the file the daemon writes its process id to.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "mediaconv.pid")
}

// EncoderTimeout bounds a single encoder invocation.
func (c *Config) EncoderTimeout() time.Duration {
	return time.Duration(c.Encoder.TimeoutSeconds) * time.Second
}

// KillGrace is the delay between SIGTERM and SIGKILL for a timed out encoder.
func (c *Config) KillGrace() time.Duration {
	return time.Duration(c.Encoder.KillGraceSeconds) * time.Second
}

// ProbeCacheTTL is how long an encoder availability probe result is reused.
func (c *Config) ProbeCacheTTL() time.Duration {
	return time.Duration(c.Encoder.ProbeCacheSeconds) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Queue.PollInterval) * time.Second
}

func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Queue.HeartbeatInterval) * time.Second
}

func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Queue.HeartbeatTimeout) * time.Second
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Library.SettleSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := renameio.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
