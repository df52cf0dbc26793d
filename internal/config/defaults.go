package config

const (
	defaultDataDir           = "~/.local/share/mediaconv"
	defaultLogDir            = "~/.local/share/mediaconv/logs"
	defaultSocketName        = "mediaconv.sock"
	defaultAPIBind           = "127.0.0.1:7489"
	defaultOptimizedPrefix   = "zOpt_"
	defaultEngine            = EngineFFmpeg
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultTimeoutSeconds    = 900
	defaultKillGraceSeconds  = 5
	defaultProbeCacheSeconds = 30
	defaultWorkers           = 1
	defaultPollInterval      = 5
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120
	defaultHistoryLimit      = 500
	defaultSettleSeconds     = 2
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Encoder engines.
const (
	EngineFFmpeg = "ffmpeg"
	EngineDrapto = "drapto"
)

// Default returns a Config populated with repository defaults. Encoder
// profiles are filled in by normalization when none are configured.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Gallery: Gallery{
			OptimizedPrefix: defaultOptimizedPrefix,
		},
		Encoder: Encoder{
			Engine:            defaultEngine,
			FFmpegBinary:      defaultFFmpegBinary,
			FFprobeBinary:     defaultFFprobeBinary,
			TimeoutSeconds:    defaultTimeoutSeconds,
			KillGraceSeconds:  defaultKillGraceSeconds,
			ProbeCacheSeconds: defaultProbeCacheSeconds,
		},
		Queue: Queue{
			Workers:           defaultWorkers,
			PollInterval:      defaultPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
			HistoryLimit:      defaultHistoryLimit,
		},
		Library: Library{
			SettleSeconds: defaultSettleSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultProfiles returns the built-in ffmpeg argument templates.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Kind:   "create_optimized",
			Source: "*video",
			Output: "mp4",
			Args: []string{
				"-y", "-i", "{source}",
				"-c:v", "libx264", "-preset", "medium", "-crf", "23", "-pix_fmt", "yuv420p",
				"-c:a", "aac", "-b:a", "160k",
				"-movflags", "+faststart",
				"{target}",
			},
		},
		{
			Kind:   "create_optimized",
			Source: "*audio",
			Output: "mp3",
			Args:   []string{"-y", "-i", "{source}", "-vn", "-c:a", "libmp3lame", "-q:a", "2", "{target}"},
		},
		{
			Kind:   "rotate_original",
			Source: "*video",
			Args: []string{
				"-y", "-i", "{source}",
				"-vf", "{rotate_filter}",
				"-c:a", "copy", "-map_metadata", "0",
				"{target}",
			},
		},
	}
}
