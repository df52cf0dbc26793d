package encoder

import (
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"mediaconv/internal/config"
	"mediaconv/internal/deps"
	"mediaconv/internal/queue"
)

// Gate reports whether a conversion can be attempted. Binary resolution is
// cached for a TTL so request paths do not walk PATH on every save.
type Gate struct {
	engine   string
	ffmpeg   string
	ffprobe  string
	profiles map[queue.Kind]map[string]Profile
	ttl      time.Duration

	now      func() time.Time
	lookPath func(string) (string, error)

	mu        sync.Mutex
	checkedAt time.Time
	available bool
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate builds a gate from encoder configuration. The first profile for a
// (kind, source) pair wins.
func NewGate(cfg config.Encoder, opts ...GateOption) *Gate {
	g := &Gate{
		engine:   strings.TrimSpace(cfg.Engine),
		ffmpeg:   strings.TrimSpace(cfg.FFmpegBinary),
		ffprobe:  strings.TrimSpace(cfg.FFprobeBinary),
		profiles: make(map[queue.Kind]map[string]Profile),
		ttl:      time.Duration(cfg.ProbeCacheSeconds) * time.Second,
		now:      time.Now,
		lookPath: exec.LookPath,
	}
	for _, p := range ProfilesFromConfig(cfg.Profiles) {
		byKind := g.profiles[p.Kind]
		if byKind == nil {
			byKind = make(map[string]Profile)
			g.profiles[p.Kind] = byKind
		}
		if _, exists := byKind[p.Source]; !exists {
			byKind[p.Source] = p
		}
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsEncoderAvailable reports whether the ffmpeg binary resolves and is
// executable. A missing binary is an expected state, not an error.
func (g *Gate) IsEncoderAvailable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if !g.checkedAt.IsZero() && g.ttl > 0 && now.Sub(g.checkedAt) < g.ttl {
		return g.available
	}
	_, err := g.lookPath(g.ffmpeg)
	g.available = g.ffmpeg != "" && err == nil
	g.checkedAt = now
	return g.available
}

// Invalidate drops the cached availability result.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	g.checkedAt = time.Time{}
	g.mu.Unlock()
}

// HasProfileFor reports whether a profile exists for the format and kind.
func (g *Gate) HasProfileFor(format Format, kind queue.Kind) bool {
	_, ok := g.ProfileFor(format, kind)
	return ok
}

// ProfileFor resolves a profile by exact extension, then media wildcard,
// then the catch-all "*".
func (g *Gate) ProfileFor(format Format, kind queue.Kind) (Profile, bool) {
	byKind := g.profiles[kind]
	if len(byKind) == 0 {
		return Profile{}, false
	}
	for _, key := range format.lookupKeys() {
		if p, ok := byKind[key]; ok {
			return p, true
		}
	}
	return Profile{}, false
}

// Engine returns the configured engine name.
func (g *Gate) Engine() string {
	return g.engine
}

// Status checks every external binary the configured engine relies on.
func (g *Gate) Status() []deps.Status {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "FFmpeg", Command: g.ffmpeg, Description: "Runs conversion profiles"},
		{Name: "FFprobe", Command: g.ffprobe, Description: "Reads derivative dimensions and duration", Optional: true},
	})
	if g.engine == config.EngineDrapto {
		host, _ := os.Executable()
		statuses = append(statuses, deps.CheckFFmpegForDrapto(host))
	}
	return statuses
}
