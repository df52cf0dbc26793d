package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"mediaconv/internal/config"
	"mediaconv/internal/deps"
	"mediaconv/internal/encoder"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the binaries the configured encoder engine needs.
// Both the daemon and the CLI status command use this so the requirement
// list lives in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return encoder.NewGate(cfg.Encoder).Status()
}

// CheckEncoder summarizes encoder readiness. A missing encoder does not stop
// the daemon; conversions are simply not enqueued until it appears.
func CheckEncoder(cfg *config.Config) Result {
	const name = "Encoder"
	statuses := CheckSystemDeps(cfg)
	missing := deps.Missing(statuses)
	if len(missing) == 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s ready", cfg.Encoder.Engine)}
	}
	names := make([]string, 0, len(missing))
	for _, dep := range missing {
		names = append(names, dep.Name)
	}
	return Result{Name: name, Detail: fmt.Sprintf("%s unavailable (missing %s)", cfg.Encoder.Engine, strings.Join(names, ", "))}
}
