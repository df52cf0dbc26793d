package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mediaconv/internal/config"
	"mediaconv/internal/ipc"
)

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

const pollInterval = 200 * time.Millisecond

// Launcher spawns a detached `mediaconv daemon` process.
type Launcher struct {
	Executable string
	SocketPath string
	ConfigPath string
	// Wait bounds how long a launched daemon has to open its socket.
	Wait time.Duration
}

// StartResult reports what EnsureRunning had to do.
type StartResult struct {
	// Launched is set when no daemon answered and a new process was spawned.
	Launched bool
	// AlreadyRunning is set when the worker was running before the call.
	AlreadyRunning bool
}

// StopResult reports how the daemon went away.
type StopResult struct {
	Acknowledged bool
	// KilledPID is non-zero when the process outlived the grace period.
	KilledPID int
}

// RestartResult pairs the stop and start halves of a restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// EnsureRunning connects to the daemon, launching it first when the socket
// does not answer, and starts its conversion worker.
func (l Launcher) EnsureRunning() (StartResult, error) {
	var result StartResult
	client, err := ipc.Dial(l.SocketPath)
	if err != nil {
		if err := l.spawn(); err != nil {
			return result, err
		}
		if client, err = l.awaitSocket(); err != nil {
			return result, err
		}
		result.Launched = true
	}
	defer client.Close()

	if status, err := client.Status(); err == nil && status.Running {
		result.AlreadyRunning = !result.Launched
		return result, nil
	}
	resp, err := client.Start()
	if err != nil {
		return result, err
	}
	if !resp.Started {
		return result, fmt.Errorf("daemon refused to start: %s", strings.TrimSpace(resp.Message))
	}
	return result, nil
}

func (l Launcher) spawn() error {
	if strings.TrimSpace(l.Executable) == "" {
		return errors.New("resolve executable: executable path is empty")
	}
	args := []string{"daemon"}
	if l.SocketPath != "" {
		args = append(args, "--socket", l.SocketPath)
	}
	if l.ConfigPath != "" {
		args = append(args, "--config", l.ConfigPath)
	}
	proc := exec.Command(l.Executable, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

func (l Launcher) awaitSocket() (*ipc.Client, error) {
	deadline := time.Now().Add(l.Wait)
	for {
		client, err := ipc.Dial(l.SocketPath)
		if err == nil {
			return client, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("daemon failed to start: %w", err)
		}
		time.Sleep(pollInterval)
	}
}

// Stop asks the daemon to stop and kills the process if its socket still
// answers after grace.
func Stop(socketPath string, cfg *config.Config, grace time.Duration) (StopResult, error) {
	var result StopResult
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return result, ErrDaemonNotRunning
		}
		return result, err
	}
	pid := 0
	if status, err := client.Status(); err == nil {
		pid = status.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return result, err
	}
	result.Acknowledged = resp.Stopped

	if socketGone(socketPath, grace) {
		return result, nil
	}
	if cfg == nil {
		return result, errors.New("unable to locate daemon pid file without configuration")
	}
	killed, err := killDaemon(cfg.PIDPath(), pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	_ = os.Remove(cfg.LockPath())
	result.KilledPID = killed
	return result, nil
}

// Restart stops the daemon when it is running and then ensures it runs.
func Restart(l Launcher, cfg *config.Config, grace time.Duration) (RestartResult, error) {
	stopped, err := Stop(l.SocketPath, cfg, grace)
	if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return RestartResult{}, err
	}
	started, startErr := l.EnsureRunning()
	if startErr != nil {
		return RestartResult{}, startErr
	}
	return RestartResult{WasRunning: err == nil, Stop: stopped, Start: started}, nil
}

func socketGone(socketPath string, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for {
		client, err := ipc.Dial(socketPath)
		if err != nil && isDaemonUnavailable(err) {
			return true
		}
		if client != nil {
			_ = client.Close()
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}

// killDaemon sends SIGKILL to the pid recorded in pidPath, falling back to
// the pid the daemon reported, and removes the pid file.
func killDaemon(pidPath string, fallback int) (int, error) {
	pid := fallback
	data, err := os.ReadFile(pidPath)
	switch {
	case err == nil:
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	case !errors.Is(err, os.ErrNotExist):
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	return pid, nil
}

func isDaemonUnavailable(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
