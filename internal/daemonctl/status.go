package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"mediaconv/internal/api"
	"mediaconv/internal/catalog"
	"mediaconv/internal/config"
	"mediaconv/internal/ipc"
	"mediaconv/internal/preflight"
)

// StatusLine is one labelled readiness row in status output.
type StatusLine struct {
	Label    string `json:"label"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int    `json:"total"`
	Available       int    `json:"available"`
	MissingRequired int    `json:"missingRequired"`
	MissingOptional int    `json:"missingOptional"`
	Severity        string `json:"severity"`
	Detail          string `json:"detail"`
}

// Snapshot is the status view the CLI renders, whether or not the daemon
// is reachable.
type Snapshot struct {
	Status            ipc.StatusResponse `json:"status"`
	SystemChecks      []StatusLine       `json:"systemChecks"`
	DependencySummary DependencySummary  `json:"dependencySummary"`
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks
// for catalog health and encoder dependencies.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &Snapshot{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snapshot.Status = *resp
		}
	}

	status := &snapshot.Status
	if status.PID == 0 {
		status.LockFilePath = cfg.LockPath()
		status.SocketPath = socketPath
		status.Worker.Workers = cfg.Queue.Workers
		status.Encoder.Engine = cfg.Encoder.Engine
		status.Catalog = offlineCatalogHealth(ctx, cfg)
	}
	if len(status.Encoder.Dependencies) == 0 {
		status.Encoder.Dependencies = api.FromDependencies(preflight.CheckSystemDeps(cfg))
		status.Encoder.Available = BuildDependencySummary(status.Encoder.Dependencies).MissingRequired == 0
	}

	snapshot.SystemChecks = BuildSystemChecks(cfg, status.Running, status.PID != 0)
	snapshot.DependencySummary = BuildDependencySummary(status.Encoder.Dependencies)
	return snapshot, nil
}

// offlineCatalogHealth inspects the catalog without creating it.
func offlineCatalogHealth(ctx context.Context, cfg *config.Config) api.CatalogHealth {
	if _, err := os.Stat(cfg.DatabasePath()); err != nil {
		return api.CatalogHealth{Path: cfg.DatabasePath()}
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		return api.CatalogHealth{Path: cfg.DatabasePath(), Exists: true, Error: err.Error()}
	}
	defer store.Close()

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	health, err := store.CheckHealth(queryCtx)
	if err != nil && health.Error == "" {
		health.Error = err.Error()
	}
	return api.FromCatalogHealth(health)
}

// BuildSystemChecks resolves status lines that combine runtime state and
// preflight checks.
func BuildSystemChecks(cfg *config.Config, workerRunning, reachable bool) []StatusLine {
	lines := make([]StatusLine, 0, 6)
	switch {
	case workerRunning:
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "ok", Detail: "Running"})
	case reachable:
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "warn", Detail: "Worker stopped (run `mediaconv start`)"})
	default:
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `mediaconv start`)"})
	}

	for _, result := range preflight.RunAll(cfg) {
		severity := "error"
		if result.Passed {
			severity = "ok"
		} else if result.Name == "Encoder" {
			severity = "warn"
		}
		lines = append(lines, StatusLine{Label: result.Name, Severity: severity, Detail: result.Detail})
	}
	return lines
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(deps []ipc.DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range deps {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(deps) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(deps), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(deps))
	}

	return DependencySummary{
		Total:           len(deps),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}
