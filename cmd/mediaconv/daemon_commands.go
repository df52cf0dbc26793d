package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mediaconv/internal/api"
	"mediaconv/internal/daemonctl"
)

const (
	stopGrace  = 5 * time.Second
	launchWait = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the mediaconv daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			launcher, err := daemonLauncher(ctx)
			if err != nil {
				return err
			}
			result, err := launcher.EnsureRunning()
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			if result.AlreadyRunning {
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the mediaconv daemon (completely terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Stop(ctx.socketPath(), ctx.configValue(), stopGrace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			printStopped(stdout, result)
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show system, encoder and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snapshot)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			status := snapshot.Status

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range snapshot.SystemChecks {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			if status.APIAddress != "" {
				fmt.Fprintln(stdout, renderStatusLine("HTTP API", statusOK, status.APIAddress, colorize))
			}
			for _, dir := range status.Watching {
				fmt.Fprintln(stdout, renderStatusLine("Watching", statusOK, dir, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Encoder", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Engine", statusInfo, status.Encoder.Engine, colorize))
			for _, line := range dependencyLines(status.Encoder.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Catalog", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, catalogStatusLine(status.Catalog, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Queue Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status.Worker.OldestWaiting != "" {
				fmt.Fprintln(stdout, renderStatusLine("Oldest waiting", statusInfo, formatAge(status.Worker.OldestWaiting, time.Now()), colorize))
			}
			rows := buildQueueStatusRows(status.Queue)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			fmt.Fprint(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintln(stdout)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit the status snapshot as JSON")

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the mediaconv daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			launcher, err := daemonLauncher(ctx)
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(launcher, ctx.configValue(), stopGrace)
			if err != nil {
				return err
			}
			if result.WasRunning {
				printStopped(stdout, result.Stop)
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func catalogStatusLine(health api.CatalogHealth, colorize bool) string {
	switch {
	case health.Error != "":
		return renderStatusLine("Database", statusError, fmt.Sprintf("%s (%s)", health.Path, health.Error), colorize)
	case !health.Exists:
		return renderStatusLine("Database", statusInfo, fmt.Sprintf("%s (not created yet)", health.Path), colorize)
	default:
		return renderStatusLine("Database", statusOK,
			fmt.Sprintf("%s (schema v%d, %d assets, %d history rows)", health.Path, health.SchemaVersion, health.Assets, health.HistoryRows), colorize)
	}
}

func printStopped(w io.Writer, result daemonctl.StopResult) {
	if result.Acknowledged {
		fmt.Fprintln(w, "Stopping conversion worker...")
	}
	if result.KilledPID > 0 {
		fmt.Fprintf(w, "Stopping daemon process (pid %d)...\n", result.KilledPID)
	}
	fmt.Fprintln(w, "Daemon stopped")
}

func daemonLauncher(ctx *commandContext) (daemonctl.Launcher, error) {
	exe, err := os.Executable()
	if err != nil {
		return daemonctl.Launcher{}, fmt.Errorf("resolve executable: %w", err)
	}
	launcher := daemonctl.Launcher{
		Executable: exe,
		SocketPath: ctx.socketPath(),
		ConfigPath: ctx.configPath(),
		Wait:       launchWait,
	}
	return launcher, nil
}
