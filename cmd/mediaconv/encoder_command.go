package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediaconv/internal/api"
	"mediaconv/internal/daemonctl"
	"mediaconv/internal/ipc"
	"mediaconv/internal/preflight"
)

func newEncoderCommand(ctx *commandContext) *cobra.Command {
	encoderCmd := &cobra.Command{
		Use:   "encoder",
		Short: "Inspect the external encoder",
	}
	encoderCmd.AddCommand(newEncoderCheckCommand(ctx))
	return encoderCmd
}

func newEncoderCheckCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Re-resolve encoder binaries and report availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status ipc.EncoderCheckResponse
			if offline {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				status.Engine = cfg.Encoder.Engine
				status.Dependencies = api.FromDependencies(preflight.CheckSystemDeps(cfg))
				status.Available = daemonctl.BuildDependencySummary(status.Dependencies).MissingRequired == 0
			} else {
				err := ctx.withClient(func(client *ipc.Client) error {
					resp, err := client.EncoderCheck()
					if err != nil {
						return err
					}
					status = *resp
					return nil
				})
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			kind := statusOK
			detail := "available"
			if !status.Available {
				kind, detail = statusError, "unavailable; conversions are not enqueued"
			}
			fmt.Fprintln(out, renderStatusLine("Engine "+status.Engine, kind, detail, colorize))
			for _, line := range dependencyLines(status.Dependencies, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Check binaries locally without contacting the daemon")
	return cmd
}
