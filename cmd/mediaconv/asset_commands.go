package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediaconv/internal/ipc"
)

func newAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "Register and manage gallery assets",
	}

	assetCmd.AddCommand(newAssetAddCommand(ctx))
	assetCmd.AddCommand(newAssetListCommand(ctx))
	assetCmd.AddCommand(newAssetShowCommand(ctx))
	assetCmd.AddCommand(newAssetRotateCommand(ctx))
	assetCmd.AddCommand(newAssetRegenerateCommand(ctx))

	return assetCmd
}

func newAssetAddCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Register media files and queue their optimized derivatives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				responses := make([]*ipc.AssetAddResponse, 0, len(args))
				for _, arg := range args {
					path, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve %s: %w", arg, err)
					}
					resp, err := client.AssetAdd(path)
					if err != nil {
						return fmt.Errorf("add %s: %w", arg, err)
					}
					responses = append(responses, resp)
					if jsonOutput {
						continue
					}
					verb := "Registered"
					if !resp.Created {
						verb = "Already registered"
					}
					fmt.Fprintf(out, "%s asset %d (%s): %s\n", verb, resp.Asset.ID, resp.Asset.OriginalFileName, describeOutcome(resp.Outcome))
				}
				if jsonOutput {
					return writeJSON(cmd, responses)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func newAssetListCommand(ctx *commandContext) *cobra.Command {
	var media []string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AssetList(media)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp.Assets)
				}
				out := cmd.OutOrStdout()
				if len(resp.Assets) == 0 {
					fmt.Fprintln(out, "No assets registered")
					return nil
				}
				fmt.Fprint(out, renderTable(assetListHeaders, buildAssetRows(resp.Assets), assetListAlignments))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&media, "media", "m", nil, "Filter by media kind: image, audio, video (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func newAssetShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <asset-id>",
		Short: "Show an asset and its queue items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AssetShow(id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				for _, line := range assetDetailLines(resp.Asset) {
					fmt.Fprintln(out, line)
				}
				if len(resp.Items) == 0 {
					return nil
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, renderTable(queueListHeaders, buildQueueListRows(resp.Items), queueListAlignments))
				fmt.Fprintln(out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func newAssetRotateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <asset-id> <rotation>",
		Short: "Rotate or flip an original (rotate90, rotate180, rotate270, flipx, flipy)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AssetRotate(id, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %d rotation %s: %s\n", resp.Asset.ID, resp.Asset.RotateFlip, describeOutcome(resp.Outcome))
				return nil
			})
		},
	}
}

func newAssetRegenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <asset-id>",
		Short: "Rebuild the optimized derivative of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.AssetRegenerate(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Asset %d regenerate: %s\n", resp.Asset.ID, describeOutcome(resp.Outcome))
				return nil
			})
		},
	}
}

func parseAssetID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid asset id %q", value)
	}
	return id, nil
}
