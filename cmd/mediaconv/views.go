package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mediaconv/internal/api"
	"mediaconv/internal/ipc"
)

var labelCaser = cases.Title(language.Und)

// formatStatusLabel turns snake_case identifiers into display labels:
// "already_queued" becomes "Already Queued".
func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return labelCaser.String(strings.ReplaceAll(status, "_", " "))
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if t := api.ParseQueueTime(value); !t.IsZero() {
		return t.Local().Format("2006-01-02 15:04:05")
	}
	return value
}

func buildQueueStatusRows(stats api.QueueStats) [][]string {
	if stats.Total == 0 {
		return nil
	}
	return [][]string{
		{formatStatusLabel("waiting"), strconv.Itoa(stats.Waiting)},
		{formatStatusLabel("processing"), strconv.Itoa(stats.Processing)},
		{formatStatusLabel("completed"), strconv.Itoa(stats.Completed)},
		{formatStatusLabel("error"), strconv.Itoa(stats.Error)},
	}
}

var queueListHeaders = []string{"ID", "Asset", "Kind", "Status", "Attempt", "Enqueued", "Elapsed", "Detail"}

func buildQueueListRows(items []ipc.QueueItem) [][]string {
	sorted := api.SortQueueItemsNewestFirst(items)
	rows := make([][]string, 0, len(sorted))
	for _, item := range sorted {
		detail := api.DetailSummary(item.StatusDetail, 48)
		if item.Rotation != "" && detail == "" {
			detail = "rotate " + item.Rotation
		}
		if detail == "" {
			detail = "-"
		}
		rows = append(rows, []string{
			shortID(item.ID),
			strconv.FormatInt(item.AssetID, 10),
			formatStatusLabel(item.Kind),
			formatStatusLabel(item.Status),
			strconv.Itoa(item.Attempt),
			formatDisplayTime(item.EnqueuedAt),
			api.Elapsed(item),
			detail,
		})
	}
	return rows
}

var queueListAlignments = []columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft}

var assetListHeaders = []string{"ID", "Media", "Original", "Optimized", "Rotation", "Size", "Duration"}

func buildAssetRows(assets []ipc.Asset) [][]string {
	rows := make([][]string, 0, len(assets))
	for _, asset := range assets {
		optimized := asset.OptimizedFileName
		if optimized == asset.OriginalFileName {
			optimized = "-"
		}
		original := asset.OriginalFileName
		if asset.OriginalDiscarded {
			original += " (discarded)"
		}
		rows = append(rows, []string{
			strconv.FormatInt(asset.ID, 10),
			formatStatusLabel(asset.Media),
			original,
			optimized,
			asset.RotateFlip,
			api.Dimensions(asset.Width, asset.Height),
			api.Duration(asset.DurationSeconds),
		})
	}
	return rows
}

var assetListAlignments = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}

// shortID trims UUIDs to their first group for table output; full IDs are
// accepted everywhere.
func shortID(id string) string {
	if head, _, ok := strings.Cut(id, "-"); ok && len(head) >= 8 {
		return head
	}
	return id
}

func assetDetailLines(asset ipc.Asset) []string {
	lines := []string{
		fmt.Sprintf("ID:          %d", asset.ID),
		fmt.Sprintf("Media:       %s", formatStatusLabel(asset.Media)),
		fmt.Sprintf("Directory:   %s", asset.Dir),
		fmt.Sprintf("Original:    %s", asset.OriginalFileName),
		fmt.Sprintf("Optimized:   %s", asset.OptimizedFileName),
		fmt.Sprintf("Rotation:    %s", asset.RotateFlip),
		fmt.Sprintf("Size:        %s", api.Dimensions(asset.Width, asset.Height)),
		fmt.Sprintf("Duration:    %s", api.Duration(asset.DurationSeconds)),
		fmt.Sprintf("New:         %s", yesNo(asset.IsNew)),
		fmt.Sprintf("Regenerate:  %s", yesNo(asset.RegenerateOptimized)),
		fmt.Sprintf("Discarded:   %s", yesNo(asset.OriginalDiscarded)),
	}
	return lines
}

func queueItemDetailLines(item ipc.QueueItem) []string {
	lines := []string{
		fmt.Sprintf("ID:          %s", item.ID),
		fmt.Sprintf("Asset:       %d", item.AssetID),
		fmt.Sprintf("Kind:        %s", formatStatusLabel(item.Kind)),
		fmt.Sprintf("Status:      %s", formatStatusLabel(item.Status)),
		fmt.Sprintf("Attempt:     %d", item.Attempt),
		fmt.Sprintf("Enqueued:    %s", formatDisplayTime(item.EnqueuedAt)),
		fmt.Sprintf("Started:     %s", formatDisplayTime(item.StartedAt)),
		fmt.Sprintf("Completed:   %s", formatDisplayTime(item.CompletedAt)),
		fmt.Sprintf("Elapsed:     %s", api.Elapsed(item)),
	}
	if item.Rotation != "" {
		lines = append(lines, fmt.Sprintf("Rotation:    %s", item.Rotation))
	}
	if item.ErrorKind != "" {
		lines = append(lines, fmt.Sprintf("Error kind:  %s", item.ErrorKind))
	}
	if detail := strings.TrimSpace(item.StatusDetail); detail != "" {
		lines = append(lines, "Detail:")
		for _, line := range strings.Split(detail, "\n") {
			lines = append(lines, "  "+line)
		}
	}
	return lines
}

func describeOutcome(outcome ipc.Outcome) string {
	label := formatStatusLabel(outcome.Disposition)
	if outcome.Reason != "" {
		label = fmt.Sprintf("%s (%s)", label, strings.ReplaceAll(outcome.Reason, "_", " "))
	}
	if outcome.Item != nil {
		label = fmt.Sprintf("%s [item %s]", label, outcome.Item.ID)
	}
	return label
}

func formatAge(value string, now time.Time) string {
	t := api.ParseQueueTime(value)
	if t.IsZero() {
		return "-"
	}
	return now.Sub(t).Round(time.Second).String()
}
