package api

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DetailSummary returns the first line of a status detail, truncated to max
// runes. The encoder diagnostic that follows it is dropped.
func DetailSummary(detail string, max int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(detail), "\n")
	if max <= 0 {
		return line
	}
	runes := []rune(line)
	if len(runes) <= max {
		return line
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

// Dimensions renders width x height, or "-" when unknown.
func Dimensions(width, height int) string {
	if width <= 0 || height <= 0 {
		return "-"
	}
	return fmt.Sprintf("%dx%d", width, height)
}

// Duration renders seconds as a rounded duration, or "-" when unknown.
func Duration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

// Elapsed renders the processing time of an item, or "-" when it has not
// finished.
func Elapsed(item QueueItem) string {
	started := parseQueueTime(item.StartedAt)
	completed := parseQueueTime(item.CompletedAt)
	if started.IsZero() || completed.IsZero() {
		return "-"
	}
	return completed.Sub(started).Round(time.Millisecond).String()
}

// SortQueueItemsNewestFirst returns a copy ordered by EnqueuedAt descending.
// Items enqueued in the same instant fall back to ID order.
func SortQueueItemsNewestFirst(items []QueueItem) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b QueueItem) int {
		if c := parseQueueTime(b.EnqueuedAt).Compare(parseQueueTime(a.EnqueuedAt)); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return sorted
}

// ParseQueueTime parses an API timestamp, returning the zero time for
// empty or malformed values.
func ParseQueueTime(value string) time.Time {
	return parseQueueTime(value)
}

func parseQueueTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
