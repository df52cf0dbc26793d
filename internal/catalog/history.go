package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mediaconv/internal/gallery"
	"mediaconv/internal/queue"
)

const historyColumns = "item_id, asset_id, kind, status, error_kind, status_detail, rotation, attempt, enqueued_at, started_at, completed_at"

// RecordOutcome implements queue.HistorySink. Recording the same item twice
// overwrites the earlier row.
func (s *Store) RecordOutcome(ctx context.Context, item queue.Item) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO conversion_history (`+historyColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(item_id) DO UPDATE SET
             status = excluded.status,
             error_kind = excluded.error_kind,
             status_detail = excluded.status_detail,
             started_at = excluded.started_at,
             completed_at = excluded.completed_at`,
		item.ID,
		item.AssetID,
		string(item.Kind),
		string(item.Status),
		nullableString(item.ErrorKind),
		nullableString(item.StatusDetail),
		nullableString(string(item.Rotation)),
		item.Attempt,
		item.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(item.StartedAt),
		nullableTime(item.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", item.ID, err)
	}
	return nil
}

// HistoryFilter narrows History results. Zero values match everything.
type HistoryFilter struct {
	AssetID int64
	Status  queue.Status
	Limit   int
}

// History returns recorded outcomes, most recently completed first.
func (s *Store) History(ctx context.Context, filter HistoryFilter) ([]queue.Item, error) {
	query := `SELECT ` + historyColumns + ` FROM conversion_history WHERE 1=1`
	var args []any
	if filter.AssetID > 0 {
		query += ` AND asset_id = ?`
		args = append(args, filter.AssetID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY completed_at DESC, enqueued_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []queue.Item
	for rows.Next() {
		var (
			item         queue.Item
			kind, status string
			errorKind    sql.NullString
			detail       sql.NullString
			rotation     sql.NullString
			enqueued     sql.NullString
			started      sql.NullString
			completed    sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.AssetID, &kind, &status, &errorKind, &detail,
			&rotation, &item.Attempt, &enqueued, &started, &completed); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		item.Kind = queue.Kind(kind)
		item.Status = queue.Status(status)
		item.ErrorKind = errorKind.String
		item.StatusDetail = detail.String
		item.Rotation = gallery.RotateFlip(rotation.String)
		item.EnqueuedAt = parseTime(enqueued)
		item.StartedAt = parseTime(started)
		item.CompletedAt = parseTime(completed)
		items = append(items, item)
	}
	return items, rows.Err()
}

// ClearHistory deletes all recorded outcomes and returns how many were removed.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM conversion_history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

var _ queue.HistorySink = (*Store)(nil)
