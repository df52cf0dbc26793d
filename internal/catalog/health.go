package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Health describes the catalog database state.
type Health struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	Assets           int
	HistoryRows      int
	Error            string
}

// CheckHealth returns diagnostic information about the catalog database.
func (s *Store) CheckHealth(ctx context.Context) (Health, error) {
	health := Health{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("catalog database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat catalog database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("catalog database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping catalog database: %w", err)
	}
	health.DatabaseReadable = true

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT version FROM schema_version LIMIT 1", &health.SchemaVersion},
		{"SELECT COUNT(1) FROM assets", &health.Assets},
		{"SELECT COUNT(1) FROM conversion_history", &health.HistoryRows},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(connCtx, q.sql).Scan(q.dest); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("query %q: %w", q.sql, err)
		}
	}
	return health, nil
}
