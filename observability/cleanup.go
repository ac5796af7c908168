package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// RetentionConfig is the per-table retention in days. Zero keeps everything.
type RetentionConfig struct {
	HTTPLogsDays  int `yaml:"http_logs_days"`
	EventLogsDays int `yaml:"event_logs_days"`
	MetricsDays   int `yaml:"metrics_days"`
}

// Cleanup deletes rows older than the configured retention.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()
	targets := []struct {
		query string
		days  int
	}{
		{"DELETE FROM http_request_logs WHERE created_at < ?", cfg.HTTPLogsDays},
		{"DELETE FROM business_event_logs WHERE created_at < ?", cfg.EventLogsDays},
		{"DELETE FROM metrics_timeseries WHERE timestamp < ?", cfg.MetricsDays},
	}
	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, t.query, now-int64(t.days*86400)); err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
	}
	return nil
}

// StartCleanup runs Cleanup once a day until ctx is done.
func StartCleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) {
	go func() {
		tick := time.NewTicker(24 * time.Hour)
		defer tick.Stop()
		for {
			if err := Cleanup(ctx, db, cfg); err != nil && ctx.Err() == nil {
				slog.Warn("observability: retention cleanup failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
		}
	}()
}
