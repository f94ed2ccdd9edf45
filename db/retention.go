package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// RetentionPolicy defines which settled game rows to clean up.
type RetentionPolicy struct {
	// KeepLastNDays: settled games older than this many days are deleted (0 = disabled)
	KeepLastNDays int
	// DryRun: when true, log the row count but don't delete
	DryRun bool
	// Interval: how often to run the cleanup job
	Interval time.Duration
}

// LoadRetentionPolicy loads retention policy configuration from environment variables.
func LoadRetentionPolicy() RetentionPolicy {
	policy := RetentionPolicy{
		Interval: 6 * time.Hour,
	}
	if s := os.Getenv("RETENTION_KEEP_DAYS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			policy.KeepLastNDays = n
		}
	}
	if os.Getenv("RETENTION_DRY_RUN") == "1" {
		policy.DryRun = true
	}
	if s := os.Getenv("RETENTION_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			policy.Interval = d
		}
	}
	return policy
}

// StartRetentionJob runs a background job that periodically deletes settled
// game rows older than the retention window. Active games are never touched.
func StartRetentionJob(ctx context.Context, dbc *sql.DB) {
	policy := LoadRetentionPolicy()
	if policy.KeepLastNDays == 0 {
		slog.Info("retention job disabled (no policy configured)")
		return
	}

	slog.Info("retention job starting",
		slog.Int("keep_days", policy.KeepLastNDays),
		slog.Bool("dry_run", policy.DryRun),
		slog.Duration("interval", policy.Interval))

	// Run immediately on start
	if err := runRetentionCleanup(ctx, dbc, policy); err != nil {
		slog.Warn("retention cleanup failed", slog.Any("err", err))
	}

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention job stopped")
			return
		case <-ticker.C:
			if err := runRetentionCleanup(ctx, dbc, policy); err != nil {
				slog.Warn("retention cleanup failed", slog.Any("err", err))
			}
		}
	}
}

// runRetentionCleanup performs a single retention cleanup cycle.
func runRetentionCleanup(ctx context.Context, dbc *sql.DB, policy RetentionPolicy) error {
	logger := slog.Default().With(
		slog.String("component", "retention_cleanup"),
		slog.Bool("dry_run", policy.DryRun))

	cutoff := time.Now().Add(-time.Duration(policy.KeepLastNDays) * 24 * time.Hour)

	if policy.DryRun {
		var count int
		row := dbc.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM games WHERE state='settled' AND settled_at < $1`, cutoff)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("count old settled games: %w", err)
		}
		logger.Info("dry-run: would delete settled games", slog.Int("count", count), slog.Time("cutoff", cutoff))
		return nil
	}

	res, err := dbc.ExecContext(ctx,
		`DELETE FROM games WHERE state='settled' AND settled_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("delete old settled games: %w", err)
	}
	deleted, _ := res.RowsAffected()
	logger.Info("retention cleanup completed", slog.Int64("deleted", deleted), slog.Time("cutoff", cutoff))
	return nil
}
