package core

// scheduler.go runs background maintenance of the run history.
//
// Pruning deletes runs (and their failed rows) older than the retention
// window. It runs once at start and then every CheckInterval until the
// context is cancelled. A failed prune is logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig holds configuration for the history pruning scheduler.
type PruneConfig struct {
	RetentionDays int           // Days of history to keep (default: 30)
	CheckInterval time.Duration // How often to prune (default: 24h)
}

func (c PruneConfig) withDefaults() PruneConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartPruneScheduler prunes old runs until ctx is cancelled.
// It blocks; start it in its own goroutine. Does nothing without a store.
func (s *Service) StartPruneScheduler(ctx context.Context, cfg PruneConfig) {
	if s.store == nil {
		return
	}
	cfg = cfg.withDefaults()

	slog.Info("history prune scheduler started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval.String(),
	)

	s.runPruneJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history prune scheduler stopped")
			return
		case <-ticker.C:
			s.runPruneJob(ctx, cfg)
		}
	}
}

// runPruneJob performs one prune cycle.
func (s *Service) runPruneJob(ctx context.Context, cfg PruneConfig) {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -cfg.RetentionDays)

	pruned, err := s.store.PruneRuns(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned validation runs",
		"runs_pruned", pruned,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
