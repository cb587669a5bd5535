package importer

// scheduler.go runs the background reconcile sweep. The rollup is a pure
// function of the offer set, so stored rollup fields can always be
// re-derived; the sweep periodically re-derives them for recently touched
// products, repairs any drift and logs it. Individual failures never stop
// the sweep or the application.

import (
	"context"
	"log/slog"
	"time"
)

// SweepConfig holds configuration for the reconcile sweep.
// Zero values fall back to the defaults noted per field.
type SweepConfig struct {
	Lookback  time.Duration // how far back "recently touched" reaches (default: 24h)
	BatchSize int           // max products per sweep (default: 500)
	Interval  time.Duration // how often to run (default: 1h)
}

func (c *SweepConfig) applyDefaults() {
	if c.Lookback <= 0 {
		c.Lookback = 24 * time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
}

// StartReconcileSweep runs sweeps until the context is cancelled. It runs
// once immediately on start, then every Interval.
func (s *Service) StartReconcileSweep(ctx context.Context, cfg SweepConfig) {
	cfg.applyDefaults()

	slog.Info("reconcile sweep started",
		"lookback", cfg.Lookback,
		"batch_size", cfg.BatchSize,
		"interval", cfg.Interval,
	)

	s.runSweep(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconcile sweep stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx, cfg)
		}
	}
}

// runSweep performs one re-derivation pass.
func (s *Service) runSweep(ctx context.Context, cfg SweepConfig) {
	start := time.Now()

	ids, err := s.store.RecentlyUpdatedProductIDs(ctx, start.Add(-cfg.Lookback), cfg.BatchSize)
	if err != nil {
		slog.Error("reconcile sweep: list products failed", "error", err)
		return
	}

	repaired := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		if err := s.RecomputeProduct(ctx, id); err != nil {
			slog.Error("reconcile sweep: recompute failed", "product_id", id, "error", err)
			continue
		}
		repaired++
	}

	slog.Debug("reconcile sweep finished",
		"products", len(ids),
		"recomputed", repaired,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
