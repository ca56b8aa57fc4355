package pipeline

// scheduler.go re-runs the pipeline on a fixed interval in serve mode.
//
// Ticks that land while a run is still going (for example one triggered over
// HTTP) are skipped rather than queued. A failed run is logged and the
// schedule carries on.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/JonMunkholm/maintetl/internal/core"
)

// Runner is what the scheduler drives. *Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context) *RunReport
}

// StartScheduler runs the pipeline every interval until ctx is cancelled.
// The first run starts one interval after the call. It blocks, so call it
// in its own goroutine.
func StartScheduler(ctx context.Context, r Runner, limiter *RunLimiter, interval time.Duration) {
	if interval <= 0 {
		return
	}

	slog.Info("pipeline scheduler started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("pipeline scheduler stopped")
			return
		case <-ticker.C:
			runScheduled(ctx, r, limiter)
		}
	}
}

// runScheduled performs one scheduled run if the slot is free.
func runScheduled(ctx context.Context, r Runner, limiter *RunLimiter) {
	if limiter != nil {
		if !limiter.TryAcquire() {
			slog.Warn("scheduled run skipped", "error", core.ErrRunInProgress)
			return
		}
		defer limiter.Release()
	}

	start := time.Now()
	report := r.Run(ctx)

	if report.Failed() {
		level := slog.LevelError
		if errors.Is(ctx.Err(), context.Canceled) {
			level = slog.LevelInfo
		}
		slog.Log(ctx, level, "scheduled run failed",
			"run_id", report.RunID,
			"errors", len(report.Errors),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	slog.Info("scheduled run completed",
		"run_id", report.RunID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
