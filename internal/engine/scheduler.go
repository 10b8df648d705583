package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/storyscout/internal/observability"
	"github.com/IshaanNene/storyscout/internal/reconcile"
	"github.com/IshaanNene/storyscout/internal/types"
)

// Saver persists a scrape run.
type Saver interface {
	Save(ctx context.Context, run *types.ScrapeRun) (*reconcile.Result, error)
}

// Scheduler runs scrape-and-save passes, once or on an interval.
type Scheduler struct {
	runner   *Runner
	saver    Saver
	interval time.Duration
	metrics  *observability.Metrics
	logger   *slog.Logger
	passes   atomic.Int64
}

// NewScheduler creates a Scheduler. metrics may be nil.
func NewScheduler(runner *Runner, saver Saver, interval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		saver:    saver,
		interval: interval,
		metrics:  metrics,
		logger:   logger.With("component", "scheduler"),
	}
}

// RunOnce performs one scrape pass and saves its run. Both results are
// returned even when saving fails, so callers can report partial work.
func (s *Scheduler) RunOnce(ctx context.Context) (*Report, *reconcile.Result, error) {
	s.passes.Add(1)
	defer func() {
		if s.metrics != nil {
			s.metrics.LastRunUnix.Store(time.Now().Unix())
		}
	}()

	report, err := s.runner.Run(ctx)
	if err != nil {
		return nil, nil, err
	}

	res, err := s.saver.Save(ctx, report.Run)
	return report, res, err
}

// Start runs a pass immediately and then every interval until ctx is
// canceled. Failed passes are logged; the loop keeps going.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("watch started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		if _, _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("pass failed", "pass", s.passes.Load(), "error", err)
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	s.logger.Info("watch stopped", "passes", s.passes.Load())
	return nil
}

// Passes returns how many passes have started.
func (s *Scheduler) Passes() int64 {
	return s.passes.Load()
}
