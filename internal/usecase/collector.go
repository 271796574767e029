package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"NewsRAG/internal/domain"
	"NewsRAG/internal/ports"
)

const (
	defaultDailyDaysBack = 1
	defaultRetentionDays = 30
)

// CollectorDeps wires the schedule driver with the ingestion pipeline.
type CollectorDeps struct {
	Pipeline *Pipeline
	Driver   ports.Scheduler
	Notifier ports.Notifier
	Logger   *slog.Logger

	DailyDaysBack int
	RetentionDays int
}

// Collector owns the daily schedule and the startup backfill.
type Collector struct {
	pipeline      *Pipeline
	driver        ports.Scheduler
	notifier      ports.Notifier
	logger        *slog.Logger
	dailyDaysBack int
	retentionDays int

	mu             sync.Mutex
	started        bool
	backfillCancel context.CancelFunc
	backfillDone   chan struct{}
}

// NewCollector returns a helper to start/stop the recurring collection.
func NewCollector(deps CollectorDeps) *Collector {
	c := &Collector{
		pipeline:      deps.Pipeline,
		driver:        deps.Driver,
		notifier:      deps.Notifier,
		logger:        deps.Logger,
		dailyDaysBack: deps.DailyDaysBack,
		retentionDays: deps.RetentionDays,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.dailyDaysBack < 1 {
		c.dailyDaysBack = defaultDailyDaysBack
	}
	if c.retentionDays < 1 {
		c.retentionDays = defaultRetentionDays
	}
	return c
}

// Start registers the daily job with the driver. Later calls are no-ops.
func (c *Collector) Start(ctx context.Context) error {
	if c.driver == nil || c.pipeline == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	// Shutdown waits for a running job through Stop instead of cancelling it.
	if err := c.driver.Start(context.WithoutCancel(ctx), func(jobCtx context.Context) {
		c.RunDaily(jobCtx)
	}); err != nil {
		return fmt.Errorf("start schedule: %w", err)
	}
	c.started = true
	return nil
}

// RunDaily collects the default themes, sweeps expired documents and notifies operators.
func (c *Collector) RunDaily(ctx context.Context) domain.CollectReport {
	report, err := c.pipeline.CollectAndStore(ctx, nil, c.dailyDaysBack)
	if err != nil {
		c.logger.Warn("daily collection interrupted", "run_id", report.RunID, "error", err)
	}
	report.Deleted = c.pipeline.DeleteOldDocuments(ctx, c.retentionDays)

	c.logger.Info("daily run finished", "run_id", report.RunID, "stored", report.Total, "deleted", report.Deleted)

	if c.notifier != nil {
		if err := c.notifier.PublishReport(ctx, report); err != nil {
			c.logger.Warn("publish run report", "run_id", report.RunID, "error", err)
		}
	}
	return report
}

// Backfill starts the initial collection in the background. It never blocks the caller;
// failures and panics are logged. Only the first call starts a backfill.
func (c *Collector) Backfill(ctx context.Context) {
	if c.pipeline == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backfillDone != nil {
		return
	}

	bctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.backfillCancel = cancel
	c.backfillDone = done

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("initial collection panicked", "panic", r)
			}
		}()

		report, diag, err := c.pipeline.CollectInitialData(bctx)
		if err != nil {
			c.logger.Error("initial collection failed", "run_id", report.RunID, "error", err)
			return
		}
		c.logger.Info("initial collection finished", "run_id", report.RunID, "stored", report.Total, "documents", diag.Total)
	}()
}

// Stop halts the schedule, then cancels the backfill and waits for both until ctx is done.
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	started := c.started
	c.started = false
	cancel, done := c.backfillCancel, c.backfillDone
	c.mu.Unlock()

	var stopErr error
	if started && c.driver != nil {
		if err := c.driver.Stop(ctx); err != nil {
			stopErr = fmt.Errorf("stop schedule: %w", err)
		}
	}

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			if stopErr == nil {
				stopErr = fmt.Errorf("wait for backfill: %w", ctx.Err())
			}
		}
	}

	c.logger.Info("collector stopped")
	return stopErr
}
