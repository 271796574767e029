package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsRAG/internal/ports"
)

// CronScheduler runs one job on a cron expression in a fixed timezone.
// A run that is still going when the next trigger fires is skipped.
type CronScheduler struct {
	spec   string
	loc    *time.Location
	logger *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CronScheduler{spec: spec, loc: loc, logger: logger}
}

// Start registers the job. Calling Start again while running does nothing.
func (c *CronScheduler) Start(ctx context.Context, job func(context.Context)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cronLog := cron.PrintfLogger(slog.NewLogLogger(c.logger.Handler(), slog.LevelInfo))
	cr := cron.New(
		cron.WithLocation(c.loc),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := cr.AddFunc(c.spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", c.spec, err)
	}

	cr.Start()
	c.cron = cr
	c.logger.Info("schedule registered", "cron", c.spec, "timezone", c.loc.String(), "next_run", cr.Entries()[0].Next)
	return nil
}

// Stop halts future triggers and waits for a running job until ctx is done.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()

	if cr == nil {
		return nil
	}

	done := cr.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for running job: %w", ctx.Err())
	}
}
