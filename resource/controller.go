// Package resource bounds the background work fragdb performs: index
// rebuilds and reconciliation sweeps acquire a worker slot and pace their
// record throughput so foreground queries keep breathing room.
package resource

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxBackgroundWorkers is the maximum number of concurrent background
	// jobs. If 0, defaults to 1.
	MaxBackgroundWorkers int64

	// SweepRecordsPerSec caps how many records per second a reconciliation
	// sweep touches. If 0, unlimited.
	SweepRecordsPerSec int
}

// Controller manages background concurrency and pacing.
type Controller struct {
	bgSem   *semaphore.Weighted
	limiter *rate.Limiter
	workers int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		bgSem:   semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
		workers: cfg.MaxBackgroundWorkers,
	}
	if cfg.SweepRecordsPerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.SweepRecordsPerSec), cfg.SweepRecordsPerSec)
	}
	return c
}

// Workers returns the configured background worker limit.
func (c *Controller) Workers() int {
	if c == nil {
		return 1
	}
	return int(c.workers)
}

// AcquireWorker blocks until a background worker slot is available or ctx
// is canceled.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// ReleaseWorker returns a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// WaitRecord blocks until the pacing limiter permits touching one more
// record. A nil controller or unconfigured limiter never blocks.
func (c *Controller) WaitRecord(ctx context.Context) error {
	if c == nil || c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
