package ledgersync

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultMinInterval is the minimum spacing between non-forced sync runs.
const DefaultMinInterval = 30 * time.Second

// Runner performs one sync run.
type Runner interface {
	Run(ctx context.Context, skipPrices bool) (Result, error)
}

// Observer is notified after every completed run.
type Observer interface {
	ObserveSync(res Result, err error)
}

// Coordinator serializes sync runs and rate-limits non-forced ones. Concurrent callers that
// pass the rate limit and ask for the same price handling share the in-flight run. Runs are
// detached from caller cancellation so one departing caller cannot fail the others.
type Coordinator struct {
	runner      Runner
	minInterval time.Duration
	now         func() time.Time
	observer    Observer

	mu      sync.Mutex
	lastRun time.Time
	group   singleflight.Group
	runMu   sync.Mutex
}

// NewCoordinator creates a Coordinator. observer may be nil.
func NewCoordinator(runner Runner, minInterval time.Duration, observer Observer) *Coordinator {
	if runner == nil {
		panic("ledgersync.NewCoordinator: runner is nil")
	}
	if minInterval < 0 {
		minInterval = DefaultMinInterval
	}
	return &Coordinator{
		runner:      runner,
		minInterval: minInterval,
		now:         time.Now,
		observer:    observer,
	}
}

// WithClock replaces the time source. It is meant for tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// LastRun returns when the most recent run started, or the zero time.
func (c *Coordinator) LastRun() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRun
}

// Sync runs the sync unless a run started less than minInterval ago and force is false.
// When skipped it returns synced=false and the start time of the last run. If ctx ends first,
// Sync returns ctx.Err() and the run continues in the background.
func (c *Coordinator) Sync(ctx context.Context, force, skipPrices bool) (synced bool, at time.Time, err error) {
	c.mu.Lock()
	now := c.now()
	if !force && !c.lastRun.IsZero() && now.Sub(c.lastRun) < c.minInterval {
		last := c.lastRun
		c.mu.Unlock()
		return false, last, nil
	}
	c.lastRun = now
	c.mu.Unlock()

	runCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(skipPrices), func() (any, error) {
		c.runMu.Lock()
		defer c.runMu.Unlock()

		res, err := c.runner.Run(runCtx, skipPrices)
		if c.observer != nil {
			c.observer.ObserveSync(res, err)
		}
		return res, err
	})

	select {
	case <-ctx.Done():
		return true, now, ctx.Err()
	case r := <-ch:
		return true, r.Val.(Result).FinishedAt, r.Err
	}
}

func flightKey(skipPrices bool) string {
	if skipPrices {
		return "sync:no-prices"
	}
	return "sync"
}
