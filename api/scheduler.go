/*
scheduler.go - Periodic refresh of the derived state

PURPOSE:
  The hosted store has no change feed the engine subscribes to, so the
  dashboard state is refreshed on a ticker. Every tick triggers the
  recomputer; a tick that lands while a previous refresh is still running
  supersedes it.

CONFIGURATION:
  - Interval: How often to refresh (config refresh.interval, default 5m)
  - Enabled:  Whether the scheduler runs at all

USAGE:
  scheduler := NewRefreshScheduler(recomputer, 5*time.Minute, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - engine/recomputer.go: Trigger and supersede semantics
  - handlers.go: POST /api/recompute (manual refresh)
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/engine"
	"github.com/astropanel/sales-engine/generic"
)

// RefreshScheduler recomputes the derived state on a fixed interval.
type RefreshScheduler struct {
	Recomputer *engine.Recomputer
	Interval   time.Duration
	Enabled    bool
	Logger     *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefreshScheduler creates a scheduler. A non-positive interval disables it.
func NewRefreshScheduler(rec *engine.Recomputer, interval time.Duration, logger *zap.Logger) *RefreshScheduler {
	if logger == nil {
		logger = zap.L()
	}
	return &RefreshScheduler{
		Recomputer: rec,
		Interval:   interval,
		Enabled:    interval > 0,
		Logger:     logger,
	}
}

// Start begins the scheduler. The first refresh runs immediately.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("refresh scheduler disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.stop = make(chan struct{})
	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)

	go rs.run(ctx)

	rs.Logger.Info("refresh scheduler started", zap.Duration("interval", rs.Interval))
}

// Stop stops the scheduler and waits for an in-flight refresh to return.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	rs.cancel()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.Logger.Info("refresh scheduler stopped")
}

func (rs *RefreshScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	rs.RunNow(ctx)

	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow(ctx)
		case <-rs.stop:
			return
		}
	}
}

// RunNow triggers an immediate refresh and reports whether it published.
func (rs *RefreshScheduler) RunNow(ctx context.Context) bool {
	start := time.Now()
	state, err := rs.Recomputer.Trigger(ctx)
	switch {
	case errors.Is(err, generic.ErrSuperseded), errors.Is(err, context.Canceled):
		rs.Logger.Debug("refresh superseded")
		return false
	case err != nil:
		rs.Logger.Error("refresh failed", zap.Error(err))
		return false
	}

	rs.Logger.Info("refresh completed",
		zap.String("month", state.Month.String()),
		zap.Int("payments", len(state.Attributed)),
		zap.Duration("took", time.Since(start)),
	)
	return true
}

// NextRunTime returns when the next scheduled refresh will occur.
func (rs *RefreshScheduler) NextRunTime() time.Time {
	return time.Now().Add(rs.Interval)
}
