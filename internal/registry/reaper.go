// Package registry provides the gateway's instance bookkeeping.
// This file implements the background staleness reaper.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Reaper periodically sweeps the registry and evicts instances whose
// heartbeats have stopped. It is the self-healing path for backends that
// crashed without unregistering: no caller is ever told about the
// eviction, the records simply disappear.
//
// The reaper is owned by the gateway's lifecycle — started once at
// startup, stopped best-effort at shutdown — rather than a fire-and-
// forget goroutine, so tests that spin a gateway up and down repeatedly
// do not leak tickers.
//
// A sweep must never take the process down: any panic inside a sweep is
// caught, logged and the reaper keeps its schedule.
type Reaper struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration

	// sweepFn performs one eviction pass and returns the number of
	// records removed. Overridable so tests can stand in failing or
	// counting sweeps.
	sweepFn func() int

	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewReaper creates a reaper sweeping registry every interval and
// evicting records older than timeout. The timeout should sit several
// multiples above the backends' heartbeat interval so transient delays
// (GC pauses, brief network hiccups) never evict a live instance; with
// the default 60s heartbeat, a 5 minute timeout tolerates four
// consecutive missed beats.
func NewReaper(registry *Registry, interval, timeout time.Duration) *Reaper {
	r := &Reaper{
		registry: registry,
		interval: interval,
		timeout:  timeout,
		done:     make(chan struct{}),
	}
	r.sweepFn = func() int { return registry.EvictStale(timeout) }
	return r
}

// SetSweepFunction replaces the eviction pass run on each tick. Call it
// before Start; intended for tests.
func (r *Reaper) SetSweepFunction(fn func() int) {
	r.mu.Lock()
	r.sweepFn = fn
	r.mu.Unlock()
}

// Start launches the sweep loop in its own goroutine. It returns an
// error if the reaper is already running. The loop exits when ctx is
// cancelled or Stop is called.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper is already running")
	}
	r.running = true
	r.done = make(chan struct{})
	r.mu.Unlock()

	slog.Info("stale-instance reaper starting",
		"interval", r.interval.String(),
		"staleTimeout", r.timeout.String(),
	)

	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Stop signals the loop to exit and waits for it. Safe to call multiple
// times and before Start.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	close(r.done)
	r.running = false
	r.mu.Unlock()

	r.wg.Wait()
	slog.Info("stale-instance reaper stopped")
}

// RunNow performs a single sweep immediately, independent of the
// schedule. Used by tests and manual operations.
func (r *Reaper) RunNow() int {
	return r.sweep()
}

func (r *Reaper) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stale-instance reaper stopping (context cancelled)")
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep runs one eviction pass, converting any panic into a log line so
// the schedule survives. A panicked sweep counts as zero evictions.
func (r *Reaper) sweep() (evicted int) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("reaper sweep panicked", "panic", rec)
		}
	}()

	r.mu.Lock()
	fn := r.sweepFn
	r.mu.Unlock()

	if evicted = fn(); evicted > 0 {
		slog.Info("reaper sweep completed", "evicted", evicted, "remaining", r.registry.Len())
	} else {
		slog.Debug("reaper sweep completed (no stale instances)")
	}
	return evicted
}
