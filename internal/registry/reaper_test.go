package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebridge/internal/bridge"
)

func TestReaperRunNow(t *testing.T) {
	r, clock := newTestRegistry()
	reaper := NewReaper(r, time.Minute, 5*time.Minute)

	r.Register(bridge.RegistrationMessage{ProcessID: 1, Port: 5001})
	r.Register(bridge.RegistrationMessage{ProcessID: 2, Port: 5002})

	// Only pid 2 keeps heartbeating.
	clock.Advance(6 * time.Minute)
	require.True(t, r.Heartbeat(2))

	assert.Equal(t, 1, reaper.RunNow())
	_, found := r.ByProcessID(1)
	assert.False(t, found)
	_, found = r.ByProcessID(2)
	assert.True(t, found)
}

func TestReaperLifecycle(t *testing.T) {
	r, _ := newTestRegistry()
	reaper := NewReaper(r, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, reaper.Start(ctx))
	assert.Error(t, reaper.Start(ctx), "second start must be rejected")

	// Let a few sweeps run against the empty registry.
	time.Sleep(50 * time.Millisecond)

	reaper.Stop()
	reaper.Stop() // idempotent

	// Restart after stop is allowed.
	require.NoError(t, reaper.Start(ctx))
	reaper.Stop()
}

func TestReaperStopsOnContextCancel(t *testing.T) {
	r, _ := newTestRegistry()
	reaper := NewReaper(r, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, reaper.Start(ctx))

	cancel()

	done := make(chan struct{})
	go func() {
		reaper.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after context cancellation")
	}
}

func TestReaperSurvivesPanickingSweep(t *testing.T) {
	r, _ := newTestRegistry()
	reaper := NewReaper(r, 10*time.Millisecond, time.Minute)

	// First sweep blows up; the schedule must carry on regardless.
	var mu sync.Mutex
	calls := 0
	reaper.SetSweepFunction(func() int {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			panic("eviction went sideways")
		}
		return 0
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, reaper.Start(ctx))
	defer reaper.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, calls, 3, "ticks after the panic must still sweep")
}

func TestReaperRunNowRecoversPanic(t *testing.T) {
	r, _ := newTestRegistry()
	reaper := NewReaper(r, time.Minute, time.Minute)
	reaper.SetSweepFunction(func() int { panic("boom") })

	assert.NotPanics(t, func() {
		assert.Equal(t, 0, reaper.RunNow(), "panicked sweep counts zero evictions")
	})
}

func TestReaperSweepEvictsOnSchedule(t *testing.T) {
	r, clock := newTestRegistry()
	r.Register(bridge.RegistrationMessage{ProcessID: 1, Port: 5001})
	clock.Advance(2 * time.Minute)

	reaper := NewReaper(r, 15*time.Millisecond, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, reaper.Start(ctx))
	defer reaper.Stop()

	deadline := time.Now().Add(time.Second)
	for r.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, r.Len(), "scheduled sweep should evict the stale record")
}
