package glock_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/companyinfo/glock"
	"github.com/companyinfo/glock/glocktest"
)

// S1: Start then Stop leaves the Worker not running and guarantees the
// payload is not mid-flight once Stop returns.
func TestWorkerStartStop(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	var inPayload atomic.Bool
	payload := func(ctx context.Context) error {
		inPayload.Store(true)
		defer inPayload.Store(false)
		<-ctx.Done()
		return ctx.Err()
	}

	w := glock.NewWorker("job", payload, strategy, fastSettings())

	if w.IsRunning() {
		t.Fatal("expected Worker not running before Start")
	}

	w.Start()

	deadline := time.After(2 * time.Second)
	for !inPayload.Load() {
		select {
		case <-deadline:
			t.Fatal("payload never started")
		case <-time.After(time.Millisecond):
		}
	}

	if !w.IsRunning() {
		t.Fatal("expected Worker running after Start")
	}

	w.Stop()

	if w.IsRunning() {
		t.Error("expected Worker not running after Stop")
	}
	if inPayload.Load() {
		t.Error("expected payload to have observed cancellation by the time Stop returned")
	}
}

// Start is single-use: a second call is a no-op, not a second supervisor.
func TestWorkerStartIsSingleUse(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	var starts atomic.Int64
	payload := func(ctx context.Context) error {
		starts.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}

	w := glock.NewWorker("job", payload, strategy, fastSettings())
	w.Start()
	w.Start()

	time.Sleep(50 * time.Millisecond)
	w.Stop()

	if got := starts.Load(); got != 1 {
		t.Errorf("payload started %d times, want 1 (second Start should be a no-op)", got)
	}
}

// Stop is idempotent and safe even if Start was never called.
func TestWorkerStopWithoutStartIsSafe(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	payload := func(ctx context.Context) error { return nil }
	w := glock.NewWorker("job", payload, strategy, fastSettings())

	w.Stop()
	w.Stop()

	if w.IsRunning() {
		t.Error("expected Worker not running")
	}
}

// S2: losing the lease to another locker_id restarts the payload instead
// of ending the Worker, and statistics reflect the watchdog trigger.
func TestWorkerRestartsPayloadAfterLeaseLoss(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	var runs atomic.Int64
	payload := func(ctx context.Context) error {
		runs.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}

	w := glock.NewWorker("job", payload, strategy, fastSettings())
	w.Start()
	defer w.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("payload never started")
		case <-time.After(time.Millisecond):
		}
	}

	strategy.SetLockedBy("intruder")
	time.Sleep(50 * time.Millisecond)
	strategy.SetLockedBy("")

	deadline = time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("worker did not restart payload after lease loss")
		case <-time.After(time.Millisecond):
		}
	}

	if got := w.GetStatistics().WatchdogTriggers(); got < 1 {
		t.Errorf("WatchdogTriggers() = %d, want >= 1", got)
	}
}
