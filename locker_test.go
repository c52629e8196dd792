package glock_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/companyinfo/glock"
	"github.com/companyinfo/glock/glocktest"
)

func fastSettings() glock.Settings {
	return glock.Settings{
		AcquireInterval:        5 * time.Millisecond,
		AcquireBackoff:         5 * time.Millisecond,
		ProlongInterval:        10 * time.Millisecond,
		LockTTL:                50 * time.Millisecond,
		WorkerFuncRestartDelay: 5 * time.Millisecond,
	}
}

// S1: a oneshot locker runs its payload exactly once and returns.
func TestLockerOneshotRunsPayloadOnce(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	var runs atomic.Int64
	payload := func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}

	l := glock.NewLocker("job", glock.NewLockerID(), strategy, payload, fastSettings(), glock.Retry)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), glock.ModeOneshot, glock.Wait) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("oneshot locker did not terminate")
	}

	if got := runs.Load(); got != 1 {
		t.Errorf("payload ran %d times, want 1", got)
	}
	if strategy.IsLocked() {
		t.Error("expected lease released after oneshot completion")
	}
}

// S6: NoWait over an already-held lease succeeds immediately with zero
// payload executions.
func TestLockerOneshotNoWaitOnHeldLockSkipsPayload(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)
	strategy.SetLockedBy("someone-else")

	var runs atomic.Int64
	payload := func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}

	l := glock.NewLocker("job", glock.NewLockerID(), strategy, payload, fastSettings(), glock.Retry)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), glock.ModeOneshot, glock.NoWait) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("oneshot locker did not terminate under NoWait")
	}

	if got := runs.Load(); got != 0 {
		t.Errorf("payload ran %d times, want 0", got)
	}
}

// S4: a SingleAttempt locker propagates the first transient acquisition
// failure instead of retrying.
func TestLockerSingleAttemptPropagatesTransientFailure(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(false)

	payload := func(ctx context.Context) error { return nil }

	l := glock.NewLocker("job", glock.NewLockerID(), strategy, payload, fastSettings(), glock.SingleAttempt)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), glock.ModeOneshot, glock.Wait) }()

	select {
	case err := <-done:
		var transient *glock.Transient
		if !errors.As(err, &transient) {
			t.Fatalf("Run returned %v, want *glock.Transient", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("single-attempt locker did not terminate")
	}
}

// S2: the watchdog noticing the lease was taken by someone else ends the
// ownership cycle and cancels the running payload, even though the
// payload itself never returns.
func TestLockerWatchdogFiringCancelsPayloadAndEndsOneshot(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	payloadCancelled := make(chan struct{})
	payload := func(ctx context.Context) error {
		<-ctx.Done()
		close(payloadCancelled)
		return ctx.Err()
	}

	l := glock.NewLocker("job", glock.NewLockerID(), strategy, payload, fastSettings(), glock.Retry)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), glock.ModeOneshot, glock.Wait) }()

	// Wait for the lease to actually be held, then steal it out from
	// under the locker to trigger a watchdog-detected loss.
	deadline := time.After(2 * time.Second)
	for !strategy.IsLocked() {
		select {
		case <-deadline:
			t.Fatal("lease was never acquired")
		case <-time.After(time.Millisecond):
		}
	}
	strategy.SetLockedBy("intruder")

	select {
	case <-payloadCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("payload was never cancelled after watchdog lost the lease")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil (watchdog-fired oneshot termination)", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("oneshot locker did not terminate after watchdog fired")
	}
}

// S5: a misconfigured settings snapshot (prolong_interval >= lock_ttl, or
// here a backend that stops renewing) does not block the payload from
// starting. The watchdog's local-TTL guard is what tears the cycle down
// once the lease age exceeds lock_ttl without a proven-fresh renewal, and
// it is recorded as a brain-split.
func TestLockerWatchdogBrainSplitOnRenewalStarvation(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	settings := fastSettings()

	payloadCancelled := make(chan struct{})
	payload := func(ctx context.Context) error {
		<-ctx.Done()
		close(payloadCancelled)
		return ctx.Err()
	}

	l := glock.NewLocker("job", glock.NewLockerID(), strategy, payload, settings, glock.Retry)

	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background(), glock.ModeOneshot, glock.Wait) }()

	deadline := time.After(2 * time.Second)
	for !strategy.IsLocked() {
		select {
		case <-deadline:
			t.Fatal("lease was never acquired")
		case <-time.After(time.Millisecond):
		}
	}

	// started_work_count must be >= 1: the payload has to actually run
	// before the backend goes unreachable and the watchdog starves.
	if !l.IsLocked() {
		t.Fatal("locker did not observe the lease as held before starvation began")
	}

	strategy.Allow(false)

	select {
	case <-payloadCancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("payload was never cancelled after renewal starvation")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v, want nil (watchdog-fired oneshot termination)", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("oneshot locker did not terminate after brain-split")
	}

	if l.IsLocked() {
		t.Error("expected IsLocked() false after brain-split tore the cycle down")
	}
	if got := l.GetStatistics().BrainSplits(); got < 1 {
		t.Errorf("BrainSplits() = %d, want >= 1", got)
	}
}

// Worker mode loops back to UNLOCKED after a watchdog-fired cycle instead
// of terminating, re-attempting acquisition on the next settings snapshot.
func TestLockerWorkerReacquiresAfterWatchdogFires(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	var runs atomic.Int64
	payload := func(ctx context.Context) error {
		runs.Add(1)
		<-ctx.Done()
		return ctx.Err()
	}

	l := glock.NewLocker("job", glock.NewLockerID(), strategy, payload, fastSettings(), glock.Retry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, glock.ModeWorker, glock.Wait) }()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("payload never started")
		case <-time.After(time.Millisecond):
		}
	}
	strategy.SetLockedBy("intruder")
	// Give the watchdog time to notice the theft and tear the cycle down,
	// then free the resource so the worker's next acquisition can succeed.
	time.Sleep(50 * time.Millisecond)
	strategy.SetLockedBy("")

	// The worker should reclaim the lease and run the payload again.
	deadline = time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("worker did not restart payload after losing the lease")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker locker did not terminate after external cancel")
	}
}

// Cancelling the governing context always tears the Locker down and
// releases the lease, regardless of mode.
func TestLockerExternalCancelReleasesLease(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	started := make(chan struct{})
	payload := func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	l := glock.NewLocker("job", glock.NewLockerID(), strategy, payload, fastSettings(), glock.Retry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, glock.ModeWorker, glock.Wait) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("payload never started")
	}

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("locker did not terminate after cancel")
	}

	if strategy.IsLocked() {
		t.Error("expected lease released after external cancel")
	}
}
