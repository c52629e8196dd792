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

// S4: a SingleAttempt OneshotTask re-raises a transient acquisition
// failure from Get.
func TestOneshotTaskSingleAttemptPropagatesFailure(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(false)

	payload := func(ctx context.Context) error { return nil }

	task := glock.NewOneshotTask(context.Background(), "job", payload, strategy,
		fastSettings(), glock.Wait, glock.SingleAttempt)

	if !task.WaitFor(2 * time.Second) {
		t.Fatal("task did not finish")
	}

	err := task.Get()
	if err == nil {
		t.Fatal("expected Get() to re-raise the acquisition failure")
	}
	var transient *glock.Transient
	if !errors.As(err, &transient) {
		t.Errorf("Get() = %v, want it to wrap a *glock.Transient", err)
	}
}

// S6: NoWait over an already-held lock is a legitimate success with zero
// payload executions, not an error.
func TestOneshotTaskNoWaitOnHeldLockIsNotAnError(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)
	strategy.SetLockedBy("someone-else")

	var runs atomic.Int64
	payload := func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}

	task := glock.NewOneshotTask(context.Background(), "job", payload, strategy,
		fastSettings(), glock.NoWait, glock.Retry)

	if !task.WaitFor(2 * time.Second) {
		t.Fatal("task did not finish")
	}
	if err := task.Get(); err != nil {
		t.Errorf("Get() = %v, want nil", err)
	}
	if got := runs.Load(); got != 0 {
		t.Errorf("payload ran %d times, want 0", got)
	}
}

// S7: two OneshotTasks contending for the same resource both finish, but
// only one ever runs the payload.
func TestOneshotTaskContentionRunsPayloadExactlyOnce(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	var started, finished atomic.Int64
	payload := func(ctx context.Context) error {
		started.Add(1)
		time.Sleep(20 * time.Millisecond)
		finished.Add(1)
		return nil
	}

	settings := fastSettings()
	ctx := context.Background()

	taskA := glock.NewOneshotTask(ctx, "job", payload, strategy, settings, glock.NoWait, glock.Retry)
	taskB := glock.NewOneshotTask(ctx, "job", payload, strategy, settings, glock.NoWait, glock.Retry)

	if !taskA.WaitFor(2 * time.Second) {
		t.Fatal("task A did not finish")
	}
	if !taskB.WaitFor(2 * time.Second) {
		t.Fatal("task B did not finish")
	}

	if err := taskA.Get(); err != nil {
		t.Errorf("task A Get() = %v, want nil", err)
	}
	if err := taskB.Get(); err != nil {
		t.Errorf("task B Get() = %v, want nil", err)
	}

	if got := started.Load(); got != 1 {
		t.Errorf("payload started %d times, want exactly 1", got)
	}
	if got := finished.Load(); got != 1 {
		t.Errorf("payload finished %d times, want exactly 1", got)
	}
}

// Cancelling the governing context tears a running OneshotTask down and
// surfaces context.Canceled from Get.
func TestOneshotTaskExternalCancelSurfacesFromGet(t *testing.T) {
	strategy := glocktest.NewFakeStrategy()
	strategy.Allow(true)

	started := make(chan struct{})
	payload := func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := glock.NewOneshotTask(ctx, "job", payload, strategy, fastSettings(), glock.Wait, glock.Retry)

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("payload never started")
	}

	cancel()

	if !task.WaitFor(2 * time.Second) {
		t.Fatal("task did not finish after cancel")
	}
	if err := task.Get(); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() = %v, want it to wrap context.Canceled", err)
	}
}
