package glock

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// TaskState mirrors the joinable-handle states a OneshotTask can report
// via GetState.
type TaskState int

const (
	// TaskRunning: the supervisor has not yet terminated.
	TaskRunning TaskState = iota
	// TaskCompleted: the supervisor terminated, successfully or not.
	TaskCompleted
)

// OneshotTask constructs and immediately starts a Locker in Oneshot mode,
// exposing a joinable handle over its outcome. NoWait + held-by-other is
// a legitimate success outcome with zero payload executions, not an error.
type OneshotTask struct {
	locker *Locker

	done chan struct{}
	err  error
}

// NewOneshotTask constructs and starts a OneshotTask. ctx governs the
// whole run: cancelling it tears the Locker down exactly as Worker.Stop
// would.
func NewOneshotTask(
	ctx context.Context,
	name string,
	payload PayloadFunc,
	strategy LockStrategy,
	settings Settings,
	waitingMode WaitingMode,
	retryMode RetryMode,
) *OneshotTask {
	t := &OneshotTask{
		locker: NewLocker(name, NewLockerID(), strategy, payload, settings, retryMode),
		done:   make(chan struct{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return t.locker.Run(gctx, ModeOneshot, waitingMode)
	})

	go func() {
		t.err = g.Wait()
		close(t.done)
	}()

	GetLogger().Info("starting oneshot task", "task", taskName("locker", name))

	return t
}

// Wait blocks until the supervisor terminates.
func (t *OneshotTask) Wait() {
	<-t.done
}

// WaitFor blocks until the supervisor terminates or d elapses, whichever
// is first, and reports whether it finished.
func (t *OneshotTask) WaitFor(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

// IsFinished reports whether the supervisor has terminated.
func (t *OneshotTask) IsFinished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// GetState reports TaskRunning or TaskCompleted.
func (t *OneshotTask) GetState() TaskState {
	if t.IsFinished() {
		return TaskCompleted
	}
	return TaskRunning
}

// Get waits for termination and then either returns nil (payload ran and
// completed, or was legitimately skipped under NoWait) or re-raises the
// payload's failure (or the SingleAttempt acquisition failure).
func (t *OneshotTask) Get() error {
	t.Wait()
	if t.err != nil {
		return fmt.Errorf("oneshot task %q: %w", t.locker.Name(), t.err)
	}
	return nil
}

// GetStatistics returns the task's cumulative Statistics.
func (t *OneshotTask) GetStatistics() *Statistics { return t.locker.GetStatistics() }

// GetLockedDuration returns how long the current lease has been held, and
// true, while locked; otherwise (0, false).
func (t *OneshotTask) GetLockedDuration() (time.Duration, bool) { return t.locker.GetLockedDuration() }
