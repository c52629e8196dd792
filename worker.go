package glock

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Worker is a long-running façade over a Locker in Worker mode: it
// reacquires the lease and restarts the payload after every ownership
// cycle until Stop is called. Start/Stop are single-use; Stop must be
// called before the Worker is discarded, or the payload may still be
// running.
type Worker struct {
	locker *Locker

	mu      sync.Mutex
	running bool
	started bool
	stopped bool
	cancel  context.CancelFunc
	g       *errgroup.Group
}

// NewWorker constructs a non-started Worker over name/payload/strategy,
// using a freshly generated locker_id.
func NewWorker(name string, payload PayloadFunc, strategy LockStrategy, settings Settings) *Worker {
	return &Worker{
		locker: NewLocker(name, NewLockerID(), strategy, payload, settings, Retry),
	}
}

// Start spawns the supervisor in Worker mode. Calling Start more than
// once is a programmer error (Start is single-use); the second call is a
// no-op other than logging the misuse.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		GetLogger().Error(nil, "Worker.Start called more than once", "name", w.locker.Name())
		return
	}
	w.started = true

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	w.g = g
	w.running = true

	GetLogger().Info("starting worker", "task", taskName("worker", w.locker.Name()))

	g.Go(func() error {
		err := w.locker.Run(gctx, ModeWorker, Wait)
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	})
}

// Stop cancels the supervisor and joins it, guaranteeing the payload is
// not running once Stop returns. Safe to call multiple times; safe to
// call even if Start was never called.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped || !w.started {
		w.stopped = true
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel := w.cancel
	g := w.g
	w.mu.Unlock()

	cancel()
	if g != nil {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			GetLogger().Error(err, "worker supervisor exited with error", "name", w.locker.Name())
		}
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// IsRunning reports whether the supervisor goroutine is currently active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// GetStatistics returns the Worker's cumulative Statistics.
func (w *Worker) GetStatistics() *Statistics { return w.locker.GetStatistics() }

// GetLockedDuration returns how long the current lease has been held, and
// true, while locked; otherwise (0, false).
func (w *Worker) GetLockedDuration() (time.Duration, bool) { return w.locker.GetLockedDuration() }
