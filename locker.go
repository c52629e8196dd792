package glock

import (
	"context"
	"sync"
	"time"
)

// PayloadFunc is the user-supplied closure a Locker runs while it holds
// the lease. It must honor ctx cancellation at its own suspension points;
// a payload that never checks ctx is permitted to run to natural
// completion even after the Locker has asked it to stop.
type PayloadFunc func(ctx context.Context) error

// lockedCycleOutcome distinguishes why a LOCKED ownership cycle ended, so
// runLocked's caller can decide whether to loop back to UNLOCKED or stop.
type lockedCycleOutcome int

const (
	outcomePayloadFinished lockedCycleOutcome = iota
	outcomeWatchdogFired
	outcomeExternalCancel
)

// Locker is the acquisition supervisor: it drives a LockStrategy through
// UNLOCKED/LOCKED/RELEASING cycles, supervising a watchdog and a payload
// task while locked. A Locker is driven by exactly one façade (Worker or
// OneshotTask) at a time.
type Locker struct {
	name     string
	id       string
	strategy LockStrategy
	payload  PayloadFunc

	retryMode RetryMode

	settingsMu sync.RWMutex
	settings   Settings

	state lockerState
	stats Statistics
}

// NewLocker constructs a Locker. settings should satisfy Settings.Validate;
// an invalid prolong_interval/lock_ttl pair is logged rather than rejected
// once Run starts, since the watchdog's own brain-split guard is what
// must surface it.
func NewLocker(name, id string, strategy LockStrategy, payload PayloadFunc, settings Settings, retryMode RetryMode) *Locker {
	l := &Locker{
		name:      name,
		id:        id,
		strategy:  strategy,
		payload:   payload,
		retryMode: retryMode,
	}
	l.settings = settings
	return l
}

// Name returns the human-readable lock name.
func (l *Locker) Name() string { return l.name }

// ID returns this locker instance's stable locker_id.
func (l *Locker) ID() string { return l.id }

// GetSettings returns a snapshot of the current settings.
func (l *Locker) GetSettings() Settings {
	l.settingsMu.RLock()
	defer l.settingsMu.RUnlock()
	return l.settings
}

// SetSettings replaces the settings used from the next state-machine edge
// onward; a Locker already mid-cycle finishes that cycle under the old
// snapshot.
func (l *Locker) SetSettings(s Settings) {
	l.settingsMu.Lock()
	defer l.settingsMu.Unlock()
	l.settings = s
}

func (l *Locker) snapshotSettings() Settings {
	l.settingsMu.RLock()
	defer l.settingsMu.RUnlock()
	return l.settings
}

// GetStatistics returns this Locker's Statistics. Counters are safe to
// read concurrently with the supervisor goroutine.
func (l *Locker) GetStatistics() *Statistics { return &l.stats }

// GetLockedDuration returns how long the current lease has been held, and
// true, while locked; otherwise (0, false).
func (l *Locker) GetLockedDuration() (time.Duration, bool) { return l.state.LockedDuration() }

// IsLocked reports whether the lease is currently believed held.
func (l *Locker) IsLocked() bool { return l.state.IsLocked() }

// Run drives the acquisition loop until the Locker terminates: in Oneshot
// mode, after the payload has run (or acquisition has been abandoned per
// waitingMode/retryMode); in Worker mode, only when ctx is cancelled.
// Cancelling ctx tears the whole construct down: any held lease is
// released before Run returns.
func (l *Locker) Run(ctx context.Context, mode LockerMode, waitingMode WaitingMode) error {
	if l.id == "" {
		return ErrEmptyLockerID
	}

	for {
		settings := l.snapshotSettings()
		if err := settings.Validate(); err != nil {
			// Not fatal: a prolong_interval >= lock_ttl misconfiguration
			// must still let the payload start, so the watchdog's own
			// local-TTL guard is what surfaces it, rather than rejecting
			// the cycle before it begins.
			GetLogger().Error(err, "settings invalid, proceeding anyway; watchdog will brain-split", "name", l.name)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		attemptErr := l.strategy.Acquire(ctx, settings.LockTTL, l.id)
		switch {
		case attemptErr == nil:
			l.stats.recordSuccess()
			l.state.setLocked(time.Now())
			GetLogger().Info("lock acquired", "lockID", l.id, "name", l.name)

			cycleErr, done := l.runLocked(ctx, mode, settings)
			if done {
				return cycleErr
			}
			continue

		case IsLockedByOther(attemptErr):
			l.stats.recordLockedByOther()
			if waitingMode == NoWait {
				GetLogger().Info("lock held by another locker, not waiting", "lockID", l.id)
				return nil
			}
			if err := sleepInterruptible(ctx, settings.AcquireInterval); err != nil {
				return err
			}
			continue

		default:
			l.stats.recordFailure()
			GetLogger().Error(attemptErr, "failed to acquire lock", "lockID", l.id)
			if l.retryMode == SingleAttempt {
				return attemptErr
			}
			if err := sleepInterruptible(ctx, settings.AcquireBackoff); err != nil {
				return err
			}
			continue
		}
	}
}

// runLocked supervises one LOCKED ownership cycle: it spawns the watchdog
// and the payload, waits for the first of {payload done, watchdog exit,
// external cancel}, tears the loser down, and releases the lease under a
// shield so cancellation of ctx never leaks it. It reports whether the
// caller should stop looping (done) and, if so, the error Run should
// return.
func (l *Locker) runLocked(ctx context.Context, mode LockerMode, settings Settings) (err error, done bool) {
	watchdogCtx, cancelWatchdog := context.WithCancel(ctx)
	payloadCtx, cancelPayload := context.WithCancel(ctx)
	defer cancelWatchdog()
	defer cancelPayload()

	watchdogDone := make(chan watchdogExitReason, 1)
	payloadDone := make(chan error, 1)

	go func() {
		watchdogDone <- l.runWatchdog(watchdogCtx, settings)
	}()

	go func() {
		GetLogger().Info("payload starting", "lockID", l.id, "name", l.name)
		payloadDone <- l.payload(payloadCtx)
	}()

	var (
		outcome    lockedCycleOutcome
		payloadErr error
	)

	select {
	case payloadErr = <-payloadDone:
		outcome = outcomePayloadFinished
		cancelWatchdog()
		<-watchdogDone
	case <-watchdogDone:
		outcome = outcomeWatchdogFired
		cancelPayload()
		payloadErr = <-payloadDone
	case <-ctx.Done():
		outcome = outcomeExternalCancel
		cancelWatchdog()
		cancelPayload()
		<-watchdogDone
		payloadErr = <-payloadDone
	}

	heldFor, _ := l.state.LockedDuration()
	l.release()
	l.state.setUnlocked()
	l.stats.recordLockDuration(heldFor)

	switch outcome {
	case outcomeExternalCancel:
		GetLogger().Info("locker cancelled externally", "lockID", l.id)
		return ctx.Err(), true

	case outcomeWatchdogFired:
		if mode == ModeOneshot {
			return nil, true
		}
		return nil, false

	default: // outcomePayloadFinished
		if payloadErr != nil {
			GetLogger().Error(payloadErr, "payload failed", "lockID", l.id)
			if mode == ModeOneshot {
				return payloadErr, true
			}
			l.stats.recordPayloadFailure()
			if err := sleepInterruptible(ctx, settings.WorkerFuncRestartDelay); err != nil {
				return err, true
			}
			return nil, false
		}

		GetLogger().Info("payload completed", "lockID", l.id)
		if mode == ModeOneshot {
			return nil, true
		}
		if err := sleepInterruptible(ctx, settings.WorkerFuncRestartDelay); err != nil {
			return err, true
		}
		return nil, false
	}
}

// release performs the best-effort Release call under a shield: it is
// given a context detached from the caller's, so cancelling the Locker
// never prevents the release attempt from being made. Failures are
// logged and counted, never propagated.
func (l *Locker) release() {
	shieldCtx, cancel := context.WithTimeout(context.Background(), releaseShieldTimeout)
	defer cancel()

	if err := l.strategy.Release(shieldCtx, l.id); err != nil {
		l.stats.recordReleaseError()
		GetLogger().Error(err, "failed to release lock", "lockID", l.id)
	}
}

// releaseShieldTimeout bounds how long the shielded Release call may run;
// it is intentionally generous since a hung release must never block the
// supervisor forever, but also must not be abandoned at the first sign of
// slowness.
const releaseShieldTimeout = 30 * time.Second

// sleepInterruptible sleeps for d or returns early with ctx.Err() if ctx
// is cancelled first. A non-positive d returns immediately.
func sleepInterruptible(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
