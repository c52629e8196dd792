package glock

import (
	"errors"
	"time"
)

// ErrBadSettings is returned when prolong interval is not strictly less
// than the lock TTL, in which case the watchdog could never renew the
// lease in time.
var ErrBadSettings = errors.New("prolong_interval must be less than lock_ttl")

// LockerMode selects whether a Locker runs its payload once or
// indefinitely across ownership cycles.
type LockerMode int

const (
	// ModeOneshot runs the payload at most once, then returns.
	ModeOneshot LockerMode = iota
	// ModeWorker reacquires the lock and restarts the payload indefinitely.
	ModeWorker
)

func (m LockerMode) String() string {
	switch m {
	case ModeOneshot:
		return "oneshot"
	case ModeWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// WaitingMode controls what happens when the lock is currently held by
// another locker.
type WaitingMode int

const (
	// Wait keeps retrying acquisition on the acquire_interval cadence.
	Wait WaitingMode = iota
	// NoWait gives up on the first LockedByOther response.
	NoWait
)

// RetryMode controls what happens on a transient (non-contention)
// acquisition failure.
type RetryMode int

const (
	// Retry keeps retrying acquisition on the acquire_backoff cadence.
	Retry RetryMode = iota
	// SingleAttempt propagates the first transient failure out of Run.
	SingleAttempt
)

// Settings are the tunables governing a Locker's acquisition cadence,
// lease duration, and payload restart delay. Settings are immutable for
// the duration of a single ownership cycle: the supervisor snapshots
// them at each state-machine edge.
type Settings struct {
	// AcquireInterval is the delay between acquisition attempts while
	// unlocked and not contested.
	AcquireInterval time.Duration
	// AcquireBackoff is the delay after a transient (non-contention)
	// acquisition failure.
	AcquireBackoff time.Duration
	// ProlongInterval is the cadence at which the watchdog renews the
	// lease. Must be strictly less than LockTTL.
	ProlongInterval time.Duration
	// LockTTL is the lease duration requested from the backend on every
	// acquire/renew call.
	LockTTL time.Duration
	// WorkerFuncRestartDelay is the pause between payload runs in Worker
	// mode, after one ownership cycle ends and before the next attempt.
	WorkerFuncRestartDelay time.Duration
}

// Validate returns ErrBadSettings if the watchdog could never keep the
// lease fresh under these settings.
func (s Settings) Validate() error {
	if s.ProlongInterval >= s.LockTTL {
		return ErrBadSettings
	}
	return nil
}
