package glock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/montanaflynn/stats"
)

// durationHistorySize bounds the rolling window of lock-held durations
// kept for percentile computation, so Statistics memory stays flat
// regardless of how many ownership cycles a long-lived Worker runs.
const durationHistorySize = 256

// Statistics holds cumulative counters and a rolling histogram of
// lock-held durations for a single Locker. Written from the Locker's
// supervisor and watchdog goroutines; safe to read concurrently.
type Statistics struct {
	successes        atomic.Int64
	lockedByOther    atomic.Int64
	failures         atomic.Int64
	watchdogTriggers atomic.Int64
	brainSplits      atomic.Int64
	payloadFailures  atomic.Int64
	releaseErrors    atomic.Int64

	mu          sync.Mutex
	durationsMS []float64
	nextSlot    int
}

// Attempts returns the total number of acquisition attempts recorded
// (successes + lockedByOther + failures).
func (s *Statistics) Attempts() int64 {
	return s.successes.Load() + s.lockedByOther.Load() + s.failures.Load()
}

// Successes returns the count of acquire attempts that obtained the lease.
func (s *Statistics) Successes() int64 { return s.successes.Load() }

// LockedByOtherCount returns the count of acquire attempts that found the
// lease held by a different locker_id.
func (s *Statistics) LockedByOtherCount() int64 { return s.lockedByOther.Load() }

// Failures returns the count of transient (non-contention) acquire
// failures.
func (s *Statistics) Failures() int64 { return s.failures.Load() }

// WatchdogTriggers returns the count of times the watchdog exited a
// LOCKED cycle (either lost-to-other or lease-expired).
func (s *Statistics) WatchdogTriggers() int64 { return s.watchdogTriggers.Load() }

// BrainSplits returns the count of local lease-expiration detections:
// the watchdog observed the lease age exceed the TTL before the backend
// told it so.
func (s *Statistics) BrainSplits() int64 { return s.brainSplits.Load() }

// PayloadFailures returns the count of payload closures that returned an
// error (Worker mode only; Oneshot propagates instead of counting).
func (s *Statistics) PayloadFailures() int64 { return s.payloadFailures.Load() }

// ReleaseErrors returns the count of Release calls that returned an error
// (swallowed by the state machine, recorded here).
func (s *Statistics) ReleaseErrors() int64 { return s.releaseErrors.Load() }

func (s *Statistics) recordSuccess()         { s.successes.Add(1) }
func (s *Statistics) recordLockedByOther()   { s.lockedByOther.Add(1) }
func (s *Statistics) recordFailure()         { s.failures.Add(1) }
func (s *Statistics) recordWatchdogTrigger() { s.watchdogTriggers.Add(1) }
func (s *Statistics) recordBrainSplit()      { s.brainSplits.Add(1) }
func (s *Statistics) recordPayloadFailure()  { s.payloadFailures.Add(1) }
func (s *Statistics) recordReleaseError()    { s.releaseErrors.Add(1) }

// recordLockDuration folds one completed ownership cycle's held-duration
// into the rolling histogram.
func (s *Statistics) recordLockDuration(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := float64(d.Milliseconds())
	if len(s.durationsMS) < durationHistorySize {
		s.durationsMS = append(s.durationsMS, ms)
		return
	}
	s.durationsMS[s.nextSlot] = ms
	s.nextSlot = (s.nextSlot + 1) % durationHistorySize
}

// LockDurationPercentile returns the requested percentile (0-100) of the
// rolling lock-held-duration window, in milliseconds. Returns (0, false)
// if no ownership cycle has completed yet.
func (s *Statistics) LockDurationPercentile(p float64) (float64, bool) {
	s.mu.Lock()
	sample := append([]float64(nil), s.durationsMS...)
	s.mu.Unlock()

	if len(sample) == 0 {
		return 0, false
	}

	v, err := stats.Percentile(sample, p)
	if err != nil {
		return 0, false
	}
	return v, true
}
