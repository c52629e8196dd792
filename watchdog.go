package glock

import (
	"context"
	"time"
)

// watchdogExitReason distinguishes the two signals §4.2.3 combines.
type watchdogExitReason int

const (
	watchdogLostToOther watchdogExitReason = iota
	watchdogLeaseExpired
	watchdogCancelled
)

// runWatchdog renews the lease on prolong_interval cadence until it is
// cancelled, loses the lease to another locker_id, or locally detects the
// lease has aged past lock_ttl without a proven-fresh renewal (the
// brain-split guard). It never returns an error: the exit reason is
// reported via the return value, and the caller decides what to do.
func (l *Locker) runWatchdog(ctx context.Context, settings Settings) watchdogExitReason {
	ticker := time.NewTicker(settings.ProlongInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return watchdogCancelled
		case <-ticker.C:
		}

		if age := time.Since(l.state.lastRefreshTime()); age >= settings.LockTTL {
			_, span := RecordStart(ctx, BackendLocker, ActionBrainSplit, l.id)
			recordBrainSplitEvent(ctx, span, l.id)
			span.End()
			l.stats.recordBrainSplit()
			l.stats.recordWatchdogTrigger()
			return watchdogLeaseExpired
		}

		err := l.strategy.Acquire(ctx, settings.LockTTL, l.id)
		switch {
		case err == nil:
			l.state.refresh(time.Now())
		case IsLockedByOther(err):
			_, span := RecordStart(ctx, BackendLocker, ActionWatchdogTriggered, l.id)
			recordWatchdogEvent(ctx, span, l.id, "lost-to-other")
			span.End()
			l.stats.recordWatchdogTrigger()
			return watchdogLostToOther
		default:
			// Transient renewal error: tolerated until the local TTL
			// guard above fires. lock_refresh_time is left untouched.
			GetLogger().Info("watchdog renewal failed, will retry", "lockID", l.id, "error", err.Error())
		}
	}
}
