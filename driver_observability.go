package glock

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BackendLocker identifies the driver itself as an observability "backend"
// name, distinguishing Locker-level spans/logs from the concrete
// redislock/etcdlock/... backend spans they wrap.
const BackendLocker = "locker"

const (
	// ActionWatchdogTriggered marks a watchdog exit on losing the lease to
	// another holder in traces and logs; a lease-expired exit is marked
	// with ActionBrainSplit instead.
	ActionWatchdogTriggered = "watchdog-triggered"
	// ActionBrainSplit marks a local lease-expiration detection.
	ActionBrainSplit = "brain-split"
	// ActionPayloadStart marks payload start in traces and logs.
	ActionPayloadStart = "payload-start"
	// ActionPayloadDone marks normal payload completion.
	ActionPayloadDone = "payload-done"
	// ActionPayloadFailed marks a payload closure returning an error.
	ActionPayloadFailed = "payload-failed"
)

// recordWatchdogEvent logs and traces a watchdog exit, without touching
// the acquire/release/renew metric counters (those already reflect the
// underlying Acquire calls the watchdog made).
func recordWatchdogEvent(ctx context.Context, span trace.Span, lockerID, reason string) {
	GetLogger().Info("watchdog exiting", "lockID", lockerID, "reason", reason)
	span.AddEvent(fmt.Sprintf("watchdog.%s", reason), trace.WithAttributes(
		attribute.String("lock.id", lockerID),
	))
}

// recordBrainSplitEvent logs a brain-split through the logger's Error
// method (logr has no separate warning level): the watchdog
// observed the local lease age exceed the TTL before (or instead of) the
// backend reporting contention.
func recordBrainSplitEvent(ctx context.Context, span trace.Span, lockerID string) {
	GetLogger().Error(nil, "brain-split: lease expired locally before renewal", "lockID", lockerID)
	span.SetStatus(codes.Error, "brain-split")
	span.AddEvent("dist_lock.brain_split", trace.WithAttributes(
		attribute.String("lock.id", lockerID),
	))
}
