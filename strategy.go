package glock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrEmptyLockerID is returned by LockStrategy implementations (and the
// NewLockStrategy adapter) when called with an empty locker_id, a
// programmer error.
var ErrEmptyLockerID = errors.New("locker id must not be empty")

// LockedByOther wraps an authoritative backend contention response: some
// other locker_id currently holds the lease. It is always detectable via
// errors.Is(err, ErrLockIsHeld).
type LockedByOther struct {
	LockID string
}

func (e *LockedByOther) Error() string {
	return fmt.Sprintf("lock %q is held by another locker", e.LockID)
}

func (e *LockedByOther) Unwrap() error {
	return ErrLockIsHeld
}

// Transient wraps any non-authoritative acquisition failure:
// network errors, backend unavailability, and the like. The caller must
// not treat it as contention.
type Transient struct {
	LockID string
	Err    error
}

func (e *Transient) Error() string {
	return fmt.Sprintf("transient error acquiring lock %q: %v", e.LockID, e.Err)
}

func (e *Transient) Unwrap() error {
	return e.Err
}

// IsLockedByOther reports whether err is (or wraps) a LockedByOther.
func IsLockedByOther(err error) bool {
	var lbo *LockedByOther
	return errors.As(err, &lbo) || errors.Is(err, ErrLockIsHeld)
}

// LockStrategy is the external capability a Locker drives: acquire-or-renew
// a named lease on behalf of a locker_id, and best-effort release it.
// Implementations MUST be idempotent for the same locker_id — calling
// Acquire while already the holder is the renewal path — and MUST reject
// an empty locker_id.
type LockStrategy interface {
	// Acquire requests or renews the lease for lockerID with duration ttl.
	// Returns nil on success, *LockedByOther on authoritative contention,
	// or *Transient for anything else.
	Acquire(ctx context.Context, ttl time.Duration, lockerID string) error
	// Release is a best-effort release. It must not fail in a way the
	// caller cannot ignore: errors are logged, never propagated.
	Release(ctx context.Context, lockerID string) error
}

// lockAdapter turns any backend-specific Lock (the glock.Lock capability
// already implemented by redislock, etcdlock, consullock, dynamolock,
// hazelcastlock, mongolock, postgreslock, and zookeeperlock) into a
// LockStrategy. It binds to a single resource name — the thing every
// contending locker_id actually races over on the backend — and tracks
// locally whether this adapter instance currently believes itself the
// holder, routing a renewal-shaped Acquire call to the backend's Renew.
//
// The backends in this module distinguish only held/not-held on lockName;
// they carry no holder identity of their own. So a LockedByOther verdict
// here means "some Acquire/Renew on this lockName succeeded that wasn't
// ours" — sound for mutual exclusion, but it cannot name the other holder.
type lockAdapter struct {
	lock     Lock
	lockName string

	mu       sync.Mutex
	isHolder bool
}

// NewLockStrategy adapts a Lock backend into a LockStrategy that contends
// over lockName. Every Locker, Worker, or OneshotTask racing for the same
// resource must be given a strategy built from the same lockName (and,
// ordinarily, the same backend client).
func NewLockStrategy(lock Lock, lockName string) LockStrategy {
	return &lockAdapter{
		lock:     lock,
		lockName: lockName,
	}
}

func (a *lockAdapter) Acquire(ctx context.Context, ttl time.Duration, lockerID string) error {
	if lockerID == "" {
		return ErrEmptyLockerID
	}

	ttlSeconds := ttlToSeconds(ttl)

	a.mu.Lock()
	alreadyHeld := a.isHolder
	a.mu.Unlock()

	var err error
	if alreadyHeld {
		err = a.lock.Renew(ctx, a.lockName, ttlSeconds)
		if errors.Is(err, ErrLockIsNotHeld) {
			// Lost the lease between our last renewal and now; fall back
			// to a fresh acquire attempt.
			err = a.lock.Acquire(ctx, a.lockName, ttlSeconds)
		}
	} else {
		err = a.lock.Acquire(ctx, a.lockName, ttlSeconds)
	}

	if err == nil {
		a.mu.Lock()
		a.isHolder = true
		a.mu.Unlock()
		return nil
	}

	a.mu.Lock()
	a.isHolder = false
	a.mu.Unlock()

	if errors.Is(err, ErrLockIsHeld) {
		return &LockedByOther{LockID: lockerID}
	}

	return &Transient{LockID: lockerID, Err: err}
}

func (a *lockAdapter) Release(ctx context.Context, lockerID string) error {
	if lockerID == "" {
		return ErrEmptyLockerID
	}

	a.mu.Lock()
	held := a.isHolder
	a.isHolder = false
	a.mu.Unlock()

	if !held {
		return nil
	}

	err := a.lock.Release(ctx, a.lockName)
	if err != nil && !errors.Is(err, ErrLockIsNotHeld) {
		return err
	}
	return nil
}

func ttlToSeconds(ttl time.Duration) int64 {
	secs := int64(ttl / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return secs
}
