// Package glocktest provides a controllable LockStrategy test double,
// letting tests flip contention and availability on demand instead of
// standing up a real backend.
package glocktest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/companyinfo/glock"
)

// FakeStrategy is a glock.LockStrategy test double. It tracks a single
// logical holder and an "allowed" switch: an Acquire by anyone other than
// the current holder fails with LockedByOther; otherwise, when not
// allowed, Acquire fails as a transient error, modeling a backend that's
// temporarily unreachable.
type FakeStrategy struct {
	mu       sync.Mutex
	lockedBy string

	allowed  atomic.Bool
	attempts atomic.Int64
}

// NewFakeStrategy returns a FakeStrategy that denies every Acquire until
// Allow(true) is called.
func NewFakeStrategy() *FakeStrategy {
	return &FakeStrategy{}
}

// Allow toggles whether Acquire may succeed. Allow(false) simulates a
// backend outage: every Acquire that is not refused as LockedByOther
// fails transiently.
func (f *FakeStrategy) Allow(allowed bool) {
	f.allowed.Store(allowed)
}

// SetLockedBy forcibly assigns the current holder, simulating another
// process taking the lease out from under the caller.
func (f *FakeStrategy) SetLockedBy(whom string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lockedBy = whom
}

// IsLocked reports whether any holder currently owns the lease.
func (f *FakeStrategy) IsLocked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lockedBy != ""
}

// Attempts returns the number of Acquire calls made so far.
func (f *FakeStrategy) Attempts() int64 {
	return f.attempts.Load()
}

// Acquire implements glock.LockStrategy.
func (f *FakeStrategy) Acquire(_ context.Context, _ time.Duration, lockerID string) error {
	if lockerID == "" {
		return glock.ErrEmptyLockerID
	}
	f.attempts.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.lockedBy != "" && f.lockedBy != lockerID {
		return &glock.LockedByOther{LockID: lockerID}
	}
	if !f.allowed.Load() {
		return &glock.Transient{LockID: lockerID, Err: errNotAllowed}
	}

	f.lockedBy = lockerID
	return nil
}

// Release implements glock.LockStrategy.
func (f *FakeStrategy) Release(_ context.Context, lockerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockedBy == lockerID {
		f.lockedBy = ""
	}
	return nil
}

var errNotAllowed = errors.New("fake strategy: acquisition not allowed")

func (f *FakeStrategy) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("FakeStrategy{lockedBy=%q, allowed=%v, attempts=%d}",
		f.lockedBy, f.allowed.Load(), f.attempts.Load())
}
