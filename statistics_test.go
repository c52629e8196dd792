package glock

import (
	"testing"
	"time"
)

func TestStatisticsCounters(t *testing.T) {
	var s Statistics

	s.recordSuccess()
	s.recordSuccess()
	s.recordLockedByOther()
	s.recordFailure()
	s.recordWatchdogTrigger()
	s.recordBrainSplit()
	s.recordPayloadFailure()
	s.recordReleaseError()

	if got := s.Successes(); got != 2 {
		t.Errorf("Successes() = %d, want 2", got)
	}
	if got := s.LockedByOtherCount(); got != 1 {
		t.Errorf("LockedByOtherCount() = %d, want 1", got)
	}
	if got := s.Failures(); got != 1 {
		t.Errorf("Failures() = %d, want 1", got)
	}
	if got := s.Attempts(); got != 4 {
		t.Errorf("Attempts() = %d, want 4", got)
	}
	if got := s.WatchdogTriggers(); got != 1 {
		t.Errorf("WatchdogTriggers() = %d, want 1", got)
	}
	if got := s.BrainSplits(); got != 1 {
		t.Errorf("BrainSplits() = %d, want 1", got)
	}
	if got := s.PayloadFailures(); got != 1 {
		t.Errorf("PayloadFailures() = %d, want 1", got)
	}
	if got := s.ReleaseErrors(); got != 1 {
		t.Errorf("ReleaseErrors() = %d, want 1", got)
	}
}

func TestStatisticsLockDurationPercentile(t *testing.T) {
	var s Statistics

	if _, ok := s.LockDurationPercentile(50); ok {
		t.Error("expected no percentile before any cycle recorded")
	}

	for _, ms := range []int{10, 20, 30, 40, 50} {
		s.recordLockDuration(time.Duration(ms) * time.Millisecond)
	}

	p50, ok := s.LockDurationPercentile(50)
	if !ok {
		t.Fatal("expected a percentile after recording durations")
	}
	if p50 < 10 || p50 > 50 {
		t.Errorf("p50 = %v, want within [10,50]", p50)
	}
}

func TestStatisticsLockDurationRingBufferWraps(t *testing.T) {
	var s Statistics

	for i := 0; i < durationHistorySize+10; i++ {
		s.recordLockDuration(time.Duration(i) * time.Millisecond)
	}

	s.mu.Lock()
	n := len(s.durationsMS)
	s.mu.Unlock()

	if n != durationHistorySize {
		t.Errorf("ring buffer grew to %d entries, want bounded at %d", n, durationHistorySize)
	}
}
