package glock

import (
	"errors"
	"testing"
	"time"
)

func TestSettingsValidate(t *testing.T) {
	good := Settings{
		AcquireInterval:        10 * time.Millisecond,
		AcquireBackoff:         10 * time.Millisecond,
		ProlongInterval:        10 * time.Millisecond,
		LockTTL:                100 * time.Millisecond,
		WorkerFuncRestartDelay: 10 * time.Millisecond,
	}
	if err := good.Validate(); err != nil {
		t.Errorf("expected valid settings, got %v", err)
	}

	bad := good
	bad.ProlongInterval = good.LockTTL
	if err := bad.Validate(); !errors.Is(err, ErrBadSettings) {
		t.Errorf("expected ErrBadSettings when prolong_interval == lock_ttl, got %v", err)
	}

	bad.ProlongInterval = good.LockTTL + time.Millisecond
	if err := bad.Validate(); !errors.Is(err, ErrBadSettings) {
		t.Errorf("expected ErrBadSettings when prolong_interval > lock_ttl, got %v", err)
	}
}

func TestLockerModeString(t *testing.T) {
	if ModeOneshot.String() != "oneshot" {
		t.Errorf("expected %q, got %q", "oneshot", ModeOneshot.String())
	}
	if ModeWorker.String() != "worker" {
		t.Errorf("expected %q, got %q", "worker", ModeWorker.String())
	}
}
