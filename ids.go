package glock

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// NewLockerID returns a stable, process-lifetime-unique locker_id,
// suitable for passing to NewLocker/Worker/OneshotTask: hostname plus a
// random suffix. Falls back to "unknown-host" if the hostname cannot be
// determined.
func NewLockerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString())
}

// taskName formats the task names used in logs and diagnostics:
// "locker:<name>", "watchdog:<name>", "worker:<name>".
func taskName(kind, lockName string) string {
	return fmt.Sprintf("%s:%s", kind, lockName)
}
