// Package shm contains platform-specific helpers for attaching to named shared memory
// regions and the named mutex that guards them.
package shm

import (
	"errors"
	"time"
)

// ErrNotExist is returned when the named region or mutex has not been created yet.
var ErrNotExist = errors.New("shm: object does not exist")

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Name string

	// platform-specific fields (fd, handle, etc.)
	fd     int
	handle uintptr
	view   uintptr
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Name string
	// Size of the mapping. Zero maps the whole existing object.
	Size int
	// Create the object when it does not exist. Only producers and tests do this.
	Create bool
}

// LockResult is the outcome of a bounded wait on a named mutex.
type LockResult int

const (
	LockAcquired LockResult = iota
	// LockAbandoned means the previous owner died while holding the mutex.
	// The caller owns the mutex and must Unlock it.
	LockAbandoned
	LockTimeout
	LockFailed
)

func (r LockResult) String() string {
	switch r {
	case LockAcquired:
		return "acquired"
	case LockAbandoned:
		return "abandoned"
	case LockTimeout:
		return "timeout"
	default:
		return "failed"
	}
}

// Owned reports whether the caller holds the mutex after the wait.
func (r LockResult) Owned() bool {
	return r == LockAcquired || r == LockAbandoned
}

func timeoutMillis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > int64(^uint32(0)>>1) {
		ms = int64(^uint32(0) >> 1)
	}
	return uint32(ms)
}

// Function implementations are provided in platform-specific files (platform_linux.go, platform_windows.go).
