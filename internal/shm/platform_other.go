//go:build !linux && !windows

package shm

import (
	"context"
	"errors"
	"time"
)

var errUnsupported = errors.New("shm: platform not supported")

// MapRegion is not available on this platform.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	return nil, errUnsupported
}

// UnmapRegion is not available on this platform.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	return nil
}

// RemoveRegion is not available on this platform.
func RemoveRegion(name string) error {
	return nil
}

// Mutex is not available on this platform.
type Mutex struct{}

// OpenMutex is not available on this platform.
func OpenMutex(name string) (*Mutex, error) {
	return nil, errUnsupported
}

// CreateMutex is not available on this platform.
func CreateMutex(name string) (*Mutex, error) {
	return nil, errUnsupported
}

func (m *Mutex) Lock(timeout time.Duration) (LockResult, error) {
	return LockFailed, errUnsupported
}

func (m *Mutex) Unlock() error {
	return errUnsupported
}

func (m *Mutex) Close() error {
	return nil
}

// RemoveMutex is not available on this platform.
func RemoveMutex(name string) error {
	return nil
}
