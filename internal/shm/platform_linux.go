//go:build linux

package shm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"
)

const devShm = "/dev/shm"

func shmPath(name string) string {
	return filepath.Join(devShm, name)
}

// MapRegion maps or creates a shared memory region (Linux implementation).
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	flags := unix.O_RDWR | unix.O_CLOEXEC
	if opts.Create {
		flags |= unix.O_CREAT
	}
	fd, err := unix.Open(shmPath(opts.Name), flags, 0600)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("open %s: %w", opts.Name, ErrNotExist)
		}
		return nil, fmt.Errorf("open: %w", err)
	}
	size := opts.Size
	if opts.Create {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("ftruncate: %w", err)
		}
	}
	if size == 0 {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("fstat: %w", err)
		}
		size = int(st.Size)
	}
	if size <= 0 {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("open %s: empty object: %w", opts.Name, ErrNotExist)
	}
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &MappedRegion{
		Addr: addr,
		Name: opts.Name,
		fd:   fd,
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region (Linux implementation).
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	var errs []error
	if err := unix.Munmap(region.Addr); err != nil {
		errs = append(errs, fmt.Errorf("munmap: %w", err))
	}
	if err := unix.Close(region.fd); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	region.Addr = nil
	region.fd = -1
	return errors.Join(errs...)
}

// RemoveRegion unlinks the backing object of a region. Existing mappings stay valid.
func RemoveRegion(name string) error {
	if err := os.Remove(shmPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Mutex is a named cross-process mutex. On Linux it is an flock on a file in /dev/shm;
// the kernel drops the lock when the owning process dies, so a wait never ends abandoned.
type Mutex struct {
	name string
	fd   int
}

// OpenMutex opens an existing named mutex.
func OpenMutex(name string) (*Mutex, error) {
	return openMutex(name, unix.O_RDWR|unix.O_CLOEXEC)
}

// CreateMutex creates the named mutex if needed. Producers and tests use it.
func CreateMutex(name string) (*Mutex, error) {
	return openMutex(name, unix.O_RDWR|unix.O_CLOEXEC|unix.O_CREAT)
}

func openMutex(name string, flags int) (*Mutex, error) {
	fd, err := unix.Open(shmPath(name), flags, 0600)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("open mutex %s: %w", name, ErrNotExist)
		}
		return nil, fmt.Errorf("open mutex %s: %w", name, err)
	}
	return &Mutex{name: name, fd: fd}, nil
}

// Lock waits up to timeout for the mutex.
func (m *Mutex) Lock(timeout time.Duration) (LockResult, error) {
	if m == nil || m.fd < 0 {
		return LockFailed, errors.New("mutex closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	op := func() error {
		err := unix.Flock(m.fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return err
		}
		return backoff.Permanent(err)
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(time.Millisecond), ctx)
	err := backoff.Retry(op, b)
	switch {
	case err == nil:
		return LockAcquired, nil
	case errors.Is(err, unix.EWOULDBLOCK), errors.Is(err, context.DeadlineExceeded):
		return LockTimeout, nil
	default:
		return LockFailed, err
	}
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() error {
	if m == nil || m.fd < 0 {
		return errors.New("mutex closed")
	}
	return unix.Flock(m.fd, unix.LOCK_UN)
}

// Close releases the handle. A held lock is dropped with it.
func (m *Mutex) Close() error {
	if m == nil || m.fd < 0 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}

// RemoveMutex unlinks the backing file of a named mutex.
func RemoveMutex(name string) error {
	return RemoveRegion(name)
}
