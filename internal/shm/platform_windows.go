//go:build windows

package shm

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	fileMapAllAccess = 0xF001F

	waitObject0   = 0x00000000
	waitAbandoned = 0x00000080
	waitTimeout   = 0x00000102
	waitFailed    = 0xFFFFFFFF
)

var (
	modkernel32          = windows.NewLazySystemDLL("kernel32.dll")
	procOpenFileMappingW = modkernel32.NewProc("OpenFileMappingW")
	procOpenMutexW       = modkernel32.NewProc("OpenMutexW")
)

func isNotFound(err error) bool {
	return errors.Is(err, windows.ERROR_FILE_NOT_FOUND) || errors.Is(err, windows.ERROR_PATH_NOT_FOUND)
}

// MapRegion maps or creates a shared memory region (Windows implementation).
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := windows.UTF16PtrFromString(opts.Name)
	if err != nil {
		return nil, fmt.Errorf("mapping name: %w", err)
	}

	var h windows.Handle
	if opts.Create {
		size := uint64(opts.Size)
		h, err = windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE,
			uint32(size>>32), uint32(size), name)
		if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			return nil, fmt.Errorf("CreateFileMapping: %w", err)
		}
	} else {
		r, _, e := procOpenFileMappingW.Call(fileMapAllAccess, 0, uintptr(unsafe.Pointer(name)))
		if r == 0 {
			if isNotFound(e) {
				return nil, fmt.Errorf("OpenFileMapping %s: %w", opts.Name, ErrNotExist)
			}
			return nil, fmt.Errorf("OpenFileMapping: %w", e)
		}
		h = windows.Handle(r)
	}

	view, err := windows.MapViewOfFile(h, fileMapAllAccess, 0, 0, uintptr(opts.Size))
	if err != nil {
		_ = windows.CloseHandle(h)
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}
	size := opts.Size
	if size == 0 {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQuery(view, &mbi, unsafe.Sizeof(mbi)); err != nil {
			_ = windows.UnmapViewOfFile(view)
			_ = windows.CloseHandle(h)
			return nil, fmt.Errorf("VirtualQuery: %w", err)
		}
		size = int(mbi.RegionSize)
	}
	return &MappedRegion{
		Addr:   unsafe.Slice((*byte)(unsafe.Pointer(view)), size),
		Name:   opts.Name,
		handle: uintptr(h),
		view:   view,
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region (Windows implementation).
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	var errs []error
	if err := windows.UnmapViewOfFile(region.view); err != nil {
		errs = append(errs, fmt.Errorf("UnmapViewOfFile: %w", err))
	}
	if err := windows.CloseHandle(windows.Handle(region.handle)); err != nil {
		errs = append(errs, fmt.Errorf("CloseHandle: %w", err))
	}
	region.Addr = nil
	region.view = 0
	region.handle = 0
	return errors.Join(errs...)
}

// RemoveRegion is a no-op: the kernel destroys a mapping with its last handle.
func RemoveRegion(name string) error {
	return nil
}

// Mutex is a named kernel mutex. Ownership is per OS thread, so callers must keep
// Lock and Unlock on the same thread (runtime.LockOSThread).
type Mutex struct {
	name   string
	handle windows.Handle
}

// OpenMutex opens an existing named mutex.
func OpenMutex(name string) (*Mutex, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	r, _, e := procOpenMutexW.Call(windows.SYNCHRONIZE, 0, uintptr(unsafe.Pointer(p)))
	if r == 0 {
		if isNotFound(e) {
			return nil, fmt.Errorf("OpenMutex %s: %w", name, ErrNotExist)
		}
		return nil, fmt.Errorf("OpenMutex %s: %w", name, e)
	}
	return &Mutex{name: name, handle: windows.Handle(r)}, nil
}

// CreateMutex creates the named mutex if needed. Producers and tests use it.
func CreateMutex(name string) (*Mutex, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateMutex(nil, false, p)
	if err != nil && !errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		return nil, fmt.Errorf("CreateMutex %s: %w", name, err)
	}
	return &Mutex{name: name, handle: h}, nil
}

// Lock waits up to timeout for the mutex.
func (m *Mutex) Lock(timeout time.Duration) (LockResult, error) {
	if m == nil || m.handle == 0 {
		return LockFailed, errors.New("mutex closed")
	}
	ev, err := windows.WaitForSingleObject(m.handle, timeoutMillis(timeout))
	switch ev {
	case waitObject0:
		return LockAcquired, nil
	case waitAbandoned:
		return LockAbandoned, nil
	case waitTimeout:
		return LockTimeout, nil
	default:
		if err == nil {
			err = fmt.Errorf("WaitForSingleObject returned %#x", ev)
		}
		return LockFailed, err
	}
}

// Unlock releases the mutex.
func (m *Mutex) Unlock() error {
	if m == nil || m.handle == 0 {
		return errors.New("mutex closed")
	}
	return windows.ReleaseMutex(m.handle)
}

// Close releases the handle.
func (m *Mutex) Close() error {
	if m == nil || m.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(m.handle)
	m.handle = 0
	return err
}

// RemoveMutex is a no-op on Windows.
func RemoveMutex(name string) error {
	return nil
}
