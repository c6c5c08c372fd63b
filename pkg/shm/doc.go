// Package shm provides fixed-capacity buffers laid over shared memory.
//
// A Buffer is a view on a `payload u16 | data[cap]` record embedded in a region owned by
// another process. It never resizes and never allocates inside the region; the capacity is
// part of the wire format both sides were compiled against.
//
// Example usage:
//
//	box, err := shm.NewBuffer(region[off:off+shm.BufferRecordSize(64<<10)], 64<<10)
//	// ...
//	_ = box.Write("pause")
//	msg, ok := box.Read()
//
// Platform-specific mapping helpers are in internal/shm.
package shm
