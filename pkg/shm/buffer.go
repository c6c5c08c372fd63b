package shm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/valyala/bytebufferpool"
)

const payloadSize = 2

var (
	// ErrTooLarge is returned when a message plus its terminator exceeds the buffer capacity.
	ErrTooLarge = errors.New("message does not fit in buffer")
	// ErrShortRecord is returned when the backing memory is smaller than the record.
	ErrShortRecord = errors.New("backing memory smaller than buffer record")
)

// BufferRecordSize returns the number of bytes a buffer of the given capacity occupies.
func BufferRecordSize(capacity int) int {
	return payloadSize + capacity
}

// Buffer is a single-slot mailbox: a new message replaces any unread previous one.
//
// Buffer does no locking of its own. Writers must hold whatever lock guards the region.
type Buffer struct {
	mem      []byte
	capacity int
}

// NewBuffer lays a Buffer over mem.
func NewBuffer(mem []byte, capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, errors.New("invalid buffer capacity")
	}
	if len(mem) < BufferRecordSize(capacity) {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrShortRecord, len(mem), BufferRecordSize(capacity))
	}
	return &Buffer{mem: mem[:BufferRecordSize(capacity)], capacity: capacity}, nil
}

// Capacity returns the size of the data area.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// MaxMessage returns the longest message Write accepts.
func (b *Buffer) MaxMessage() int {
	limit := b.capacity
	if limit > 0xffff {
		limit = 0xffff
	}
	return limit - 1
}

// Write stores msg with a NUL terminator and sets the payload to len(msg)+1.
func (b *Buffer) Write(msg string) error {
	if len(msg) > b.MaxMessage() {
		return fmt.Errorf("%w: %d bytes, max %d", ErrTooLarge, len(msg), b.MaxMessage())
	}
	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)
	_, _ = bb.WriteString(msg)
	_ = bb.WriteByte(0)

	// data first, payload last: a reader that sees the new length sees the new bytes
	copy(b.mem[payloadSize:], bb.B)
	binary.LittleEndian.PutUint16(b.mem, uint16(bb.Len()))
	return nil
}

// Payload returns the length field as stored, terminator included.
func (b *Buffer) Payload() int {
	return int(binary.LittleEndian.Uint16(b.mem))
}

// Pending reports whether a message is waiting to be consumed.
func (b *Buffer) Pending() bool {
	return b.Payload() != 0
}

// Read returns the pending message without consuming it.
func (b *Buffer) Read() (string, bool) {
	n := b.Payload()
	if n == 0 {
		return "", false
	}
	if n > b.capacity {
		n = b.capacity
	}
	data := b.mem[payloadSize : payloadSize+n]
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data), true
}

// Take returns the pending message and clears the slot.
func (b *Buffer) Take() (string, bool) {
	msg, ok := b.Read()
	if ok {
		b.Clear()
	}
	return msg, ok
}

// Clear marks the slot as consumed.
func (b *Buffer) Clear() {
	binary.LittleEndian.PutUint16(b.mem, 0)
}
