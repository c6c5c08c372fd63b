package shm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, capacity int) (*Buffer, []byte) {
	mem := make([]byte, BufferRecordSize(capacity)+8)
	b, err := NewBuffer(mem, capacity)
	require.NoError(t, err)
	return b, mem
}

func TestBufferWriteRead(t *testing.T) {
	b, mem := newTestBuffer(t, 64)
	assert.False(t, b.Pending())

	require.NoError(t, b.Write(":pause"))
	assert.Equal(t, 7, b.Payload())
	assert.Equal(t, []byte{7, 0}, mem[:2])
	assert.Equal(t, byte(0), mem[2+6])

	msg, ok := b.Read()
	assert.True(t, ok)
	assert.Equal(t, ":pause", msg)
	assert.True(t, b.Pending())
}

func TestBufferLastWriteWins(t *testing.T) {
	b, _ := newTestBuffer(t, 64)
	require.NoError(t, b.Write("a longer first message"))
	require.NoError(t, b.Write("y"))
	msg, ok := b.Take()
	assert.True(t, ok)
	assert.Equal(t, "y", msg)
	assert.False(t, b.Pending())
	_, ok = b.Read()
	assert.False(t, ok)
}

func TestBufferTooLarge(t *testing.T) {
	b, _ := newTestBuffer(t, 8)
	require.NoError(t, b.Write(strings.Repeat("x", 7)))
	err := b.Write(strings.Repeat("x", 8))
	assert.ErrorIs(t, err, ErrTooLarge)
	msg, _ := b.Read()
	assert.Equal(t, strings.Repeat("x", 7), msg)
}

func TestBufferLargeCapacityClampsToPayloadField(t *testing.T) {
	b, _ := newTestBuffer(t, 64<<10)
	assert.Equal(t, 0xffff-1, b.MaxMessage())
}

func TestNewBufferShortRecord(t *testing.T) {
	_, err := NewBuffer(make([]byte, 4), 8)
	assert.ErrorIs(t, err, ErrShortRecord)
	_, err = NewBuffer(make([]byte, 4), 0)
	assert.Error(t, err)
}

func TestBufferReadCorruptPayload(t *testing.T) {
	b, mem := newTestBuffer(t, 4)
	mem[0], mem[1] = 0xff, 0xff
	copy(mem[2:], "abcd")
	msg, ok := b.Read()
	assert.True(t, ok)
	assert.Equal(t, "abcd", msg)
}
