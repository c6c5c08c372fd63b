package shm

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadStoreUint16(t *testing.T) {
	mem := make([]byte, 16)
	for off := 0; off <= 14; off++ {
		for i := range mem {
			mem[i] = 0xAA
		}
		StoreUint16(mem, off, 0x1234)
		assert.Equal(t, uint16(0x1234), LoadUint16(mem, off), "offset %d", off)
		assert.Equal(t, uint16(0x1234), binary.LittleEndian.Uint16(mem[off:]), "offset %d", off)
		// neighbours untouched
		if off > 0 {
			assert.Equal(t, byte(0xAA), mem[off-1])
		}
		if off+2 < len(mem) {
			assert.Equal(t, byte(0xAA), mem[off+2])
		}
	}
}

func TestLoadUint16OutOfRange(t *testing.T) {
	mem := make([]byte, 4)
	assert.Equal(t, uint16(0), LoadUint16(mem, 3))
	assert.Equal(t, uint16(0), LoadUint16(mem, -1))
	StoreUint16(mem, 3, 0xffff)
	assert.Equal(t, []byte{0, 0, 0, 0}, mem)
}
