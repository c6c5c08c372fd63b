package shm

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// LoadUint16 loads a little-endian uint16 at off without taking the mutex.
// When the value sits inside an aligned 32-bit word the load is a single atomic
// read, so a concurrent writer can never produce a torn value.
func LoadUint16(mem []byte, off int) uint16 {
	if off < 0 || off+2 > len(mem) {
		return 0
	}
	word := off &^ 3
	shift := off & 3
	if shift <= 2 && word+4 <= len(mem) {
		p := unsafe.Pointer(&mem[word])
		if uintptr(p)&3 == 0 {
			v := atomic.LoadUint32((*uint32)(p))
			if !hostLittleEndian {
				v = swap32(v)
			}
			return uint16(v >> (uint(shift) * 8))
		}
	}
	return binary.LittleEndian.Uint16(mem[off:])
}

// StoreUint16 is the writer-side counterpart of LoadUint16.
func StoreUint16(mem []byte, off int, val uint16) {
	if off < 0 || off+2 > len(mem) {
		return
	}
	word := off &^ 3
	shift := off & 3
	if shift <= 2 && word+4 <= len(mem) {
		p := unsafe.Pointer(&mem[word])
		if uintptr(p)&3 == 0 {
			addr := (*uint32)(p)
			mask := uint32(0xffff) << (uint(shift) * 8)
			for {
				old := atomic.LoadUint32(addr)
				le := old
				if !hostLittleEndian {
					le = swap32(old)
				}
				le = le&^mask | uint32(val)<<(uint(shift)*8)
				if !hostLittleEndian {
					le = swap32(le)
				}
				if atomic.CompareAndSwapUint32(addr, old, le) {
					return
				}
			}
		}
	}
	binary.LittleEndian.PutUint16(mem[off:], val)
}

var hostLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

func swap32(v uint32) uint32 {
	return v>>24 | (v>>8)&0xff00 | (v<<8)&0xff0000 | v<<24
}
