/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gamelink

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Memory returns the emulated RAM image that follows the header. Its length is ram_size,
// cut down to what the mapping actually holds. The slice aliases shared memory and is only
// valid until Disconnect.
func (c *Client) Memory() []byte {
	if !c.IsActive() {
		return nil
	}
	n := int(binary.LittleEndian.Uint32(c.mem[offRAMSize:]))
	if avail := len(c.mem) - HeaderSize; n > avail {
		n = avail
	}
	if n < 0 {
		n = 0
	}
	return c.mem[HeaderSize : HeaderSize+n : HeaderSize+n]
}

// MemorySize returns the usable size of the RAM image in bytes.
func (c *Client) MemorySize() int {
	return len(c.Memory())
}

// MemoryReader returns a bounds checked reader over the RAM image.
func (c *Client) MemoryReader() *MemoryReader {
	return &MemoryReader{client: c}
}

// ErrInvalidOffset is returned for reads outside the RAM image.
type ErrInvalidOffset struct {
	Offset int64
	Size   int
}

func (e *ErrInvalidOffset) Error() string {
	return fmt.Sprintf("gamelink: memory offset %#x outside image of %d bytes", e.Offset, e.Size)
}

// MemoryReader reads the RAM image. Every call re-reads ram_size, so it stays valid across
// producer program changes but not across Disconnect.
type MemoryReader struct {
	client *Client
}

var _ io.ReaderAt = (*MemoryReader)(nil)

// Size returns the current image size.
func (r *MemoryReader) Size() int {
	return r.client.MemorySize()
}

// ReadAt implements io.ReaderAt.
func (r *MemoryReader) ReadAt(p []byte, off int64) (int, error) {
	if !r.client.IsActive() {
		return 0, ErrNotAttached
	}
	mem := r.client.Memory()
	if off < 0 || off >= int64(len(mem)) {
		return 0, &ErrInvalidOffset{Offset: off, Size: len(mem)}
	}
	n := copy(p, mem[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadByteAt returns a single byte of the image.
func (r *MemoryReader) ReadByteAt(off int64) (byte, error) {
	if !r.client.IsActive() {
		return 0, ErrNotAttached
	}
	mem := r.client.Memory()
	if off < 0 || off >= int64(len(mem)) {
		return 0, &ErrInvalidOffset{Offset: off, Size: len(mem)}
	}
	return mem[off], nil
}
