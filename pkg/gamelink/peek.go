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
)

// RequestPeek replaces the peek table with addrs. The producer answers in peek.data at the
// same indexes. The count is written last so the producer never sees a half filled table.
func (c *Client) RequestPeek(addrs ...uint32) error {
	if len(addrs) > PeekLimit {
		return fmt.Errorf("%w: %d > %d", ErrTooManyPeeks, len(addrs), PeekLimit)
	}
	err := c.withLock("peek", c.config.IOLockTimeout, func() {
		p := c.mem[offPeek : offPeek+peekSize]
		for i, a := range addrs {
			binary.LittleEndian.PutUint32(p[peekAddr+4*i:], a)
		}
		binary.LittleEndian.PutUint32(p[peekAddrCount:], uint32(len(addrs)))
	})
	if err != nil {
		c.metrics.DroppedWrites.WithLabelValues("peek").Inc()
	}
	return err
}

// PeekCount returns the number of addresses in the peek table, bounded by PeekLimit.
func (c *Client) PeekCount() uint32 {
	if !c.IsActive() {
		return 0
	}
	n := binary.LittleEndian.Uint32(c.mem[offPeek+peekAddrCount:])
	if n > PeekLimit {
		n = PeekLimit
	}
	return n
}

// PeekAt returns the byte the producer stored for peek entry i, or 0 when i is outside
// the current table. The value is only as fresh as the producer's last update.
func (c *Client) PeekAt(i uint32) byte {
	if i >= c.PeekCount() {
		return 0
	}
	return c.mem[offPeek+peekData+int(i)]
}

func (c *Client) peekAddrAt(i uint32) uint32 {
	if i >= c.PeekCount() {
		return 0
	}
	return binary.LittleEndian.Uint32(c.mem[offPeek+peekAddr+4*int(i):])
}

// ProgramCounter returns the emulated CPU program counter when the peek table starts with
// the program counter sentinels, as Connect requests by default.
func (c *Client) ProgramCounter() (uint16, bool) {
	if c.PeekCount() < 2 || c.peekAddrAt(0) != PeekSpecialPCHigh || c.peekAddrAt(1) != PeekSpecialPCLow {
		return 0, false
	}
	return uint16(c.PeekAt(0))<<8 | uint16(c.PeekAt(1)), true
}
