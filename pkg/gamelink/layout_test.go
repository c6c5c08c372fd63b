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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutOffsets(t *testing.T) {
	assert.Equal(t, 342, offFrame)
	assert.Equal(t, 5242892, frameSize)
	assert.Equal(t, 42, inputSize)
	assert.Equal(t, 81924, peekSize)
	assert.Equal(t, 5243234, offInput)
	assert.Equal(t, 5243276, offPeek)
	assert.Equal(t, 5325200, offBufToHost)
	assert.Equal(t, 5390738, offBufRecv)
	assert.Equal(t, 5456276, offAudio)
	assert.Equal(t, 5456278, offRAMSize)
	assert.Equal(t, 5456282, offInputOther)
	assert.Equal(t, 5456324, HeaderSize)
}

func TestFlags(t *testing.T) {
	f := FlagWantMouse | FlagPaused
	assert.True(t, f.WantsMouse())
	assert.True(t, f.Paused())
	assert.False(t, f.WantsKeyboard())
	assert.False(t, f.NoFrame())
	assert.Equal(t, Flags(1<<2), FlagNoFrame)
}

func TestPeekSentinels(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFE), PeekSpecialPCHigh)
	assert.Equal(t, uint32(0xFFFFFFFD), PeekSpecialPCLow)
}
