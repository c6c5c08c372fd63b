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

// Wire format of the R4 shared link region. The structure is packed to 1 byte, little endian,
// and is immediately followed by the emulated RAM image (RAMSize bytes).
//
// Synchronisation contract, per field group:
//
//	field            owner     access rule
//	version/flags    producer  read any time, race tolerant
//	system/program   producer  read any time, race tolerant (NUL terminated)
//	program_hash     producer  read any time, race tolerant
//	frame.seq        producer  read WITHOUT the mutex, heartbeat only
//	frame.*          producer  read under the mutex; best effort read on timeout
//	input            consumer  write under the mutex (first companion tool)
//	peek.addr*       consumer  write under the mutex
//	peek.data        producer  read race tolerant, bounded by addr_count and PeekLimit
//	buf_tohost       consumer  write under the mutex, single slot, producer clears payload
//	buf_recv         producer  read and clear under the mutex
//	audio            consumer  read and write under the mutex
//	ram_size         producer  read any time
//	input_other      consumer  write under the mutex (this client)
//	RAM image        producer  read only, never beyond ram_size
const (
	ProtocolVersion = 4
	SystemName      = "AppleWin"

	DefaultMappingName = "DWD_GAMELINK_MMAP_R4"
	DefaultMutexName   = "DWD_GAMELINK_MUTEX_R4"
)

const (
	SystemMaxLen  = 64
	ProgramMaxLen = 260
	HashLen       = 16

	MaxFrameWidth   = 1280
	MaxFrameHeight  = 1024
	BytesPerPixel   = 4
	MaxFramePayload = MaxFrameWidth * MaxFrameHeight * BytesPerPixel

	KeyStateSlots = 8
	PeekLimit     = 16 * 1024
	MessageCap    = 64 * 1024
)

// Image formats of frame.image_fmt.
const (
	ImageFormatNone   = 0
	ImageFormatRGBA32 = 1 // 0xAARRGGBB
)

// Input ready sentinels.
const (
	ReadyNo    = 0
	ReadyGC    = 1
	ReadyOther = 17 // direct virtual key + raw parameter payload
)

// Peek pseudo addresses for the emulated CPU program counter.
const (
	PeekSpecialPCHigh = ^uint32(0) - 1
	PeekSpecialPCLow  = ^uint32(0) - 2
)

// frame sub-record
const (
	frameSeq      = 0
	frameWidth    = frameSeq + 2
	frameHeight   = frameWidth + 2
	frameImageFmt = frameHeight + 2
	frameReserved = frameImageFmt + 1
	frameParX     = frameReserved + 1
	frameParY     = frameParX + 2
	frameBuffer   = frameParY + 2
	frameSize     = frameBuffer + MaxFramePayload
)

// input sub-record
const (
	inputMouseDX  = 0
	inputMouseDY  = inputMouseDX + 4
	inputReady    = inputMouseDY + 4
	inputMouseBtn = inputReady + 1
	inputKeyState = inputMouseBtn + 1
	inputSize     = inputKeyState + 4*KeyStateSlots
)

// peek sub-record
const (
	peekAddrCount = 0
	peekAddr      = peekAddrCount + 4
	peekData      = peekAddr + 4*PeekLimit
	peekSize      = peekData + PeekLimit
)

const (
	messageRecordSize = 2 + MessageCap
	audioSize         = 2
)

// top level record
const (
	offVersion     = 0
	offFlags       = offVersion + 1
	offSystem      = offFlags + 1
	offProgram     = offSystem + SystemMaxLen
	offProgramHash = offProgram + ProgramMaxLen
	offFrame       = offProgramHash + HashLen
	offInput       = offFrame + frameSize
	offPeek        = offInput + inputSize
	offBufToHost   = offPeek + peekSize
	offBufRecv     = offBufToHost + messageRecordSize
	offAudio       = offBufRecv + messageRecordSize
	offRAMSize     = offAudio + audioSize
	offInputOther  = offRAMSize + 4

	// HeaderSize is the size of the fixed structure; the RAM image starts here.
	HeaderSize = offInputOther + inputSize
)

// Flags are the producer flag bits.
type Flags uint8

const (
	FlagWantKeyboard Flags = 1 << iota
	FlagWantMouse
	FlagNoFrame
	FlagPaused
)

func (f Flags) WantsKeyboard() bool { return f&FlagWantKeyboard != 0 }
func (f Flags) WantsMouse() bool    { return f&FlagWantMouse != 0 }
func (f Flags) NoFrame() bool       { return f&FlagNoFrame != 0 }
func (f Flags) Paused() bool        { return f&FlagPaused != 0 }

// InputChannel selects one of the two consumer input records.
type InputChannel int

const (
	// InputPrimary is the channel used by the first companion tool (map trackers).
	InputPrimary InputChannel = iota
	// InputOther is the second channel, so two tools do not clobber each other's keys.
	InputOther
)

func (c InputChannel) offset() int {
	if c == InputPrimary {
		return offInput
	}
	return offInputOther
}
