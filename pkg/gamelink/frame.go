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

// FrameBufferInfo is a snapshot of the frame header plus a view of its pixels.
//
// Buffer aliases shared memory: the producer keeps writing into it, so copy the pixels
// before the next tick if a stable image is needed.
type FrameBufferInfo struct {
	Sequence     uint16
	Width        int
	Height       int
	ImageFormat  uint8
	ParX         int
	ParY         int
	Buffer       []byte
	BufferLength int
	WantsMouse   bool
	// Locked reports whether the snapshot was taken while holding the mutex.
	Locked bool
}

// HasFrame reports whether the snapshot carries pixel data.
func (f FrameBufferInfo) HasFrame() bool {
	return f.ImageFormat != ImageFormatNone && f.BufferLength > 0
}

// AspectRatio returns the pixel aspect ratio, 1 when the producer left it unset.
func (f FrameBufferInfo) AspectRatio() float64 {
	if f.ParX <= 0 || f.ParY <= 0 {
		return 1
	}
	return float64(f.ParX) / float64(f.ParY)
}

// frameBufferLength is width*height*4 when a frame is declared and fits, else 0.
func frameBufferLength(format uint8, width, height int) int {
	if format == ImageFormatNone {
		return 0
	}
	if width < 0 || height < 0 || width > MaxFrameWidth || height > MaxFrameHeight {
		return 0
	}
	return width * height * BytesPerPixel
}
