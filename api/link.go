// Package api defines the contracts the consumer layers depend on. The render loop needs
// frames, the sidebar needs emulated memory, the keyboard and menu need control.
package api

import (
	"context"

	"github.com/srediag/gamelink/pkg/gamelink"
)

// FrameSource feeds the render loop.
type FrameSource interface {
	IsActive() bool
	FrameSequence() uint16
	FrameBufferInfo() gamelink.FrameBufferInfo
}

// MemorySource feeds the sidebar. Memory returns nil while unattached.
type MemorySource interface {
	IsActive() bool
	Memory() []byte
	MemorySize() int
	PeekAt(i uint32) byte
	ProgramName() string
}

// Controller forwards user input to the producer. Writes are dropped, and an error
// returned, when the producer holds the link mutex for too long.
type Controller interface {
	SendCommand(cmd string) error
	SendKeystroke(vk, lparam uint32) error
	SetSoundVolume(main, mockingboard int) error
	SoundVolumeMain() int
	SoundVolumeMockingboard() int
	Pause() error
	Reset() error
	Shutdown() error
}

// Link is the whole consumer surface of an attached producer.
type Link interface {
	FrameSource
	MemorySource
	Controller
	Connect(ctx context.Context) error
	Disconnect() error
}

var _ Link = (*gamelink.Client)(nil)
