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
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	internalshm "github.com/srediag/gamelink/internal/shm"
	"github.com/srediag/gamelink/pkg/shm"
)

// Commands understood by the producer.
const (
	CommandVideoNative = ":videonative"
	CommandPause       = ":pause"
	CommandReset       = ":reset"
	CommandShutdown    = ":shutdown"
)

// Client is the consumer side of the shared link. It is either unattached or attached;
// Connect and Disconnect move between the two.
//
// A Client is meant to be polled from a single goroutine (the render loop). Calls from
// several goroutines must be serialised by the caller.
type Client struct {
	config   *Config
	logger   *Logger
	metrics  *Metrics
	tracer   trace.Tracer
	commands metric.Int64Counter

	region *internalshm.MappedRegion
	mutex  *internalshm.Mutex
	mem    []byte
	toHost *shm.Buffer
	recv   *shm.Buffer
}

// NewClient returns an unattached client. A nil config uses DefaultConfig.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	c := &Client{
		config:  config,
		logger:  NewLogger("gamelink", config.LogOutput),
		metrics: newMetrics(config.Registerer),
		tracer:  config.tracer(),
	}
	counter, err := config.meter().Int64Counter("gamelink.commands",
		metric.WithDescription("Commands written to the producer."))
	if err != nil {
		return nil, fmt.Errorf("create command counter: %w", err)
	}
	c.commands = counter
	return c, nil
}

// Metrics returns the prometheus collectors of the client.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Connect attaches to the producer's region and mutex. It is a no-op when already attached.
//
// ErrNotFound means the producer is not running yet and Connect can be retried on a later
// tick. ErrMutexUnavailable and ErrVersionMismatch mean the region is not usable by this
// client; the mapping is released in every failure case.
func (c *Client) Connect(ctx context.Context) (err error) {
	if c.IsActive() {
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "gamelink.Connect")
	defer func() {
		c.metrics.ConnectAttempts.WithLabelValues(connectResult(err)).Inc()
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Name: c.config.MappingName})
	if err != nil {
		if errors.Is(err, internalshm.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, c.config.MappingName)
		}
		return fmt.Errorf("map %s: %w", c.config.MappingName, err)
	}
	if err := c.checkRegion(region.Addr); err != nil {
		c.unmap(ctx, region)
		return err
	}
	mutex, err := internalshm.OpenMutex(c.config.MutexName)
	if err != nil {
		c.unmap(ctx, region)
		c.logger.Warnf("found shared memory %s but couldn't get mutex %s: %v",
			c.config.MappingName, c.config.MutexName, err)
		return fmt.Errorf("%w: %v", ErrMutexUnavailable, err)
	}

	c.region = region
	c.mutex = mutex
	c.mem = region.Addr
	// both records are inside the checked header, NewBuffer cannot fail
	c.toHost, _ = shm.NewBuffer(c.mem[offBufToHost:], MessageCap)
	c.recv, _ = shm.NewBuffer(c.mem[offBufRecv:], MessageCap)
	c.metrics.Attached.Set(1)
	c.logger.Infof("attached to %s (%d bytes, system %q, program %q)",
		c.config.MappingName, len(c.mem), c.SystemName(), c.ProgramName())

	if c.config.RequestProgramCounter {
		if err := c.RequestPeek(PeekSpecialPCHigh, PeekSpecialPCLow); err != nil {
			c.logger.Warnf("request program counter: %v", err)
		}
	}
	if c.config.TakeOverVideo {
		if err := c.SendCommand(CommandVideoNative); err != nil {
			c.logger.Warnf("switch producer to native video: %v", err)
		}
	}
	return nil
}

func (c *Client) checkRegion(mem []byte) error {
	if len(mem) < HeaderSize {
		return fmt.Errorf("%w: %d < %d", ErrRegionTooSmall, len(mem), HeaderSize)
	}
	if v := mem[offVersion]; v != c.config.ProtocolVersion {
		if c.config.StrictVersion {
			return fmt.Errorf("%w: region has %d, want %d", ErrVersionMismatch, v, c.config.ProtocolVersion)
		}
		c.logger.Warnf("protocol version mismatch: region has %d, want %d", v, c.config.ProtocolVersion)
	}
	return nil
}

func (c *Client) unmap(ctx context.Context, region *internalshm.MappedRegion) {
	if err := internalshm.UnmapRegion(ctx, region); err != nil {
		c.logger.Warnf("unmap %s: %v", region.Name, err)
	}
}

// IsActive reports whether the client is attached.
func (c *Client) IsActive() bool {
	return c.mem != nil
}

// Disconnect releases the mutex handle and the mapping. It is idempotent.
func (c *Client) Disconnect() error {
	if c.region == nil && c.mutex == nil {
		return nil
	}
	var errs []error
	if c.mutex != nil {
		if err := c.mutex.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mutex: %w", err))
		}
	}
	if c.region != nil {
		if err := internalshm.UnmapRegion(context.Background(), c.region); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
	}
	c.mutex = nil
	c.region = nil
	c.mem = nil
	c.toHost = nil
	c.recv = nil
	c.metrics.Attached.Set(0)
	c.logger.Infof("detached from %s", c.config.MappingName)
	return errors.Join(errs...)
}

// Close implements io.Closer.
func (c *Client) Close() error {
	return c.Disconnect()
}

// withLock runs fn while holding the link mutex. An abandoned mutex is reclaimed and fn
// still runs.
func (c *Client) withLock(op string, timeout time.Duration, fn func()) error {
	if !c.IsActive() {
		return ErrNotAttached
	}
	// a Windows mutex belongs to the OS thread that acquired it
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	res, err := c.mutex.Lock(timeout)
	c.metrics.LockWaits.WithLabelValues(op, res.String()).Inc()
	switch res {
	case internalshm.LockAcquired:
	case internalshm.LockAbandoned:
		c.logger.Warnf("%s: %v, reclaiming it", op, ErrLockAbandoned)
	case internalshm.LockTimeout:
		return ErrLockTimeout
	default:
		return fmt.Errorf("%w: %v", ErrLockFailed, err)
	}
	defer func() {
		if err := c.mutex.Unlock(); err != nil {
			c.logger.Warnf("%s: release mutex: %v", op, err)
		}
	}()
	fn()
	return nil
}

// FrameSequence returns frame.seq without taking the mutex. It is a heartbeat only:
// zero means no content yet, a value that stops changing means the producer stalled.
func (c *Client) FrameSequence() uint16 {
	if !c.IsActive() {
		return 0
	}
	seq := internalshm.LoadUint16(c.mem, offFrame+frameSeq)
	c.metrics.FrameSequence.Set(float64(seq))
	return seq
}

// FrameBufferInfo returns the current frame. It waits at most FrameLockTimeout for the
// mutex and reads without it on timeout, so the render loop is never blocked for longer.
func (c *Client) FrameBufferInfo() FrameBufferInfo {
	var info FrameBufferInfo
	if !c.IsActive() {
		return info
	}
	err := c.withLock("frame", c.config.FrameLockTimeout, func() {
		info = c.readFrame()
		info.Locked = true
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrLockTimeout):
		c.logger.Debugf("timeout in getting mutex for frame buffer info, reading it anyway")
		info = c.readFrame()
	default:
		c.logger.Warnf("frame buffer info: %v", err)
	}
	return info
}

func (c *Client) readFrame() FrameBufferInfo {
	f := c.mem[offFrame : offFrame+frameSize]
	info := FrameBufferInfo{
		Sequence:    internalshm.LoadUint16(c.mem, offFrame+frameSeq),
		Width:       int(binary.LittleEndian.Uint16(f[frameWidth:])),
		Height:      int(binary.LittleEndian.Uint16(f[frameHeight:])),
		ImageFormat: f[frameImageFmt],
		ParX:        int(binary.LittleEndian.Uint16(f[frameParX:])),
		ParY:        int(binary.LittleEndian.Uint16(f[frameParY:])),
		WantsMouse:  Flags(c.mem[offFlags]).WantsMouse(),
	}
	n := frameBufferLength(info.ImageFormat, info.Width, info.Height)
	if info.ImageFormat != ImageFormatNone && (info.Width > MaxFrameWidth || info.Height > MaxFrameHeight) {
		c.logger.Debugf("frame %dx%d exceeds %dx%d, ignoring it", info.Width, info.Height, MaxFrameWidth, MaxFrameHeight)
	}
	info.BufferLength = n
	if n > 0 {
		info.Buffer = f[frameBuffer : frameBuffer+n : frameBuffer+n]
	}
	return info
}

// Version returns the protocol version stored in the region.
func (c *Client) Version() uint8 {
	if !c.IsActive() {
		return 0
	}
	return c.mem[offVersion]
}

// Flags returns the producer flags.
func (c *Client) Flags() Flags {
	if !c.IsActive() {
		return 0
	}
	return Flags(c.mem[offFlags])
}

// IsTrackingOnly reports whether the producer publishes no frames.
func (c *Client) IsTrackingOnly() bool {
	return c.Flags().NoFrame()
}

// SystemName returns the producer's system identifier.
func (c *Client) SystemName() string {
	if !c.IsActive() {
		return ""
	}
	return cString(c.mem[offSystem : offSystem+SystemMaxLen])
}

// ProgramName returns the name of the program loaded in the emulator, or "" if unknown.
func (c *Client) ProgramName() string {
	if !c.IsActive() {
		return ""
	}
	return cString(c.mem[offProgram : offProgram+ProgramMaxLen])
}

// ProgramHash returns the content hash of the loaded program.
func (c *Client) ProgramHash() [HashLen]byte {
	var h [HashLen]byte
	if c.IsActive() {
		copy(h[:], c.mem[offProgramHash:offProgramHash+HashLen])
	}
	return h
}

// SendCommand writes cmd into the outbound mailbox. The mailbox holds one command: a
// command the producer has not consumed yet is overwritten. Use a CommandOutbox to queue.
func (c *Client) SendCommand(cmd string) error {
	if !c.IsActive() {
		return ErrNotAttached
	}
	if len(cmd) > c.toHost.MaxMessage() {
		return fmt.Errorf("%w: %d bytes, max %d", ErrCommandTooLarge, len(cmd), c.toHost.MaxMessage())
	}
	var werr error
	if err := c.withLock("command", c.config.IOLockTimeout, func() {
		werr = c.toHost.Write(cmd)
	}); err != nil {
		c.metrics.DroppedWrites.WithLabelValues("command").Inc()
		return err
	}
	if werr != nil {
		return werr
	}
	c.commands.Add(context.Background(), 1)
	c.logger.Debugf("sent command %q", cmd)
	return nil
}

// CommandPending reports whether the producer has not consumed the last command yet.
// The read is race tolerant.
func (c *Client) CommandPending() bool {
	if !c.IsActive() {
		return false
	}
	return c.toHost.Pending()
}

// Pause toggles emulation pause.
func (c *Client) Pause() error { return c.SendCommand(CommandPause) }

// Reset resets the emulated machine.
func (c *Client) Reset() error { return c.SendCommand(CommandReset) }

// Shutdown asks the producer to exit.
func (c *Client) Shutdown() error { return c.SendCommand(CommandShutdown) }

// ReceiveMessage takes the message the producer left for the consumer, if any.
func (c *Client) ReceiveMessage() (string, bool) {
	var (
		msg string
		ok  bool
	)
	if err := c.withLock("receive", c.config.IOLockTimeout, func() {
		msg, ok = c.recv.Take()
	}); err != nil {
		c.logger.Debugf("receive message: %v", err)
		return "", false
	}
	return msg, ok
}

// SendKeystroke posts a virtual key code and its raw parameter on the second input
// channel. The write is dropped if the mutex is not acquired within IOLockTimeout.
func (c *Client) SendKeystroke(vk, lparam uint32) error {
	err := c.withLock("keystroke", c.config.IOLockTimeout, func() {
		in := c.mem[InputOther.offset() : InputOther.offset()+inputSize]
		ks := in[inputKeyState:]
		binary.LittleEndian.PutUint32(ks[0:], vk)
		binary.LittleEndian.PutUint32(ks[4:], lparam)
		for i := 2; i < KeyStateSlots; i++ {
			binary.LittleEndian.PutUint32(ks[i*4:], 0)
		}
		in[inputReady] = ReadyOther
	})
	if err != nil {
		c.metrics.DroppedWrites.WithLabelValues("keystroke").Inc()
		c.logger.Debugf("keystroke %#x dropped: %v", vk, err)
	}
	return err
}

// SetSoundVolume sets the main and Mockingboard volumes, each clamped to [0,100].
func (c *Client) SetSoundVolume(main, mockingboard int) error {
	main = clampVolume(main)
	mockingboard = clampVolume(mockingboard)
	err := c.withLock("volume", c.config.IOLockTimeout, func() {
		c.mem[offAudio] = uint8(main)
		c.mem[offAudio+1] = uint8(mockingboard)
	})
	if err != nil {
		c.metrics.DroppedWrites.WithLabelValues("volume").Inc()
		c.logger.Debugf("set volume dropped: %v", err)
	}
	return err
}

// SoundVolumeMain returns the main volume, 0 if the mutex could not be acquired.
func (c *Client) SoundVolumeMain() int {
	return c.readAudio(0)
}

// SoundVolumeMockingboard returns the Mockingboard volume, 0 if the mutex could not be acquired.
func (c *Client) SoundVolumeMockingboard() int {
	return c.readAudio(1)
}

func (c *Client) readAudio(ch int) int {
	var v int
	if err := c.withLock("volume", c.config.IOLockTimeout, func() {
		v = int(c.mem[offAudio+ch])
	}); err != nil {
		c.logger.Debugf("read volume: %v", err)
		return 0
	}
	return v
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
