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
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	internalshm "github.com/srediag/gamelink/internal/shm"
)

const testRAMSize = 128 * 1024

// fakeProducer plays the emulator side of the link on /dev/shm.
type fakeProducer struct {
	t      *testing.T
	name   string
	region *internalshm.MappedRegion
	mutex  *internalshm.Mutex
	mem    []byte
}

func testNames() (string, string) {
	name := fmt.Sprintf("gamelink_test_%d_%d", rand.Int63(), time.Now().Nanosecond())
	return name, name + "_mutex"
}

func testConfig(mapping, mutex string) *Config {
	config := DefaultConfig()
	config.MappingName = mapping
	config.MutexName = mutex
	config.FrameLockTimeout = 50 * time.Millisecond
	config.IOLockTimeout = 50 * time.Millisecond
	config.LogOutput = io.Discard
	return config
}

func newFakeProducer(t *testing.T, mapping, mutex string, ramSize int) *fakeProducer {
	p := &fakeProducer{t: t, name: mapping}
	p.createRegion(HeaderSize + ramSize)
	m, err := internalshm.CreateMutex(mutex)
	require.NoError(t, err)
	p.mutex = m
	t.Cleanup(func() {
		_ = internalshm.RemoveMutex(mutex)
	})
	binary.LittleEndian.PutUint32(p.mem[offRAMSize:], uint32(ramSize))
	return p
}

func (p *fakeProducer) createRegion(size int) {
	region, err := internalshm.MapRegion(context.Background(), internalshm.MapOptions{
		Name: p.name, Size: size, Create: true,
	})
	require.NoError(p.t, err)
	p.region = region
	p.mem = region.Addr
	p.mem[offVersion] = ProtocolVersion
	copy(p.mem[offSystem:], SystemName)
	p.t.Cleanup(p.close)
}

func (p *fakeProducer) close() {
	if p.mutex != nil {
		_ = p.mutex.Close()
	}
	_ = internalshm.UnmapRegion(context.Background(), p.region)
	_ = internalshm.RemoveRegion(p.name)
}

func (p *fakeProducer) setFrame(seq uint16, width, height int, format uint8) {
	f := p.mem[offFrame:]
	binary.LittleEndian.PutUint16(f[frameWidth:], uint16(width))
	binary.LittleEndian.PutUint16(f[frameHeight:], uint16(height))
	f[frameImageFmt] = format
	binary.LittleEndian.PutUint16(f[frameParX:], 4)
	binary.LittleEndian.PutUint16(f[frameParY:], 3)
	p.setSeq(seq)
}

func (p *fakeProducer) setSeq(seq uint16) {
	internalshm.StoreUint16(p.mem, offFrame+frameSeq, seq)
}

func (p *fakeProducer) setProgram(name string) {
	prog := p.mem[offProgram : offProgram+ProgramMaxLen]
	for i := range prog {
		prog[i] = 0
	}
	copy(prog, name)
}

func (p *fakeProducer) lock() {
	res, err := p.mutex.Lock(time.Second)
	require.NoError(p.t, err)
	require.Equal(p.t, internalshm.LockAcquired, res)
}

func (p *fakeProducer) unlock() {
	require.NoError(p.t, p.mutex.Unlock())
}

func (p *fakeProducer) command() (string, bool) {
	b := p.mem[offBufToHost:]
	n := int(binary.LittleEndian.Uint16(b))
	if n == 0 {
		return "", false
	}
	return cString(b[2 : 2+n]), true
}

func (p *fakeProducer) drainCommand() {
	binary.LittleEndian.PutUint16(p.mem[offBufToHost:], 0)
}

func (p *fakeProducer) postMessage(msg string) {
	b := p.mem[offBufRecv:]
	copy(b[2:], msg)
	b[2+len(msg)] = 0
	binary.LittleEndian.PutUint16(b, uint16(len(msg)+1))
}
