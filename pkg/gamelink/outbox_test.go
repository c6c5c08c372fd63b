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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink mimics the mailbox: one slot, drained by the test.
type fakeSink struct {
	slot    string
	pending bool
	err     error
	sent    []string
}

func (f *fakeSink) SendCommand(cmd string) error {
	if f.err != nil {
		return f.err
	}
	f.slot, f.pending = cmd, true
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeSink) CommandPending() bool { return f.pending }

func (f *fakeSink) drain() { f.pending = false }

func TestCommandOutboxDeliversInOrder(t *testing.T) {
	sink := &fakeSink{}
	o := NewCommandOutbox(sink, 0)
	defer o.Dispose()

	for _, cmd := range []string{":pause", ":reset", ":videonative"} {
		require.NoError(t, o.Enqueue(cmd))
	}
	assert.Equal(t, 3, o.Len())

	sent, err := o.Flush()
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, ":pause", sink.slot)

	// the producer has not consumed the first command yet
	sent, err = o.Flush()
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 2, o.Len())

	for sink.drain(); o.Len() > 0; sink.drain() {
		_, err = o.Flush()
		require.NoError(t, err)
	}
	assert.Equal(t, []string{":pause", ":reset", ":videonative"}, sink.sent)

	sent, err = o.Flush()
	assert.NoError(t, err)
	assert.False(t, sent)
}

func TestCommandOutboxRetriesOnLockTimeout(t *testing.T) {
	sink := &fakeSink{err: ErrLockTimeout}
	o := NewCommandOutbox(sink, 4)
	defer o.Dispose()
	require.NoError(t, o.Enqueue(":pause"))

	sent, err := o.Flush()
	assert.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 1, o.Len())

	sink.err = nil
	sent, err = o.Flush()
	assert.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, 0, o.Len())
}

func TestCommandOutboxDropsOnHardError(t *testing.T) {
	boom := errors.New("boom")
	sink := &fakeSink{err: boom}
	o := NewCommandOutbox(sink, 4)
	defer o.Dispose()
	require.NoError(t, o.Enqueue(":pause"))

	_, err := o.Flush()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, o.Len())
}

func TestCommandOutboxRejectsOversized(t *testing.T) {
	o := NewCommandOutbox(&fakeSink{}, 4)
	defer o.Dispose()
	assert.ErrorIs(t, o.Enqueue(strings.Repeat("x", MessageCap)), ErrCommandTooLarge)
	assert.Equal(t, 0, o.Len())
}
