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
	"fmt"

	queuepkg "github.com/Workiva/go-datastructures/queue"
)

// default hint is 64 commands, far more than a user can type between two ticks
const defaultOutboxHint = 64

// CommandSink is where an outbox delivers commands. *Client implements it.
type CommandSink interface {
	SendCommand(cmd string) error
	CommandPending() bool
}

// CommandOutbox queues commands in front of the single slot mailbox. Flush delivers the
// next command only after the producer consumed the previous one, so nothing is lost
// to last-write-wins.
type CommandOutbox struct {
	sink CommandSink
	q    *queuepkg.Queue
	next *string
}

// NewCommandOutbox returns an outbox delivering to sink.
func NewCommandOutbox(sink CommandSink, hint int64) *CommandOutbox {
	if hint <= 0 {
		hint = defaultOutboxHint
	}
	return &CommandOutbox{sink: sink, q: queuepkg.New(hint)}
}

// Enqueue adds cmd to the back of the outbox.
func (o *CommandOutbox) Enqueue(cmd string) error {
	if len(cmd) >= MessageCap || len(cmd) >= 0xffff {
		return fmt.Errorf("%w: %d bytes", ErrCommandTooLarge, len(cmd))
	}
	return o.q.Put(cmd)
}

// Len returns the number of undelivered commands.
func (o *CommandOutbox) Len() int {
	n := int(o.q.Len())
	if o.next != nil {
		n++
	}
	return n
}

// Flush delivers at most one command. It reports whether a command was written.
// A command that hit a lock timeout stays at the head and is retried on the next Flush.
func (o *CommandOutbox) Flush() (bool, error) {
	if o.next == nil {
		if o.q.Empty() {
			return false, nil
		}
		items, err := o.q.Get(1)
		if err != nil {
			return false, err
		}
		cmd, ok := items[0].(string)
		if !ok {
			return false, fmt.Errorf("invalid outbox element type %T", items[0])
		}
		o.next = &cmd
	}
	if o.sink.CommandPending() {
		return false, nil
	}
	err := o.sink.SendCommand(*o.next)
	switch {
	case err == nil:
		o.next = nil
		return true, nil
	case errors.Is(err, ErrLockTimeout), errors.Is(err, ErrNotAttached):
		return false, nil
	default:
		internalLogger.Warnf("outbox dropped command %q: %v", *o.next, err)
		o.next = nil
		return false, err
	}
}

// Dispose releases the queue. Pending commands are discarded.
func (o *CommandOutbox) Dispose() {
	o.q.Dispose()
	o.next = nil
}
