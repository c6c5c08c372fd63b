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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"
)

// EventType classifies link events.
type EventType int

const (
	EventAttached EventType = iota
	EventDetached
	EventWaiting
	EventActive
	EventNewlyActive
	EventStale
	EventConnectFailed
)

var eventNames = []string{"attached", "detached", "waiting", "active", "newly-active", "stale", "connect-failed"}

func (t EventType) String() string {
	if int(t) < len(eventNames) {
		return eventNames[t]
	}
	return fmt.Sprintf("event(%d)", int(t))
}

// Event is a change of the link state.
type Event struct {
	Type     EventType
	Serial   uint64
	Sequence uint16
	Err      error
	Time     time.Time
}

// Handler receives events.
type Handler func(Event)

// Dispatcher fans events out to named handlers on a worker pool, so a slow handler never
// stalls the polling goroutine. Handlers may observe events out of order; use Serial.
type Dispatcher struct {
	pool     *ants.Pool
	handlers cmap.ConcurrentMap[string, Handler]
	serial   atomic.Uint64
	wg       sync.WaitGroup
	dropped  atomic.Uint64
}

// NewDispatcher starts a dispatcher with the given number of workers.
func NewDispatcher(workers int) (*Dispatcher, error) {
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			internalLogger.Errorf("event handler panic: %v", p)
		}))
	if err != nil {
		return nil, fmt.Errorf("create dispatcher pool: %w", err)
	}
	return &Dispatcher{pool: pool, handlers: cmap.New[Handler]()}, nil
}

// Subscribe registers h under name, replacing any handler with that name.
func (d *Dispatcher) Subscribe(name string, h Handler) {
	d.handlers.Set(name, h)
}

// Unsubscribe removes the handler registered under name.
func (d *Dispatcher) Unsubscribe(name string) {
	d.handlers.Remove(name)
}

// Publish hands ev to every handler. Events that do not fit the pool are dropped and
// counted; Publish never blocks.
func (d *Dispatcher) Publish(ev Event) {
	ev.Serial = d.serial.Add(1)
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	for item := range d.handlers.IterBuffered() {
		h := item.Val
		d.wg.Add(1)
		if err := d.pool.Submit(func() {
			defer d.wg.Done()
			h(ev)
		}); err != nil {
			d.wg.Done()
			d.dropped.Add(1)
			internalLogger.Warnf("event %s to %s dropped: %v", ev.Type, item.Key, err)
		}
	}
}

// Dropped returns how many deliveries were dropped because the pool was saturated.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Wait blocks until every submitted delivery has run.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close waits for in-flight deliveries and releases the pool.
func (d *Dispatcher) Close() {
	d.Wait()
	d.pool.Release()
}
