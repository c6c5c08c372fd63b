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

// Package health turns the producer's frame sequence counter into a liveness state.
//
// The counter is a heartbeat only. A zero value means the producer has not rendered
// anything yet; a nonzero value that stops moving means the producer stalled or exited
// without tearing the region down.
package health

import (
	"errors"
	"fmt"
)

// State is the liveness of the link as seen through the sequence counter.
type State int

const (
	StateUnknown State = iota
	StateWaiting
	StateNewlyActive
	StateActive
	StateStale
)

var stateNames = []string{"unknown", "waiting", "newly-active", "active", "stale"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Alive reports whether frames are flowing.
func (s State) Alive() bool {
	return s == StateNewlyActive || s == StateActive
}

// TrackerConfig controls how often the counter is sampled and when it is declared stale.
type TrackerConfig struct {
	// SampleEvery is the number of Observe calls between two samples.
	SampleEvery int
	// StaleAfter is the number of consecutive unchanged nonzero samples after which the
	// link is stale.
	StaleAfter int
}

// DefaultTrackerConfig samples twice a second at 60 ticks per second and declares the
// link stale after one and a half seconds without progress.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{SampleEvery: 30, StaleAfter: 3}
}

// VerifyTrackerConfig checks the config is usable.
func VerifyTrackerConfig(c TrackerConfig) error {
	if c.SampleEvery <= 0 {
		return errors.New("SampleEvery must be positive")
	}
	if c.StaleAfter <= 0 {
		return errors.New("StaleAfter must be positive")
	}
	return nil
}

// Tracker is fed the sequence counter once per tick. It is not safe for concurrent use.
type Tracker struct {
	config    TrackerConfig
	ticks     int
	last      uint16
	sampled   bool
	unchanged int
	state     State
}

// NewTracker returns a tracker in StateUnknown. An invalid config falls back to defaults.
func NewTracker(config TrackerConfig) *Tracker {
	if VerifyTrackerConfig(config) != nil {
		config = DefaultTrackerConfig()
	}
	return &Tracker{config: config}
}

// Observe counts a tick and samples seq every SampleEvery ticks, starting with the first
// call. Between samples the previous state is returned.
func (t *Tracker) Observe(seq uint16) State {
	t.ticks++
	if t.ticks > 1 && (t.ticks-1)%t.config.SampleEvery != 0 {
		return t.state
	}
	return t.Sample(seq)
}

// Sample applies one sample immediately, regardless of the tick count.
func (t *Tracker) Sample(seq uint16) State {
	switch {
	case seq == 0:
		t.unchanged = 0
		t.state = StateWaiting
	case !t.sampled || seq != t.last:
		t.unchanged = 0
		if t.state.Alive() {
			t.state = StateActive
		} else {
			t.state = StateNewlyActive
		}
	default:
		t.unchanged++
		if t.unchanged >= t.config.StaleAfter {
			t.state = StateStale
		} else if t.state == StateNewlyActive {
			t.state = StateActive
		}
	}
	t.last = seq
	t.sampled = true
	return t.state
}

// State returns the state of the last sample.
func (t *Tracker) State() State {
	return t.state
}

// Last returns the last sampled counter.
func (t *Tracker) Last() uint16 {
	return t.last
}

// ResumeStale starts the tracker as stale at seq, for a link torn down because it stopped
// advancing and attached again. The same seq keeps it stale; only progress revives it.
func (t *Tracker) ResumeStale(seq uint16) {
	*t = Tracker{
		config:    t.config,
		last:      seq,
		sampled:   true,
		unchanged: t.config.StaleAfter,
		state:     StateStale,
	}
}

// Reset forgets all samples, as after a reconnect.
func (t *Tracker) Reset() {
	*t = Tracker{config: t.config}
}
