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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srediag/gamelink/pkg/gamelink"
	"github.com/srediag/gamelink/pkg/health"
)

var (
	// ErrUnattached is reported by Ready while no region is attached.
	ErrUnattached = errors.New("link is not attached")
	// ErrStale is reported by Live while the attached producer makes no progress.
	ErrStale = errors.New("link is stale")
)

// producer lookups are capped so a slow process table never stalls a tick
const producerCheckTimeout = 500 * time.Millisecond

// Link is the part of *gamelink.Client the watchdog drives.
type Link interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsActive() bool
	FrameSequence() uint16
}

// flagsReporter is implemented by links that expose the producer flags.
type flagsReporter interface {
	Flags() gamelink.Flags
}

// Status is a snapshot of the watchdog, safe to read from other goroutines.
type Status struct {
	Attached  bool
	State     health.State
	Sequence  uint16
	Attempts  int
	LastError error
	Since     time.Time
	// StaleSince is set when the producer stopped advancing and stays set across
	// reconnects until the sequence moves again or the producer goes away.
	StaleSince time.Time
	// Paused is set while the producer reports itself paused; staleness is not
	// evaluated then.
	Paused bool
}

// Watchdog owns the attach policy of one link. Poll is called from the consumer's tick;
// Status, Live and Ready may be called from any goroutine.
type Watchdog struct {
	config  *Config
	link    Link
	logger  *gamelink.Logger
	tracker *health.Tracker
	retry   *backoff.ExponentialBackOff

	attached    bool
	nextAttempt time.Time
	lastErr     error
	stale       bool
	staleSeq    uint16

	mu     sync.RWMutex
	status Status
}

// NewWatchdog returns a watchdog for link. A nil config uses DefaultConfig.
func NewWatchdog(link Link, config *Config) (*Watchdog, error) {
	if link == nil {
		return nil, errors.New("nil link")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	retry := &backoff.ExponentialBackOff{
		InitialInterval:     config.InitialRetryInterval,
		RandomizationFactor: config.RetryJitter,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         config.MaxRetryInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               config.Clock,
	}
	retry.Reset()
	w := &Watchdog{
		config:  config,
		link:    link,
		logger:  gamelink.NewLogger("watchdog", config.LogOutput),
		tracker: health.NewTracker(config.Tracker),
		retry:   retry,
	}
	w.status.Since = config.Clock.Now()
	return w, nil
}

// Poll runs one tick of the policy and returns the liveness state. While unattached it
// attempts at most one Connect, and only once the retry schedule allows it.
func (w *Watchdog) Poll(ctx context.Context) health.State {
	now := w.config.Clock.Now()
	if w.attached && !w.link.IsActive() {
		// disconnected behind our back
		w.detach(now, "link closed")
	}
	if !w.attached {
		if now.Before(w.nextAttempt) {
			return health.StateUnknown
		}
		if !w.attach(ctx, now) {
			return health.StateUnknown
		}
	}

	seq := w.link.FrameSequence()
	if w.producerPaused() {
		w.update(func(s *Status) {
			s.Paused = true
			s.Sequence = seq
		})
		return w.tracker.State()
	}
	prev := w.tracker.State()
	state := w.tracker.Observe(seq)
	if state != prev {
		w.logger.Infof("link %s -> %s (seq %d)", prev, state, seq)
		w.publish(gamelink.Event{Type: eventFor(state), Sequence: seq, Time: now})
	}
	switch {
	case state == health.StateStale && !w.stale:
		w.stale = true
		w.staleSeq = seq
		w.update(func(s *Status) { s.StaleSince = now })
	case state != health.StateStale && w.stale:
		w.logger.Infof("producer advanced past seq %d", w.staleSeq)
		w.clearStale()
		w.retry.Reset()
	}
	w.update(func(s *Status) {
		s.State = state
		s.Sequence = seq
		s.Paused = false
		if state != prev {
			s.Since = now
		}
	})

	if state == health.StateStale && w.config.ReconnectOnStale {
		w.logger.Warnf("no frame progress past seq %d, reconnecting", seq)
		if err := w.link.Disconnect(); err != nil {
			w.logger.Warnf("disconnect stale link: %v", err)
		}
		w.detach(now, "stale")
		w.nextAttempt = now.Add(w.retry.NextBackOff())
	}
	return state
}

func (w *Watchdog) attach(ctx context.Context, now time.Time) bool {
	err := w.link.Connect(ctx)
	if err != nil {
		wait := w.retry.NextBackOff()
		w.nextAttempt = now.Add(wait)
		w.update(func(s *Status) {
			s.Attempts++
			s.LastError = err
		})
		if w.lastErr == nil || err.Error() != w.lastErr.Error() {
			w.diagnose(ctx, err)
		}
		w.lastErr = err
		if w.stale && errors.Is(err, gamelink.ErrNotFound) {
			// the stalled producer is gone, which is absence rather than staleness
			w.clearStale()
		}
		w.logger.Debugf("connect failed, next attempt in %s: %v", wait, err)
		w.publish(gamelink.Event{Type: gamelink.EventConnectFailed, Err: err, Time: now})
		return false
	}
	if w.stale {
		// same producer until the sequence moves, keep backing off meanwhile
		w.tracker.ResumeStale(w.staleSeq)
	} else {
		w.retry.Reset()
		w.tracker.Reset()
	}
	w.attached = true
	w.lastErr = nil
	state := w.tracker.State()
	w.update(func(s *Status) {
		s.Attached = true
		s.State = state
		s.Attempts = 0
		s.LastError = nil
		s.Since = now
	})
	w.logger.Infof("link attached")
	w.publish(gamelink.Event{Type: gamelink.EventAttached, Time: now})
	return true
}

func (w *Watchdog) detach(now time.Time, reason string) {
	w.attached = false
	w.update(func(s *Status) {
		s.Attached = false
		s.State = health.StateUnknown
		s.Since = now
	})
	w.logger.Infof("link detached: %s", reason)
	w.publish(gamelink.Event{Type: gamelink.EventDetached, Time: now})
}

func (w *Watchdog) clearStale() {
	w.stale = false
	w.update(func(s *Status) { s.StaleSince = time.Time{} })
}

func (w *Watchdog) producerPaused() bool {
	f, ok := w.link.(flagsReporter)
	return ok && f.Flags().Paused()
}

// diagnose explains a missing region, once per distinct failure.
func (w *Watchdog) diagnose(ctx context.Context, err error) {
	if !errors.Is(err, gamelink.ErrNotFound) || w.config.ProducerProcess == "" {
		w.logger.Warnf("connect: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, producerCheckTimeout)
	defer cancel()
	running, perr := w.config.ProducerCheck(ctx, w.config.ProducerProcess)
	switch {
	case perr != nil:
		w.logger.Debugf("look up %s: %v", w.config.ProducerProcess, perr)
	case running:
		w.logger.Warnf("%s is running but exposes no link region, is GameLink enabled?", w.config.ProducerProcess)
	default:
		w.logger.Infof("waiting for %s to start", w.config.ProducerProcess)
	}
}

// Run polls every interval until ctx is done, then disconnects the link.
func (w *Watchdog) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid poll interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if w.attached {
				if err := w.link.Disconnect(); err != nil {
					w.logger.Warnf("disconnect: %v", err)
				}
				w.detach(w.config.Clock.Now(), "shutdown")
			}
			return ctx.Err()
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Status returns the latest snapshot.
func (w *Watchdog) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// Live fails from the moment the producer stops advancing until it advances again,
// including while a stale link is torn down and re-attached.
func (w *Watchdog) Live() error {
	s := w.Status()
	if !s.StaleSince.IsZero() {
		return fmt.Errorf("%w since %s (seq %d)", ErrStale, s.StaleSince.Format(time.RFC3339), s.Sequence)
	}
	return nil
}

// Ready fails while no region is attached.
func (w *Watchdog) Ready() error {
	s := w.Status()
	if !s.Attached {
		if s.LastError != nil {
			return fmt.Errorf("%w: %v", ErrUnattached, s.LastError)
		}
		return ErrUnattached
	}
	return nil
}

func (w *Watchdog) update(fn func(*Status)) {
	w.mu.Lock()
	fn(&w.status)
	w.mu.Unlock()
}

func (w *Watchdog) publish(ev gamelink.Event) {
	if w.config.Dispatcher != nil {
		w.config.Dispatcher.Publish(ev)
	}
}

func eventFor(s health.State) gamelink.EventType {
	switch s {
	case health.StateWaiting:
		return gamelink.EventWaiting
	case health.StateNewlyActive:
		return gamelink.EventNewlyActive
	case health.StateStale:
		return gamelink.EventStale
	default:
		return gamelink.EventActive
	}
}
