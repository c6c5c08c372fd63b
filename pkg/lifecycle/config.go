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

// Package lifecycle drives a link between unattached and attached on behalf of a polling
// consumer: it retries Connect with backoff, watches the frame sequence heartbeat and
// tears a stale link down so it can be re-established.
package lifecycle

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/srediag/gamelink/pkg/gamelink"
	"github.com/srediag/gamelink/pkg/health"
)

// DefaultProducerProcess is the executable name of the emulator.
const DefaultProducerProcess = "AppleWin"

// Config is the watchdog policy.
type Config struct {
	Tracker health.TrackerConfig

	// ReconnectOnStale disconnects a stale link so the next polls try to attach again,
	// which picks up a restarted producer.
	ReconnectOnStale bool

	InitialRetryInterval time.Duration
	MaxRetryInterval     time.Duration
	// RetryJitter is the randomization factor of the retry schedule, in [0,1).
	RetryJitter float64

	// ProducerProcess is looked up among running processes when the region is missing,
	// to tell "emulator not started" from "emulator started without the link enabled".
	// Empty disables the lookup.
	ProducerProcess string
	ProducerCheck   func(ctx context.Context, name string) (bool, error)

	// Dispatcher receives state change events. Optional.
	Dispatcher *gamelink.Dispatcher
	Clock      backoff.Clock
	LogOutput  io.Writer
}

// DefaultConfig returns the default watchdog policy.
func DefaultConfig() *Config {
	return &Config{
		Tracker:              health.DefaultTrackerConfig(),
		ReconnectOnStale:     true,
		InitialRetryInterval: 250 * time.Millisecond,
		MaxRetryInterval:     5 * time.Second,
		RetryJitter:          0.5,
		ProducerProcess:      DefaultProducerProcess,
		ProducerCheck:        ProducerRunning,
		Clock:                backoff.SystemClock,
	}
}

// VerifyConfig checks the config and fills unset optional fields.
func VerifyConfig(config *Config) error {
	if err := health.VerifyTrackerConfig(config.Tracker); err != nil {
		return err
	}
	if config.InitialRetryInterval <= 0 {
		return errors.New("InitialRetryInterval must be positive")
	}
	if config.MaxRetryInterval < config.InitialRetryInterval {
		return errors.New("MaxRetryInterval must not be less than InitialRetryInterval")
	}
	if config.RetryJitter < 0 || config.RetryJitter >= 1 {
		return errors.New("RetryJitter must be in [0,1)")
	}
	if config.ProducerCheck == nil {
		config.ProducerCheck = ProducerRunning
	}
	if config.Clock == nil {
		config.Clock = backoff.SystemClock
	}
	return nil
}
