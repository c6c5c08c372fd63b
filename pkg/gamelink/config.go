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
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	defaultFrameLockTimeout = 1000 * time.Millisecond
	defaultIOLockTimeout    = 3000 * time.Millisecond
	maxLockTimeout          = time.Minute
)

// Config is used to tune the link client.
type Config struct {
	// MappingName is the name of the producer's shared memory object.
	MappingName string

	// MutexName is the name of the mutex guarding the region.
	MutexName string

	// ProtocolVersion the client understands.
	ProtocolVersion uint8

	// StrictVersion refuses to attach to a region of another version.
	// When false the mismatch is only logged.
	StrictVersion bool

	// TakeOverVideo sends the native video command after attaching, so the producer
	// stops presenting frames itself.
	TakeOverVideo bool

	// RequestProgramCounter fills the peek table with the program counter sentinels
	// after attaching.
	RequestProgramCounter bool

	// FrameLockTimeout bounds the mutex wait of FrameBufferInfo. On timeout the frame is
	// read without the lock.
	FrameLockTimeout time.Duration

	// IOLockTimeout bounds the mutex wait of input, audio, peek and command operations.
	// On timeout writes are dropped and reads return zero.
	IOLockTimeout time.Duration

	// LogOutput is used to control the log destination.
	LogOutput io.Writer

	// Registerer receives the client's prometheus collectors. Nil disables registration.
	Registerer prometheus.Registerer

	// Meter and Tracer instrument the client. Nil uses no-op implementations.
	Meter  metric.Meter
	Tracer trace.Tracer
}

// DefaultConfig is used to return a default configuration.
func DefaultConfig() *Config {
	return &Config{
		MappingName:           DefaultMappingName,
		MutexName:             DefaultMutexName,
		ProtocolVersion:       ProtocolVersion,
		StrictVersion:         true,
		TakeOverVideo:         true,
		RequestProgramCounter: true,
		FrameLockTimeout:      defaultFrameLockTimeout,
		IOLockTimeout:         defaultIOLockTimeout,
		LogOutput:             os.Stdout,
	}
}

// VerifyConfig is used to verify the sanity of configuration.
func VerifyConfig(config *Config) error {
	if config == nil {
		return errors.New("nil config")
	}
	if config.MappingName == "" {
		return errors.New("MappingName must not be empty")
	}
	if config.MutexName == "" {
		return errors.New("MutexName must not be empty")
	}
	if config.MappingName == config.MutexName {
		return fmt.Errorf("MappingName and MutexName must differ, both are %q", config.MappingName)
	}
	if config.ProtocolVersion == 0 {
		return errors.New("ProtocolVersion must not be zero")
	}
	if config.FrameLockTimeout <= 0 || config.FrameLockTimeout > maxLockTimeout {
		return fmt.Errorf("FrameLockTimeout must be in (0, %s], got %s", maxLockTimeout, config.FrameLockTimeout)
	}
	if config.IOLockTimeout <= 0 || config.IOLockTimeout > maxLockTimeout {
		return fmt.Errorf("IOLockTimeout must be in (0, %s], got %s", maxLockTimeout, config.IOLockTimeout)
	}
	return nil
}

func (c *Config) meter() metric.Meter {
	if c.Meter != nil {
		return c.Meter
	}
	return metricnoop.NewMeterProvider().Meter("gamelink")
}

func (c *Config) tracer() trace.Tracer {
	if c.Tracer != nil {
		return c.Tracer
	}
	return tracenoop.NewTracerProvider().Tracer("gamelink")
}
