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

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of a client.
type Metrics struct {
	ConnectAttempts *prometheus.CounterVec
	LockWaits       *prometheus.CounterVec
	DroppedWrites   *prometheus.CounterVec
	Attached        prometheus.Gauge
	FrameSequence   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamelink",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts by result.",
		}, []string{"result"}),
		LockWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamelink",
			Name:      "lock_waits_total",
			Help:      "Waits on the link mutex by operation and outcome.",
		}, []string{"op", "result"}),
		DroppedWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gamelink",
			Name:      "dropped_writes_total",
			Help:      "Consumer writes dropped because the mutex was not acquired.",
		}, []string{"op"}),
		Attached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gamelink",
			Name:      "attached",
			Help:      "1 while the shared region is attached.",
		}),
		FrameSequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gamelink",
			Name:      "frame_sequence",
			Help:      "Last frame sequence number read.",
		}),
	}
	if reg != nil {
		m.ConnectAttempts = register(reg, m.ConnectAttempts)
		m.LockWaits = register(reg, m.LockWaits)
		m.DroppedWrites = register(reg, m.DroppedWrites)
		m.Attached = register(reg, m.Attached)
		m.FrameSequence = register(reg, m.FrameSequence)
	}
	return m
}

// register reuses an identical collector already known to reg, so several clients can
// share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		internalLogger.Warnf("register collector: %v", err)
	}
	return c
}

func connectResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrMutexUnavailable):
		return "mutex_unavailable"
	case errors.Is(err, ErrVersionMismatch):
		return "version_mismatch"
	case errors.Is(err, ErrRegionTooSmall):
		return "region_too_small"
	default:
		return "error"
	}
}
