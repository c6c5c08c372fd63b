// Package adapter exposes the link state to external monitoring: health probes and
// prometheus metrics over HTTP.
package adapter

import (
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// Check names, as reported by the probes with ?full=1.
const (
	LiveCheckName  = "link-progress"
	ReadyCheckName = "link-attached"
)

// HealthSource reports the link state. *lifecycle.Watchdog implements it.
type HealthSource interface {
	// Live fails while an attached producer makes no progress.
	Live() error
	// Ready fails while no producer is attached.
	Ready() error
}

// NewHealthHandler returns probe handlers backed by src. With a non-nil reg, every check
// result is also exported as a gauge under namespace.
func NewHealthHandler(src HealthSource, reg prometheus.Registerer, namespace string) healthcheck.Handler {
	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, namespace)
	} else {
		h = healthcheck.NewHandler()
	}
	h.AddLivenessCheck(LiveCheckName, src.Live)
	h.AddReadinessCheck(ReadyCheckName, src.Ready)
	return h
}
