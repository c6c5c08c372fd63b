package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 5 * time.Second

// AdminServer serves /live, /ready and /metrics for a running consumer.
type AdminServer struct {
	addr   string
	srv    *http.Server
	ln     net.Listener
	errors chan error
}

// NewAdminServer returns a server for addr. A nil gatherer serves the default registry.
func NewAdminServer(addr string, health healthcheck.Handler, gatherer prometheus.Gatherer) *AdminServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/live", health.LiveEndpoint)
	mux.HandleFunc("/ready", health.ReadyEndpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &AdminServer{
		addr:   addr,
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout},
		errors: make(chan error, 1),
	}
}

// Start listens and serves in the background.
func (s *AdminServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("admin listen %s: %w", s.addr, err)
	}
	s.ln = ln
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errors <- err
		}
		close(s.errors)
	}()
	return nil
}

// Addr returns the bound address, useful with port 0.
func (s *AdminServer) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Errors delivers a serve failure, if any, and is closed when serving stops.
func (s *AdminServer) Errors() <-chan error {
	return s.errors
}

// Shutdown stops the server gracefully.
func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
