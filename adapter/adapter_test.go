package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
)

type fakeSource struct {
	live, ready error
}

func (f *fakeSource) Live() error  { return f.live }
func (f *fakeSource) Ready() error { return f.ready }

type AdapterTestSuite struct {
	suite.Suite
	src *fakeSource
	reg *prometheus.Registry
}

func (s *AdapterTestSuite) SetupTest() {
	s.src = &fakeSource{}
	s.reg = prometheus.NewRegistry()
}

func (s *AdapterTestSuite) status(h http.Handler, path string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func (s *AdapterTestSuite) TestProbes() {
	h := NewHealthHandler(s.src, nil, "")
	s.Equal(http.StatusOK, s.status(h, "/live"))
	s.Equal(http.StatusOK, s.status(h, "/ready"))

	s.src.ready = errors.New("link is not attached")
	s.Equal(http.StatusOK, s.status(h, "/live"))
	s.Equal(http.StatusServiceUnavailable, s.status(h, "/ready"))

	s.src.ready = nil
	s.src.live = errors.New("link is stale")
	s.Equal(http.StatusServiceUnavailable, s.status(h, "/live"))
	// readiness includes liveness
	s.Equal(http.StatusServiceUnavailable, s.status(h, "/ready"))
}

func (s *AdapterTestSuite) TestProbeMetrics() {
	h := NewHealthHandler(s.src, s.reg, "gamelink")
	s.src.ready = errors.New("down")
	s.status(h, "/ready")

	families, err := s.reg.Gather()
	s.Require().NoError(err)
	found := false
	for _, mf := range families {
		if mf.GetName() != "gamelink_healthcheck_status" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == ReadyCheckName {
					found = true
					s.Equal(1.0, m.GetGauge().GetValue())
				}
			}
		}
	}
	s.True(found)
}

func (s *AdapterTestSuite) TestAdminServer() {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gamelink_test_total"})
	s.reg.MustRegister(counter)
	counter.Inc()

	srv := NewAdminServer("127.0.0.1:0", NewHealthHandler(s.src, nil, ""), s.reg)
	s.Require().NoError(srv.Start())
	base := "http://" + srv.Addr()

	resp, err := http.Get(base + "/metrics")
	s.Require().NoError(err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	s.Require().NoError(err)
	s.Contains(string(body), "gamelink_test_total 1")

	s.src.ready = errors.New("down")
	resp, err = http.Get(base + "/ready")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Require().NoError(srv.Shutdown(ctx))
	_, open := <-srv.Errors()
	s.False(open)
}

func (s *AdapterTestSuite) TestAdminServerListenError() {
	srv := NewAdminServer("256.0.0.1:bad", NewHealthHandler(s.src, nil, ""), nil)
	s.Error(srv.Start())
	s.Equal("256.0.0.1:bad", srv.Addr())
}

func TestAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(AdapterTestSuite))
}
