package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/crlsmrls/sentra-gateway/internal/config"
	"github.com/crlsmrls/sentra-gateway/internal/metrics"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
	"github.com/crlsmrls/sentra-gateway/internal/telemetry"
)

// TestServer wraps a Server with a real listening httptest.Server for
// end-to-end tests.
type TestServer struct {
	*Server
	HTTPServer *httptest.Server
}

// NewTestServer builds a server and starts it on an ephemeral local port.
func NewTestServer(cfg *config.Config, pipe *pipeline.Pipeline, reg *metrics.Registry, sink *telemetry.Sink, logWriter io.Writer) *TestServer {
	if reg == nil {
		reg = metrics.New("test", func() float64 { return 0 }, func() float64 { return 0 })
	}
	if sink == nil {
		sink = telemetry.NewSink(nil, nil, false, 0)
	}
	server := New(cfg, pipe, reg, sink, "test", logWriter)
	httpServer := httptest.NewServer(server.router)
	return &TestServer{Server: server, HTTPServer: httpServer}
}

// NewTestServerWithRecorder builds a server intended for direct
// httptest.ResponseRecorder-based testing, without a listening socket.
func NewTestServerWithRecorder(cfg *config.Config, pipe *pipeline.Pipeline, reg *metrics.Registry, sink *telemetry.Sink, logWriter io.Writer) *Server {
	if reg == nil {
		reg = metrics.New("test", func() float64 { return 0 }, func() float64 { return 0 })
	}
	if sink == nil {
		sink = telemetry.NewSink(nil, nil, false, 0)
	}
	return New(cfg, pipe, reg, sink, "test", logWriter)
}

// ServeHTTP allows the server to be exercised directly with an
// httptest.ResponseRecorder.
func (s *Server) ServeHTTP(recorder *httptest.ResponseRecorder, request *http.Request) {
	s.router.ServeHTTP(recorder, request)
}
