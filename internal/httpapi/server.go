// Package httpapi wires the gateway's chi router, middleware chain, and
// handlers, following the teacher's server/routes/middleware split.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/crlsmrls/sentra-gateway/internal/config"
	"github.com/crlsmrls/sentra-gateway/internal/metrics"
	"github.com/crlsmrls/sentra-gateway/internal/pipeline"
	"github.com/crlsmrls/sentra-gateway/internal/telemetry"
)

// Server holds the HTTP server and the components it dispatches to.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux

	cfg           *config.Config
	pipeline      *pipeline.Pipeline
	metrics       *metrics.Registry
	sink          *telemetry.Sink
	allowedTokens map[string]struct{}
	version       string
}

// New builds the router, wires the middleware chain, and registers routes.
func New(cfg *config.Config, pipe *pipeline.Pipeline, reg *metrics.Registry, sink *telemetry.Sink, version string, logWriter io.Writer) *Server {
	r := chi.NewRouter()

	if logWriter == nil {
		logWriter = os.Stdout
	}
	logger := zerolog.New(logWriter).With().Timestamp().Caller().Logger()

	r.Use(
		hlog.NewHandler(logger),
		reg.Middleware,
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		hlog.RemoteAddrHandler("ip"),
		hlog.UserAgentHandler("user_agent"),
		middleware.RequestID,
		CorrelationIDMiddleware,
		middleware.Recoverer,
	)

	s := &Server{
		router:        r,
		cfg:           cfg,
		pipeline:      pipe,
		metrics:       reg,
		sink:          sink,
		allowedTokens: cfg.AllowedTokens(),
		version:       version,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// Router exposes the underlying handler, primarily for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start runs the HTTP server until an OS signal requests shutdown.
func (s *Server) Start() error {
	log.Info().Msgf("starting server on port %d", s.cfg.Port)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		var err error
		if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
			log.Info().Msg("TLS enabled")
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			log.Info().Msg("TLS disabled")
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	<-stop
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("server gracefully stopped")
	return nil
}

// Shutdown gracefully stops the server without waiting for an OS signal,
// primarily for use by the process entrypoint's own shutdown path.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
