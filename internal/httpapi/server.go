// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httpapi serves the pipeline over HTTP: document uploads, queries,
// server listings, run history and a websocket stream of run events.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/tombee/squash/internal/connector"
	"github.com/tombee/squash/internal/log"
	"github.com/tombee/squash/internal/pipeline"
	"github.com/tombee/squash/internal/processing"
	"github.com/tombee/squash/internal/store"
)

// Runner executes one pipeline run. *pipeline.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, query string, files []string) *pipeline.State
}

// ServerLister reports the configured data sources. *connector.Manager
// satisfies it.
type ServerLister interface {
	GetAllServerInfo() []connector.ServerInfo
}

// Documents parses uploads. *processing.DocumentCache satisfies it.
type Documents interface {
	Parse(path string) processing.Document
}

// Options configures the API. Runner, Servers and UploadDir are required.
type Options struct {
	Version   string
	MockMode  bool
	Runner    Runner
	Servers   ServerLister
	Documents Documents
	UploadDir string

	// Runs serves /api/runs. Nil disables run history.
	Runs store.Store
	// Recorder persists finished query runs. Nil skips persistence.
	Recorder *store.Recorder
	// Events feeds the /api/events websocket. Nil disables the stream.
	Events *pipeline.EventEmitter

	// Secret enables HS256 bearer auth on /api/*.
	Secret string

	// RequestRate limits uploads and queries per second; Burst is the
	// bucket size. Zero uses the defaults.
	RequestRate float64
	Burst       int

	// Metrics serves /metrics. Nil uses the default Prometheus registry.
	Metrics http.Handler
	Logger  *slog.Logger
}

const (
	defaultRequestRate = 2
	defaultBurst       = 5
	maxUploadBytes     = 32 << 20
)

// Server is the HTTP API.
type Server struct {
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter
	hub     *Hub
	handler http.Handler

	mu     sync.RWMutex
	server *http.Server
	ln     net.Listener
}

// New builds the API and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "httpapi")

	if opts.Documents == nil {
		opts.Documents = documentFunc(processing.ParseDocument)
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	if opts.RequestRate <= 0 {
		opts.RequestRate = defaultRequestRate
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}

	s := &Server{
		opts:    opts,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestRate), opts.Burst),
		hub:     NewHub(logger),
	}
	if opts.Events != nil {
		s.hub.Attach(opts.Events)
	}
	s.handler = s.routes()
	return s
}

type documentFunc func(string) processing.Document

func (f documentFunc) Parse(path string) processing.Document { return f(path) }

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()
	api.Handle("POST /api/upload", s.limited(s.handleUpload))
	api.HandleFunc("GET /api/files", s.handleFiles)
	api.Handle("POST /api/query", s.limited(s.handleQuery))
	api.HandleFunc("GET /api/servers", s.handleServers)
	api.HandleFunc("GET /api/runs", s.handleListRuns)
	api.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	api.HandleFunc("GET /api/events", s.hub.ServeHTTP)

	var protected http.Handler = api
	if s.opts.Secret != "" {
		protected = BearerAuth(s.opts.Secret)(api)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.opts.Metrics)
	mux.Handle("/api/", protected)
	return log.Middleware(s.logger)(mux)
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on addr and serves until ctx is cancelled or serving
// fails.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Queries run the full pipeline, so writes are not bounded.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("http api starting", slog.String("listen_addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown closes event streams and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()

	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	s.logger.Info("http api shutting down")
	srv.SetKeepAlivesEnabled(false)
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http api shutdown error", log.Error(err))
		return err
	}
	s.logger.Info("http api stopped")
	return nil
}

// Addr returns the listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) limited(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		h(w, r)
	})
}
