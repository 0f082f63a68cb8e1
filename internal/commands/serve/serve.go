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

// Package serve runs the HTTP API and issues tokens for it.
package serve

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/httpapi"
	"github.com/tombee/squash/internal/log"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	host      string
	port      int
	noHistory bool
	rate      float64
	burst     int

	app shared.AppOptions
	// ready receives the listen address once serving. Tests set it.
	ready chan<- string
}

// NewCommand creates the serve command.
func NewCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Annotations: map[string]string{
			"group": "server",
		},
		Long: `Serve exposes the pipeline over HTTP on WEB_HOST:WEB_PORT.

Endpoints:
  GET  /health          Liveness and mock mode
  GET  /metrics         Prometheus metrics
  POST /api/upload      Upload a document (multipart field "file")
  GET  /api/files       List uploads
  POST /api/query       Run the pipeline
  GET  /api/servers     List data sources
  GET  /api/runs        Run history
  GET  /api/runs/{id}   One run with its result
  GET  /api/events      Websocket stream of stage events

When API_SECRET is set, /api/* requires a bearer token from 'squash token'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cmd.ErrOrStderr(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "Listen host (env: WEB_HOST)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Listen port (env: WEB_PORT)")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Disable run history and /api/runs")
	cmd.Flags().Float64Var(&opts.rate, "rate", 0, "Upload and query requests per second (default 2)")
	cmd.Flags().IntVar(&opts.burst, "burst", 0, "Request burst size (default 5)")
	return cmd
}

func serve(ctx context.Context, errOut io.Writer, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	appOpts := opts.app
	appOpts.Engine = true
	appOpts.Store = !opts.noHistory
	appOpts.WatchUploads = true
	app, err := shared.NewApp(ctx, appOpts)
	if err != nil {
		return err
	}
	defer app.Close()

	s := app.Settings
	host, port := s.WebHost, s.WebPort
	if opts.host != "" {
		host = opts.host
	}
	if opts.port != 0 {
		port = opts.port
	}

	v, _, _ := shared.GetVersion()
	api := httpapi.New(httpapi.Options{
		Version:     v,
		MockMode:    s.UseMockMCP,
		Runner:      app.Engine,
		Servers:     app.Manager,
		Documents:   app.Documents,
		UploadDir:   s.UploadDir,
		Runs:        app.Store,
		Recorder:    app.Recorder,
		Events:      app.Events,
		Secret:      s.APISecret,
		RequestRate: opts.rate,
		Burst:       opts.burst,
		Metrics:     app.Tracing.MetricsHandler(),
		Logger:      app.Logger,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- api.Start(ctx, net.JoinHostPort(host, strconv.Itoa(port))) }()

	addr, err := waitForAddr(ctx, api, errCh)
	if err != nil {
		return shared.NewConfigError("failed to start HTTP API", err)
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(errOut, shared.RenderOK("Listening on http://"+addr))
		if s.APISecret == "" {
			fmt.Fprintln(errOut, shared.RenderWarn("API_SECRET is not set; /api/* is unauthenticated"))
		}
		if s.UseMockMCP {
			fmt.Fprintln(errOut, shared.RenderInfo("Mock mode: data sources return canned data"))
		}
	}
	if opts.ready != nil {
		opts.ready <- addr
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return shared.NewRunError("HTTP API failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		app.Logger.Warn("shutdown incomplete", log.Error(err))
	}
	return nil
}

// waitForAddr returns the listen address once Start has bound it.
func waitForAddr(ctx context.Context, api *httpapi.Server, errCh <-chan error) (string, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if addr := api.Addr(); addr != "" {
			return addr, nil
		}
		select {
		case err := <-errCh:
			if err == nil {
				err = fmt.Errorf("server stopped before listening")
			}
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
