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

package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/squash/internal/log"
)

// Default bounds for the blocking session operations.
const (
	DefaultConnectTimeout    = 30 * time.Second
	DefaultCallTimeout       = 30 * time.Second
	DefaultDisconnectTimeout = 10 * time.Second

	// workerJoinTimeout bounds the wait for the worker goroutine after teardown.
	workerJoinTimeout = 5 * time.Second
)

// State is the connectivity state of a session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateReady        State = "ready"
	StateFailed       State = "failed"
)

// Client is the part of the mcp-go client used by a session.
// *client.Client satisfies it.
type Client interface {
	Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// DialFunc opens a started, not yet initialized, client.
type DialFunc func(ctx context.Context, cfg SessionConfig) (Client, error)

// SessionConfig configures one subprocess session.
type SessionConfig struct {
	// Name is the server name used in messages and metrics.
	Name string

	// Command, Args and Env launch the server. Args and Env values may
	// contain ${VAR} references.
	Command string
	Args    []string
	Env     map[string]string

	// CapabilityMap translates logical capabilities to remote tool names.
	CapabilityMap map[string]string

	ConnectTimeout    time.Duration
	CallTimeout       time.Duration
	DisconnectTimeout time.Duration

	// Dial overrides the stdio transport. Tests use it to connect to an
	// in-process server.
	Dial DialFunc

	Logger *slog.Logger
}

// Result is the structured outcome of a call. Failures carry an "error" key.
type Result = map[string]any

// job is one unit of work posted to the worker goroutine. Inline jobs run
// on the worker itself; others get their own goroutine so calls can be in
// flight together.
type job struct {
	inline bool
	run    func(ctx context.Context)
}

// Session is a live MCP connection to a spawned server process. A dedicated
// worker goroutine owns the connection; Connect, Call and Disconnect post
// work to it and block the caller until the work finishes or its timeout
// elapses.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	// opMu serializes Connect and Disconnect.
	opMu sync.Mutex

	mu     sync.RWMutex
	state  State
	client Client
	tools  map[string]struct{}
	jobs   chan job
	done   chan struct{}
	cancel context.CancelFunc
}

// NewSession creates a disconnected session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = DefaultDisconnectTimeout
	}
	if cfg.Dial == nil {
		cfg.Dial = DialStdio
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		logger: log.WithServer(log.WithComponent(logger, "mcp"), cfg.Name),
		state:  StateDisconnected,
	}
}

// Name returns the server name.
func (s *Session) Name() string { return s.cfg.Name }

// State returns the current connectivity state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Tools returns the discovered tool names in sorted order.
func (s *Session) Tools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolName translates a logical capability through the capability map.
func (s *Session) ToolName(capability string) string {
	if tool, ok := s.cfg.CapabilityMap[capability]; ok && tool != "" {
		return tool
	}
	return capability
}

// Connect starts the worker, launches the server and performs the MCP
// handshake and tool discovery. It blocks up to the connect timeout. On
// failure the process and the worker are torn down before returning.
func (s *Session) Connect(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.state == StateReady {
		s.mu.Unlock()
		return nil
	}
	sessCtx, cancel := context.WithCancel(context.Background())
	s.jobs = make(chan job)
	s.done = make(chan struct{})
	s.cancel = cancel
	s.state = StateConnecting
	jobs, done := s.jobs, s.done
	s.mu.Unlock()

	go s.loop(sessCtx, jobs, done)

	start := time.Now()
	reply := make(chan error, 1)
	connect := job{inline: true, run: func(wctx context.Context) {
		reply <- s.handshake(wctx)
	}}

	if err := s.post(jobs, done, connect); err != nil {
		s.fail()
		return err
	}

	timer := time.NewTimer(s.cfg.ConnectTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-reply:
	case <-timer.C:
		err = ErrConnectTimeout(s.cfg.Name, s.cfg.ConnectTimeout)
	case <-ctx.Done():
		err = ErrStartFailed(s.cfg.Name, s.cfg.Command, ctx.Err())
	}

	if err != nil {
		sessionConnects.WithLabelValues(s.cfg.Name, "failed").Inc()
		s.logger.Warn("mcp connect failed", log.Error(err), log.DurationKey, time.Since(start).Milliseconds())
		s.fail()
		return err
	}

	sessionConnects.WithLabelValues(s.cfg.Name, "ready").Inc()
	activeSessions.Inc()
	s.logger.Info("mcp server connected",
		"tools", len(s.Tools()),
		log.DurationKey, time.Since(start).Milliseconds())
	return nil
}

// handshake runs on the worker. It dials, initializes and lists tools.
func (s *Session) handshake(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	startErr := func(err error, stage string) error {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return ErrConnectTimeout(s.cfg.Name, s.cfg.ConnectTimeout).WithCause(err)
		}
		e := ErrStartFailed(s.cfg.Name, s.cfg.Command, err)
		if stage != "" && e.Code == ErrorCodeStartFailed {
			e.WithDetail(stage + ": " + err.Error())
		}
		return e
	}

	c, err := s.cfg.Dial(dialCtx, s.cfg)
	if err != nil {
		var mcpErr *MCPError
		if errors.As(err, &mcpErr) {
			return mcpErr
		}
		return startErr(err, "")
	}

	if _, err := c.Initialize(dialCtx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "squash",
				Version: ClientVersion,
			},
		},
	}); err != nil {
		_ = c.Close()
		return startErr(err, "initialize")
	}

	tools := map[string]struct{}{}
	req := mcp.ListToolsRequest{}
	for {
		res, err := c.ListTools(dialCtx, req)
		if err != nil {
			_ = c.Close()
			return startErr(err, "tools/list")
		}
		for _, t := range res.Tools {
			tools[t.Name] = struct{}{}
		}
		if res.NextCursor == "" {
			break
		}
		req.Params.Cursor = res.NextCursor
	}

	// A timeout on the caller side cancels ctx; do not publish a client
	// nobody will close.
	if ctx.Err() != nil {
		_ = c.Close()
		return ErrConnectionClosed(s.cfg.Name)
	}

	s.mu.Lock()
	s.client = c
	s.tools = tools
	s.state = StateReady
	s.mu.Unlock()
	return nil
}

// fail tears down after an unsuccessful connect and marks the session failed.
func (s *Session) fail() {
	s.teardown()
	s.mu.Lock()
	s.state = StateFailed
	s.mu.Unlock()
}

// Call invokes the tool mapped from capability and blocks up to the call
// timeout. It never returns an error: every failure is a Result with an
// "error" key. Unknown tools fail without contacting the server.
func (s *Session) Call(ctx context.Context, capability string, args map[string]any) Result {
	tool := s.ToolName(capability)

	s.mu.RLock()
	state, c, jobs, done := s.state, s.client, s.jobs, s.done
	_, known := s.tools[tool]
	s.mu.RUnlock()

	if state != StateReady || c == nil {
		return errorResult(ErrNotConnected(s.cfg.Name))
	}
	if !known {
		toolCalls.WithLabelValues(s.cfg.Name, "unknown_tool").Inc()
		return errorResult(ErrUnknownTool(s.cfg.Name, tool))
	}

	start := time.Now()
	timeout := s.cfg.CallTimeout

	type callReply struct {
		res *mcp.CallToolResult
		err error
	}
	reply := make(chan callReply, 1)
	call := job{run: func(wctx context.Context) {
		callCtx, cancel := context.WithTimeout(wctx, timeout)
		defer cancel()
		res, err := c.CallTool(callCtx, mcp.CallToolRequest{
			Params: mcp.CallToolParams{Name: tool, Arguments: args},
		})
		reply <- callReply{res: res, err: err}
	}}

	if err := s.post(jobs, done, call); err != nil {
		return errorResult(err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var out Result
	outcome := "ok"
	select {
	case r := <-reply:
		switch {
		case r.err != nil:
			outcome = "error"
			out = errorResult(r.err)
		default:
			out = ParseToolResult(r.res)
			if _, failed := out["error"]; failed {
				outcome = "tool_error"
			}
		}
	case <-timer.C:
		outcome = "timeout"
		out = errorResult(ErrCallTimeout(s.cfg.Name, tool, timeout))
	case <-ctx.Done():
		outcome = "canceled"
		out = errorResult(ctx.Err())
	case <-done:
		outcome = "closed"
		out = errorResult(ErrConnectionClosed(s.cfg.Name))
	}

	toolCalls.WithLabelValues(s.cfg.Name, outcome).Inc()
	toolCallDuration.WithLabelValues(s.cfg.Name).Observe(time.Since(start).Seconds())
	s.logger.Debug("mcp tool call",
		log.CapabilityKey, capability,
		"tool", tool,
		"outcome", outcome,
		log.DurationKey, time.Since(start).Milliseconds())
	return out
}

// Disconnect closes the client, which stops the server process, then stops
// the worker. It is a no-op on a session that never connected and safe to
// call repeatedly.
func (s *Session) Disconnect() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	jobs, done, wasReady := s.jobs, s.done, s.state == StateReady
	s.mu.RUnlock()
	if jobs == nil {
		return nil
	}

	reply := make(chan error, 1)
	closeJob := job{inline: true, run: func(context.Context) {
		reply <- s.closeClient()
	}}

	var err error
	if postErr := s.post(jobs, done, closeJob); postErr == nil {
		timer := time.NewTimer(s.cfg.DisconnectTimeout)
		select {
		case err = <-reply:
		case <-timer.C:
			s.logger.Warn("mcp disconnect timed out; closing from caller", "timeout", s.cfg.DisconnectTimeout.String())
			go func() { _ = s.closeClient() }()
		}
		timer.Stop()
	}

	s.teardown()

	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	if wasReady {
		activeSessions.Dec()
	}
	s.logger.Info("mcp server disconnected")
	return err
}

// closeClient closes and forgets the client. Safe to call concurrently.
func (s *Session) closeClient() error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.tools = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

// teardown cancels the session context and waits briefly for the worker.
func (s *Session) teardown() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.jobs = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
	case <-time.After(workerJoinTimeout):
		s.logger.Warn("mcp worker did not stop in time")
	}

	// A connect abandoned by a timeout may still have published a client.
	_ = s.closeClient()
}

// post hands a job to the worker, failing if the worker has stopped.
func (s *Session) post(jobs chan job, done chan struct{}, j job) error {
	if jobs == nil {
		return ErrNotConnected(s.cfg.Name)
	}
	select {
	case jobs <- j:
		return nil
	case <-done:
		return ErrConnectionClosed(s.cfg.Name)
	}
}

// loop is the worker. It exits when the session context is canceled.
func (s *Session) loop(ctx context.Context, jobs chan job, done chan struct{}) {
	defer close(done)
	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-jobs:
			if j.inline {
				j.run(ctx)
				continue
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				j.run(ctx)
			}()
		}
	}
}
