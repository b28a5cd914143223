// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gin "github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/async-code/flowbridge/internal/config"
	"github.com/async-code/flowbridge/internal/flow"
	"github.com/async-code/flowbridge/internal/gitchanges"
	"github.com/async-code/flowbridge/internal/runner"
	"github.com/async-code/flowbridge/internal/stats"
)

// stubRunner satisfies runner.Runner without spawning anything. It records
// every invocation and replays a canned result or error.
type stubRunner struct {
	mu          sync.Mutex
	invocations []runner.Invocation
	result      *runner.Result
	err         error
}

func (r *stubRunner) Run(_ context.Context, inv runner.Invocation) (*runner.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, inv)
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &runner.Result{ExitCode: 0}, nil
}

func (r *stubRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.invocations)
}

func (r *stubRunner) last(t *testing.T) runner.Invocation {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.invocations) == 0 {
		t.Fatal("no invocations recorded")
	}
	return r.invocations[len(r.invocations)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		Host: "127.0.0.1",
		Port: 0,
		Flow: config.FlowConfig{
			Binary:           "npx",
			BaseArgs:         []string{"claude-flow@alpha"},
			AnthropicAPIKey:  "sk-ant-REDACTED",
			DefaultTimeoutMs: config.DefaultTimeoutMs,
			MaxTimeoutMs:     config.MaxTimeoutMs,
			GracePeriodMs:    config.DefaultGracePeriodMs,
		},
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5000"},
		MaxBodyBytes:   config.DefaultMaxBodyBytes,
	}
}

func newTestServer(t *testing.T, cfg *config.Config, r runner.Runner) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := stats.New(0)
	svc := flow.NewService(cfg, r, registry)
	return NewServer(cfg, svc, gitchanges.NewCollector(r), registry)
}

func doJSON(server *Server, method, path, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	server.engine.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, testConfig(), &stubRunner{})

	rr := doJSON(server, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rr.Code, rr.Body.String())
	}

	body := rr.Body.String()
	if got := gjson.Get(body, "status").String(); got != "success" {
		t.Errorf("status field = %q, want success", got)
	}
	if got := gjson.Get(body, "service").String(); got != "claude-flow-bridge" {
		t.Errorf("service = %q, want claude-flow-bridge", got)
	}
	if gjson.Get(body, "timestamp").String() == "" {
		t.Error("timestamp missing from health response")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestRoutesRegistered(t *testing.T) {
	testCases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/check"},
		{http.MethodGet, "/stats"},
		{http.MethodPost, "/init"},
		{http.MethodPost, "/swarm/execute"},
		{http.MethodPost, "/memory/search"},
		{http.MethodPost, "/memory/store"},
		{http.MethodPost, "/hive/spawn"},
		{http.MethodPost, "/git/changes"},
	}

	server := newTestServer(t, testConfig(), &stubRunner{})
	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := doJSON(server, tc.method, tc.path, "")
			if rr.Code == http.StatusNotFound {
				t.Errorf("route %s %s not registered", tc.method, tc.path)
			}
		})
	}
}

func TestNoRouteEnvelope(t *testing.T) {
	server := newTestServer(t, testConfig(), &stubRunner{})

	rr := doJSON(server, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if got := gjson.Get(rr.Body.String(), "status").String(); got != "error" {
		t.Errorf("status field = %q, want error", got)
	}
}

func TestCORSAllowedOriginEchoed(t *testing.T) {
	server := newTestServer(t, testConfig(), &stubRunner{})

	req := httptest.NewRequest(http.MethodOptions, "/swarm/execute", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	server.engine.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the request origin", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
	if vary := rr.Header().Values("Vary"); len(vary) == 0 {
		t.Error("Vary header missing")
	}
}

func TestCORSDisallowedOriginRejected(t *testing.T) {
	stub := &stubRunner{}
	server := newTestServer(t, testConfig(), stub)

	req := httptest.NewRequest(http.MethodPost, "/swarm/execute", strings.NewReader(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://evil.example")
	rr := httptest.NewRecorder()
	server.engine.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("Access-Control-Allow-Origin set for rejected origin")
	}
	if stub.count() != 0 {
		t.Errorf("runner invoked %d times for rejected origin, want 0", stub.count())
	}
}

func TestCORSNoOriginPassesThrough(t *testing.T) {
	server := newTestServer(t, testConfig(), &stubRunner{})

	rr := doJSON(server, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("Access-Control-Allow-Origin set without an Origin header")
	}
}

func TestBodySizeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 64
	stub := &stubRunner{}
	server := newTestServer(t, cfg, stub)

	body := `{"prompt":"` + strings.Repeat("x", 200) + `"}`
	rr := doJSON(server, http.MethodPost, "/swarm/execute", body)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413; body=%s", rr.Code, rr.Body.String())
	}
	if got := gjson.Get(rr.Body.String(), "status").String(); got != "error" {
		t.Errorf("status field = %q, want error", got)
	}
	if stub.count() != 0 {
		t.Errorf("runner invoked %d times for oversized body, want 0", stub.count())
	}
}

// blockingRunner parks inside Run until released, so admission control can
// be observed while a request is in flight.
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(_ context.Context, _ runner.Invocation) (*runner.Result, error) {
	close(r.started)
	<-r.release
	return &runner.Result{ExitCode: 0}, nil
}

func TestConcurrencyLimitRejectsOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	blocking := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	server := newTestServer(t, cfg, blocking)

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- doJSON(server, http.MethodPost, "/swarm/execute", `{"prompt":"long task"}`)
	}()
	<-blocking.started

	rr := doJSON(server, http.MethodPost, "/swarm/execute", `{"prompt":"rejected"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("overflow status = %d, want 503; body=%s", rr.Code, rr.Body.String())
	}
	if got := gjson.Get(rr.Body.String(), "message").String(); !strings.Contains(got, "concurrent") {
		t.Errorf("overflow message = %q, want mention of concurrency", got)
	}

	close(blocking.release)
	first := <-firstDone
	if first.Code != http.StatusOK {
		t.Errorf("first request status = %d, want 200; body=%s", first.Code, first.Body.String())
	}
}

func TestHealthNotSubjectToConcurrencyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrent = 1
	blocking := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	server := newTestServer(t, cfg, blocking)

	firstDone := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		firstDone <- doJSON(server, http.MethodPost, "/hive/spawn", `{"prompt":"busy"}`)
	}()
	<-blocking.started

	rr := doJSON(server, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("health status = %d during busy period, want 200", rr.Code)
	}

	close(blocking.release)
	<-firstDone
}
