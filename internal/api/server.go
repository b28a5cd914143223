// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes claude-flow invocations over HTTP. Each route maps a
// JSON body onto one typed command, hands it to the flow service, and shapes
// the result into a status/message envelope.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/async-code/flowbridge/internal/config"
	"github.com/async-code/flowbridge/internal/flow"
	"github.com/async-code/flowbridge/internal/gitchanges"
	"github.com/async-code/flowbridge/internal/logging"
	"github.com/async-code/flowbridge/internal/stats"
)

// readHeaderTimeout bounds how long a client may dribble request headers.
const readHeaderTimeout = 10 * time.Second

// Server routes bridge requests to their handlers.
type Server struct {
	cfg       *config.Config
	engine    *gin.Engine
	svc       *flow.Service
	collector *gitchanges.Collector
	registry  *stats.Registry
	redactor  *logging.Redactor

	httpServer *http.Server
}

// NewServer assembles the HTTP surface around the given flow service.
func NewServer(cfg *config.Config, svc *flow.Service, collector *gitchanges.Collector, registry *stats.Registry) *Server {
	if !cfg.Debug && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		engine:    gin.New(),
		svc:       svc,
		collector: collector,
		registry:  registry,
		redactor:  logging.NewRedactor(cfg.Flow.AnthropicAPIKey),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.Use(gin.CustomRecovery(recoveryHandler(s.redactor)))
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(requestLoggerMiddleware(s.redactor))
	s.engine.Use(corsMiddleware(s.cfg))
	s.engine.Use(bodyLimitMiddleware(s.cfg.MaxBodyBytes))

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/stats", s.handleStats)

	// Routes below may spawn a child process and honor the admission cap.
	exec := s.engine.Group("/")
	if s.cfg.MaxConcurrent > 0 {
		exec.Use(concurrencyLimitMiddleware(s.cfg.MaxConcurrent))
	}
	exec.GET("/check", s.handleCheck)
	exec.POST("/init", s.handleInit)
	exec.POST("/swarm/execute", s.handleSwarmExecute)
	exec.POST("/memory/search", s.handleMemorySearch)
	exec.POST("/memory/store", s.handleMemoryStore)
	exec.POST("/hive/spawn", s.handleHiveSpawn)
	exec.POST("/git/changes", s.handleGitChanges)

	s.engine.NoRoute(s.handleNoRoute)
}

// Start runs the HTTP server and blocks until it stops. A server closed by
// Stop returns nil.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Infof("listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down. Safe to call
// before Start.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
