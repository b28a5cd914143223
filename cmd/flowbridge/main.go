// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the flowbridge server.
// The server exposes supervised claude-flow CLI invocations as a synchronous
// HTTP API, so the task-routing backend can run agent swarms without managing
// child processes itself.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/async-code/flowbridge/internal/api"
	"github.com/async-code/flowbridge/internal/buildinfo"
	"github.com/async-code/flowbridge/internal/config"
	"github.com/async-code/flowbridge/internal/flow"
	"github.com/async-code/flowbridge/internal/gitchanges"
	"github.com/async-code/flowbridge/internal/logging"
	"github.com/async-code/flowbridge/internal/runner"
	"github.com/async-code/flowbridge/internal/stats"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("flowbridge Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var configPath string
	var port int
	var debug bool
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "Configure File Path")
	flag.IntVar(&port, "port", 0, "Override the configured listen port")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	if showVersion {
		return
	}

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	if configPath == "" {
		configPath = filepath.Join(wd, "config.yaml")
	}
	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}
	if port > 0 {
		cfg.Port = port
	}
	if debug {
		cfg.Debug = true
	}

	logging.SetDebug(cfg.Debug)
	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return
	}

	log.Infof("flowbridge Version: %s, Commit: %s, BuiltAt: %s", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	if cfg.Flow.AnthropicAPIKey == "" {
		log.Warn("ANTHROPIC_API_KEY is not configured; swarm and hive invocations will run without a credential")
	}

	registry := stats.Global()
	execRunner := runner.NewExecRunner()
	svc := flow.NewService(cfg, execRunner, registry)
	collector := gitchanges.NewCollector(execRunner)
	server := api.NewServer(cfg, svc, collector, registry)

	ctxSignal, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	time.Sleep(100 * time.Millisecond)
	fmt.Printf("API server started successfully on: %s:%d\n", cfg.Host, cfg.Port)

	select {
	case <-ctxSignal.Done():
		log.Info("shutdown signal received, draining requests")
	case err = <-serverErr:
		if err != nil {
			log.Errorf("API server exited with error: %v", err)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err = server.Stop(shutdownCtx); err != nil {
		log.Errorf("error stopping API server: %v", err)
	}
}
