// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flow

import (
	"context"
	"errors"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/async-code/flowbridge/internal/config"
	"github.com/async-code/flowbridge/internal/constant"
	"github.com/async-code/flowbridge/internal/logging"
	"github.com/async-code/flowbridge/internal/runner"
	"github.com/async-code/flowbridge/internal/stats"
)

// Service executes Commands through a Runner, applying the configured
// timeouts, working directory, and credential overlay, and recording the
// outcome. Results and errors returned by Execute have already had the
// configured credential scrubbed from their text.
type Service struct {
	cfg      *config.Config
	runner   runner.Runner
	registry *stats.Registry
	redactor *logging.Redactor
}

// NewService wires a Service. The registry may be shared with the HTTP
// layer; the redactor is derived from the configured credential.
func NewService(cfg *config.Config, r runner.Runner, registry *stats.Registry) *Service {
	return &Service{
		cfg:      cfg,
		runner:   r,
		registry: registry,
		redactor: logging.NewRedactor(cfg.Flow.AnthropicAPIKey),
	}
}

// Execute validates cmd, launches it, and blocks until the child exits or
// is terminated. Validation failures return *ValidationError before any
// process is spawned; runner failures pass through with their types intact
// so callers can map them onto HTTP statuses.
func (s *Service) Execute(ctx context.Context, cmd Command) (*runner.Result, error) {
	if err := cmd.Validate(); err != nil {
		s.registry.RecordValidationRejection()
		return nil, err
	}

	inv := runner.Invocation{
		Name:        s.cfg.Flow.Binary,
		Args:        append(append([]string{}, s.cfg.Flow.BaseArgs...), cmd.Args()...),
		Dir:         s.workingDir(cmd),
		Env:         s.credentialOverlay(cmd),
		Timeout:     s.resolveTimeout(cmd),
		GracePeriod: s.cfg.GracePeriod(),
	}

	s.registry.RecordStart(cmd.Capability())
	started := time.Now()
	res, err := s.runner.Run(ctx, inv)
	s.record(cmd.Capability(), err, time.Since(started))

	return s.redactResult(res), s.redactError(err)
}

// resolveTimeout picks the deadline: the request's own value when present,
// otherwise the capability default, otherwise the configured default. The
// configured ceiling applies in every case.
func (s *Service) resolveTimeout(cmd Command) time.Duration {
	if ms := cmd.TimeoutMs(); ms > 0 {
		return s.cfg.ClampTimeout(ms)
	}
	if d := cmd.DefaultTimeout(); d > 0 {
		if max := s.cfg.MaxTimeout(); d > max {
			return max
		}
		return d
	}
	return s.cfg.DefaultTimeout()
}

// workingDir resolves the invocation directory. A requested override must
// exist; otherwise the configured directory is used, mirroring how the
// bridge has always treated unknown repository paths.
func (s *Service) workingDir(cmd Command) string {
	if dir := cmd.Dir(); dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir
		}
		log.Warnf("requested working directory %s not found, using default", dir)
	}
	return s.cfg.Flow.WorkingDir
}

// credentialOverlay declares the upstream credential for commands that
// reach the model provider. The overlay is only populated when a credential
// is configured, so an unset key never clobbers the ambient environment.
func (s *Service) credentialOverlay(cmd Command) map[string]string {
	if !cmd.NeedsCredential() || s.cfg.Flow.AnthropicAPIKey == "" {
		return nil
	}
	return map[string]string{constant.CredentialEnvVar: s.cfg.Flow.AnthropicAPIKey}
}

func (s *Service) record(capability string, err error, elapsed time.Duration) {
	latencyMs := elapsed.Milliseconds()
	if err == nil {
		s.registry.RecordSuccess(latencyMs)
		return
	}

	var timeoutErr *runner.TimeoutError
	var exitErr *runner.ExitError
	var spawnErr *runner.SpawnError
	switch {
	case errors.As(err, &timeoutErr):
		if timeoutErr.Canceled {
			s.registry.RecordFailure(stats.FailureCanceled, latencyMs)
		} else {
			s.registry.RecordFailure(stats.FailureTimeout, latencyMs)
		}
	case errors.As(err, &exitErr):
		s.registry.RecordFailure(stats.FailureExit, latencyMs)
	case errors.As(err, &spawnErr):
		s.registry.RecordFailure(stats.FailureSpawn, 0)
	default:
		s.registry.RecordFailure(stats.FailureExit, latencyMs)
	}
}

// RecordAgents forwards an extracted agent count into the registry.
func (s *Service) RecordAgents(n int) {
	s.registry.RecordAgents(n)
}

// Redact scrubs the configured credential from s. Handlers use it for any
// text that did not pass through Execute.
func (s *Service) Redact(text string) string {
	return s.redactor.Redact(text)
}

func (s *Service) redactResult(res *runner.Result) *runner.Result {
	if res == nil {
		return nil
	}
	res.Stdout = s.redactor.Redact(res.Stdout)
	res.Stderr = s.redactor.Redact(res.Stderr)
	return res
}

// redactError scrubs the result buffers embedded in runner errors. The
// error types themselves never format the credential, so only their
// captured output needs attention.
func (s *Service) redactError(err error) error {
	if err == nil {
		return nil
	}
	var timeoutErr *runner.TimeoutError
	if errors.As(err, &timeoutErr) {
		s.redactResult(timeoutErr.Result)
	}
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		s.redactResult(exitErr.Result)
	}
	return err
}
