// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package runner executes external commands as supervised child processes.
//
// Each invocation spawns exactly one child in its own process group,
// captures stdout and stderr into independent buffers, and enforces a
// deadline with a two-stage kill: a graceful termination signal when the
// deadline elapses, then a forced one after a grace period. The child's
// lifetime is therefore bounded by timeout plus grace period, and no
// process handle outlives its invocation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultGracePeriod is the window between the graceful and the forced
// termination signal when an invocation supplies none.
const DefaultGracePeriod = 5 * time.Second

// maxLoggedCommandLength bounds the command line echoed into debug logs.
const maxLoggedCommandLength = 300

// Invocation describes one supervised command run.
type Invocation struct {
	// Name is the executable, resolved against PATH.
	Name string

	// Args is the ordered argument list, not including Name.
	Args []string

	// Dir is the working directory. Empty means the bridge's own.
	Dir string

	// Env is merged onto the parent environment before spawning. For keys
	// present in both, the overlay value wins; all other parent variables
	// pass through untouched.
	Env map[string]string

	// Timeout is the deadline for the run. It must be positive.
	Timeout time.Duration

	// GracePeriod is how long the child gets to exit after the graceful
	// signal before the forced one. Zero selects DefaultGracePeriod.
	GracePeriod time.Duration
}

// Result is the outcome of a completed or terminated run. Stdout and
// Stderr hold everything the process wrote, in write order, untruncated.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
}

// Runner executes invocations. The interface exists so handlers can be
// tested against a stub that records spawns instead of creating processes.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

// ExecRunner runs invocations as real child processes.
type ExecRunner struct{}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run spawns the invocation and blocks until it exits or is terminated.
//
// Classification of the return value:
//   - exit status 0: (*Result, nil)
//   - nonzero exit: (nil, *ExitError) carrying the exit code and both buffers
//   - deadline or caller cancellation: (nil, *TimeoutError) carrying partial output
//   - could not start at all: (nil, *SpawnError), before any timer runs
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if strings.TrimSpace(inv.Name) == "" {
		return nil, ErrEmptyCommand
	}
	if inv.Timeout <= 0 {
		return nil, ErrInvalidTimeout
	}
	grace := inv.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	cmd := exec.Command(inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = MergeEnv(os.Environ(), inv.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Own process group so termination signals reach any workers the
	// child forks, not just the child itself.
	setProcGroup(cmd)

	log.Debugf("spawning command: %s", loggableCommand(inv))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Name: inv.Name, Err: err}
	}

	runCtx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	select {
	case waitErr := <-waitCh:
		return classify(inv, &stdout, &stderr, waitErr, time.Since(start))

	case <-runCtx.Done():
		canceled := !errors.Is(runCtx.Err(), context.DeadlineExceeded)
		_ = terminateProcess(cmd)

		graceTimer := time.NewTimer(grace)
		defer graceTimer.Stop()

		select {
		case <-waitCh:
			// Exited inside the grace window; the timer is stopped above
			// and can no longer fire.
		case <-graceTimer.C:
			_ = killProcess(cmd)
			<-waitCh
		}

		elapsed := time.Since(start)
		res := &Result{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: exitCode(cmd),
			Elapsed:  elapsed,
		}
		return nil, &TimeoutError{
			Timeout:  inv.Timeout,
			Elapsed:  elapsed,
			Canceled: canceled,
			Result:   res,
		}
	}
}

// classify maps a finished Wait call onto the runner's error taxonomy.
func classify(inv Invocation, stdout, stderr *bytes.Buffer, waitErr error, elapsed time.Duration) (*Result, error) {
	res := &Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: elapsed,
	}

	if waitErr == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return nil, &ExitError{Code: res.ExitCode, Result: res}
	}

	// Wait failed without an exit status (I/O error on the pipes). Treat
	// it like a failed command so callers still see captured output.
	res.ExitCode = -1
	log.Warnf("wait failed for %s: %v", inv.Name, waitErr)
	return nil, &ExitError{Code: -1, Result: res}
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// MergeEnv layers overlay onto base. Keys declared by the overlay replace
// the ambient value in place; overlay-only keys are appended in sorted
// order so the result is deterministic.
func MergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}

	out := make([]string, 0, len(base)+len(overlay))
	replaced := make(map[string]bool, len(overlay))
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if ok {
			if v, hit := overlay[key]; hit {
				out = append(out, key+"="+v)
				replaced[key] = true
				continue
			}
		}
		out = append(out, kv)
	}

	extra := make([]string, 0, len(overlay))
	for key := range overlay {
		if !replaced[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		out = append(out, key+"="+overlay[key])
	}
	return out
}

// loggableCommand renders the command line for debug logs. Environment
// values never appear here; only the executable and its arguments do.
func loggableCommand(inv Invocation) string {
	line := inv.Name
	if len(inv.Args) > 0 {
		line += " " + strings.Join(inv.Args, " ")
	}
	if len(line) > maxLoggedCommandLength {
		line = line[:maxLoggedCommandLength] + "..."
	}
	return line
}
