// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package runner

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyCommand rejects invocations with no executable name.
	ErrEmptyCommand = errors.New("runner: command name must not be empty")

	// ErrInvalidTimeout rejects invocations without a positive deadline.
	ErrInvalidTimeout = errors.New("runner: timeout must be positive")
)

// SpawnError means the child process could not be started at all, for
// example because the executable is missing from PATH. No timer ran and
// no output exists.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError means the child ran to completion with a nonzero exit status.
// Result carries everything both streams produced.
type ExitError struct {
	Code   int
	Result *Result
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.Code)
}

// TimeoutError means the child was terminated before exiting on its own:
// either the deadline elapsed, or the caller canceled the request early
// (Canceled). Result carries the partial output captured up to the kill.
type TimeoutError struct {
	Timeout  time.Duration
	Elapsed  time.Duration
	Canceled bool
	Result   *Result
}

func (e *TimeoutError) Error() string {
	if e.Canceled {
		return fmt.Sprintf("command canceled after %.1fs", e.Elapsed.Seconds())
	}
	return fmt.Sprintf("command timed out after %gs", e.Timeout.Seconds())
}
