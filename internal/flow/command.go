// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package flow builds and executes claude-flow invocations.
//
// Each bridge capability is a distinct Command variant carrying its own
// typed parameters. The variant is resolved once at the HTTP route
// boundary; everything downstream dispatches on the value, never on
// request paths or capability strings.
package flow

import (
	"fmt"
	"strconv"
	"time"

	"github.com/async-code/flowbridge/internal/constant"
)

// Command is one capability-specific claude-flow invocation. Implementations
// are plain parameter structs; all of their methods are pure.
type Command interface {
	// Capability names the operation for logs and stats.
	Capability() string

	// Args returns the subcommand and flags, to go after the configured
	// base arguments. Optional parameters are defaulted here so a
	// zero-valued field never produces a malformed flag.
	Args() []string

	// TimeoutMs is the caller-requested deadline in milliseconds.
	// Zero means "use the capability default".
	TimeoutMs() int64

	// DefaultTimeout bounds the run when the request carries no timeout.
	// Zero defers to the configured process-wide default.
	DefaultTimeout() time.Duration

	// Dir is the requested working directory override, empty for none.
	Dir() string

	// NeedsCredential reports whether the invocation reaches the model
	// provider and therefore needs the upstream credential in its
	// environment.
	NeedsCredential() bool

	// Validate rejects malformed parameters. It runs before any process
	// is spawned; a non-nil error means no child was ever created.
	Validate() error
}

// ValidationError carries the client-facing message for a request rejected
// before any process was spawned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CheckCommand probes whether the CLI is installed by running its help
// invocation.
type CheckCommand struct{}

func (CheckCommand) Capability() string            { return constant.CapabilityCheck }
func (CheckCommand) Args() []string                { return []string{"--help"} }
func (CheckCommand) TimeoutMs() int64              { return 0 }
func (CheckCommand) DefaultTimeout() time.Duration { return 30 * time.Second }
func (CheckCommand) Dir() string                   { return "" }
func (CheckCommand) NeedsCredential() bool         { return false }
func (CheckCommand) Validate() error               { return nil }

// InitCommand initializes the claude-flow workspace.
type InitCommand struct {
	// Force re-initializes even when a workspace already exists.
	Force bool
}

func (c InitCommand) Capability() string { return constant.CapabilityInit }

func (c InitCommand) Args() []string {
	if c.Force {
		return []string{"init", "--force"}
	}
	return []string{"init"}
}

func (InitCommand) TimeoutMs() int64              { return 0 }
func (InitCommand) DefaultTimeout() time.Duration { return 2 * time.Minute }
func (InitCommand) Dir() string                   { return "" }
func (InitCommand) NeedsCredential() bool         { return false }
func (InitCommand) Validate() error               { return nil }

// SwarmCommand runs a multi-agent swarm against a prompt.
type SwarmCommand struct {
	// Prompt is the task description. Required.
	Prompt string

	// RepoPath points the swarm at a repository checkout. Optional.
	RepoPath string

	// MaxAgents caps the swarm size. Non-positive selects 5.
	MaxAgents int

	// Topology selects the coordination shape. Empty selects mesh.
	Topology string

	// RequestTimeoutMs is the caller-supplied deadline in milliseconds.
	RequestTimeoutMs int64
}

func (c SwarmCommand) Capability() string { return constant.CapabilitySwarm }

func (c SwarmCommand) Args() []string {
	maxAgents := c.MaxAgents
	if maxAgents <= 0 {
		maxAgents = 5
	}
	topology := c.Topology
	if topology == "" {
		topology = constant.TopologyMesh
	}
	return []string{
		"swarm", c.Prompt,
		"--claude",
		fmt.Sprintf("--max-agents=%d", maxAgents),
		fmt.Sprintf("--topology=%s", topology),
	}
}

func (c SwarmCommand) TimeoutMs() int64            { return c.RequestTimeoutMs }
func (SwarmCommand) DefaultTimeout() time.Duration { return 0 }
func (c SwarmCommand) Dir() string                 { return c.RepoPath }
func (SwarmCommand) NeedsCredential() bool         { return true }

func (c SwarmCommand) Validate() error {
	if c.Prompt == "" {
		return &ValidationError{Message: "Prompt is required"}
	}
	return nil
}

// MemorySearchCommand queries the claude-flow vector memory.
type MemorySearchCommand struct {
	// Query is the search text. Required.
	Query string

	// K is the number of results to return. Non-positive selects 10.
	K int

	// Threshold is the similarity floor. Non-positive selects 0.7.
	Threshold float64

	// Namespace filters the search. Empty means unfiltered.
	Namespace string
}

func (c MemorySearchCommand) Capability() string { return constant.CapabilityMemorySearch }

func (c MemorySearchCommand) Args() []string {
	k := c.K
	if k <= 0 {
		k = 10
	}
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = 0.7
	}
	args := []string{
		"memory", "vector-search", c.Query,
		fmt.Sprintf("--k=%d", k),
		"--threshold=" + strconv.FormatFloat(threshold, 'g', -1, 64),
	}
	if c.Namespace != "" {
		args = append(args, "--namespace="+c.Namespace)
	}
	return args
}

func (MemorySearchCommand) TimeoutMs() int64              { return 0 }
func (MemorySearchCommand) DefaultTimeout() time.Duration { return 30 * time.Second }
func (MemorySearchCommand) Dir() string                   { return "" }
func (MemorySearchCommand) NeedsCredential() bool         { return false }

func (c MemorySearchCommand) Validate() error {
	if c.Query == "" {
		return &ValidationError{Message: "Query is required"}
	}
	return nil
}

// MemoryStoreCommand writes an entry into claude-flow memory.
type MemoryStoreCommand struct {
	// Key identifies the entry. Required.
	Key string

	// Content is the stored text. Required.
	Content string

	// Namespace scopes the entry. Empty means the default namespace.
	Namespace string
}

func (c MemoryStoreCommand) Capability() string { return constant.CapabilityMemoryStore }

func (c MemoryStoreCommand) Args() []string {
	args := []string{"memory", "store", c.Key, c.Content}
	if c.Namespace != "" {
		args = append(args, "--namespace="+c.Namespace)
	}
	return args
}

func (MemoryStoreCommand) TimeoutMs() int64              { return 0 }
func (MemoryStoreCommand) DefaultTimeout() time.Duration { return 30 * time.Second }
func (MemoryStoreCommand) Dir() string                   { return "" }
func (MemoryStoreCommand) NeedsCredential() bool         { return false }

func (c MemoryStoreCommand) Validate() error {
	if c.Key == "" || c.Content == "" {
		return &ValidationError{Message: "Key and content are required"}
	}
	return nil
}

// HiveSpawnCommand launches a hive-mind session for a prompt.
type HiveSpawnCommand struct {
	// Prompt is the task description. Required.
	Prompt string

	// RequestTimeoutMs is the caller-supplied deadline in milliseconds.
	RequestTimeoutMs int64
}

func (c HiveSpawnCommand) Capability() string { return constant.CapabilityHiveSpawn }

func (c HiveSpawnCommand) Args() []string {
	return []string{"hive-mind", "spawn", c.Prompt, "--claude"}
}

func (c HiveSpawnCommand) TimeoutMs() int64            { return c.RequestTimeoutMs }
func (HiveSpawnCommand) DefaultTimeout() time.Duration { return 0 }
func (HiveSpawnCommand) Dir() string                   { return "" }
func (HiveSpawnCommand) NeedsCredential() bool         { return true }

func (c HiveSpawnCommand) Validate() error {
	if c.Prompt == "" {
		return &ValidationError{Message: "Prompt is required"}
	}
	return nil
}
