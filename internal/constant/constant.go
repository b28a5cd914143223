// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package constant defines capability and topology identifiers used throughout
// the bridge. These constants name the claude-flow operations the bridge
// supervises, ensuring consistent naming across handlers, stats, and logs.
package constant

const (
	// CapabilityCheck identifies the installation probe capability.
	CapabilityCheck = "check"

	// CapabilityInit identifies the workspace initialization capability.
	CapabilityInit = "init"

	// CapabilitySwarm identifies the swarm execution capability.
	CapabilitySwarm = "swarm"

	// CapabilityMemorySearch identifies the vector memory search capability.
	CapabilityMemorySearch = "memory-search"

	// CapabilityMemoryStore identifies the memory store capability.
	CapabilityMemoryStore = "memory-store"

	// CapabilityHiveSpawn identifies the hive-mind spawn capability.
	CapabilityHiveSpawn = "hive-spawn"

	// TopologyMesh is the fully connected swarm coordination topology.
	TopologyMesh = "mesh"

	// TopologyHierarchy is the tree-shaped swarm coordination topology.
	TopologyHierarchy = "hierarchy"

	// TopologyRing is the ring-shaped swarm coordination topology.
	TopologyRing = "ring"

	// TopologyStar is the hub-and-spoke swarm coordination topology.
	TopologyStar = "star"

	// CredentialEnvVar is the environment variable carrying the upstream
	// model credential handed to spawned claude-flow processes.
	CredentialEnvVar = "ANTHROPIC_API_KEY"

	// MaxPromptLogLength is the number of prompt characters included in log
	// lines. Prompts are truncated beyond this, never logged in full.
	MaxPromptLogLength = 200
)
