// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package extract recovers structured data from free-form CLI output.
//
// Extraction is best-effort: every function is a pure mapping from output
// text to a value plus a documented fallback, and none of them can fail.
// A successful command run never becomes an error because its output did
// not parse.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/tidwall/sjson"
)

// agentCountPattern matches an integer immediately followed by the word
// "agent" or "agents", e.g. "5 agents completed".
var agentCountPattern = regexp.MustCompile(`(\d+)\s+agents?`)

// AgentCount scans swarm output for the number of agents that took part.
// The scan is case-insensitive. When no count is present, or the match is
// below one, it returns 1: an unknown swarm still ran at least one agent,
// and callers must never see zero.
func AgentCount(output string) int {
	m := agentCountPattern.FindStringSubmatch(strings.ToLower(output))
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// MemoryResults parses memory-search output into a JSON document.
//
// The CLI usually prints a JSON array, sometimes wrapped in banner lines.
// The whole trimmed output is tried first, then the outermost JSON block
// inside it. When neither parses, the raw text is wrapped as
// [{"raw_output": ...}] so the response stays structured.
func MemoryResults(output string) gojson.RawMessage {
	trimmed := strings.TrimSpace(output)
	if trimmed != "" && gojson.Valid([]byte(trimmed)) {
		return gojson.RawMessage(trimmed)
	}

	if block, ok := jsonBlock(trimmed); ok {
		return gojson.RawMessage(block)
	}

	fallback, err := sjson.Set(`[{}]`, "0.raw_output", output)
	if err != nil {
		// Unreachable with a literal base document, but degrade anyway.
		fallback = `[{"raw_output":""}]`
	}
	return gojson.RawMessage(fallback)
}

// jsonBlock slices the outermost JSON document out of noisy text: first
// opening brace or bracket to the last matching closer. Whichever opener
// appears earliest is tried first, so an array wrapping objects is kept
// whole. The slice must itself be valid JSON to count.
func jsonBlock(s string) (string, bool) {
	pairs := [2][2]string{{"[", "]"}, {"{", "}"}}
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")
	if arrStart < 0 || (objStart >= 0 && objStart < arrStart) {
		pairs[0], pairs[1] = pairs[1], pairs[0]
	}

	for _, pair := range pairs {
		start := strings.Index(s, pair[0])
		if start < 0 {
			continue
		}
		end := strings.LastIndex(s, pair[1])
		if end <= start {
			continue
		}
		block := s[start : end+1]
		if gojson.Valid([]byte(block)) {
			return block, true
		}
	}
	return "", false
}
