// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package extract

import (
	"testing"
)

func TestAgentCount(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   int
	}{
		{
			name:   "plain count",
			output: "5 agents completed",
			want:   5,
		},
		{
			name:   "count embedded in longer text",
			output: "Swarm initialized.\nUsing 3 agents with mesh topology.\nDone.",
			want:   3,
		},
		{
			name:   "case insensitive",
			output: "12 AGENTS spawned",
			want:   12,
		},
		{
			name:   "singular agent",
			output: "1 agent finished the task",
			want:   1,
		},
		{
			name:   "no pattern defaults to one",
			output: "task finished without incident",
			want:   1,
		},
		{
			name:   "empty output defaults to one",
			output: "",
			want:   1,
		},
		{
			name:   "zero clamps to one",
			output: "0 agents participated",
			want:   1,
		},
		{
			name:   "word agent without count defaults to one",
			output: "the agent swarm is warming up",
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AgentCount(tt.output); got != tt.want {
				t.Errorf("AgentCount(%q) = %d, want %d", tt.output, got, tt.want)
			}
		})
	}
}

func TestMemoryResults(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "clean JSON array passes through",
			output: `[{"key":"a","score":0.91}]`,
			want:   `[{"key":"a","score":0.91}]`,
		},
		{
			name:   "clean JSON object passes through",
			output: `{"matches":[]}`,
			want:   `{"matches":[]}`,
		},
		{
			name:   "surrounding whitespace trimmed",
			output: "\n  [1,2,3]  \n",
			want:   `[1,2,3]`,
		},
		{
			name:   "banner noise around an array",
			output: "Searching vector store...\n[{\"key\":\"a\"}]\nDone in 0.2s",
			want:   `[{"key":"a"}]`,
		},
		{
			name:   "array wrapping objects stays whole",
			output: `noise [{"a":1},{"b":2}] trailing`,
			want:   `[{"a":1},{"b":2}]`,
		},
		{
			name:   "plain text wraps as raw output",
			output: "not valid json",
			want:   `[{"raw_output":"not valid json"}]`,
		},
		{
			name:   "empty output wraps as raw output",
			output: "",
			want:   `[{"raw_output":""}]`,
		},
		{
			name:   "broken JSON wraps as raw output",
			output: `{"key": unterminated`,
			want:   `[{"raw_output":"{\"key\": unterminated"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(MemoryResults(tt.output)); got != tt.want {
				t.Errorf("MemoryResults(%q) = %s, want %s", tt.output, got, tt.want)
			}
		})
	}
}
