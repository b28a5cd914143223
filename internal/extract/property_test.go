package extract

import (
	"strconv"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_Extraction exercises the extractor against arbitrary CLI
// output. Extraction must stay pure, total, and structurally safe no
// matter what the external tool prints.
func TestProperty_Extraction(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("agent count is always at least one", prop.ForAll(
		func(output string) bool {
			return AgentCount(output) >= 1
		},
		gen.AnyString(),
	))

	properties.Property("agent count is a pure function of its input", prop.ForAll(
		func(output string) bool {
			return AgentCount(output) == AgentCount(output)
		},
		gen.AnyString(),
	))

	properties.Property("memory results are always valid JSON", prop.ForAll(
		func(output string) bool {
			return gojson.Valid(MemoryResults(output))
		},
		gen.AnyString(),
	))

	properties.Property("memory extraction is idempotent", prop.ForAll(
		func(output string) bool {
			once := MemoryResults(output)
			twice := MemoryResults(string(once))
			return string(once) == string(twice)
		},
		gen.AnyString(),
	))

	properties.Property("declared agent counts are recovered exactly", prop.ForAll(
		func(n int) bool {
			output := "swarm done: " + strconv.Itoa(n) + " agents completed task"
			return AgentCount(output) == n
		},
		gen.IntRange(1, 10000),
	))

	properties.TestingRun(t)
}
