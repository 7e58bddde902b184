package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/promptforge/internal/engine"
	"github.com/roach88/promptforge/internal/ir"
)

func TestRunWithGolden_ShipVoyage(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/ship.yaml")
	require.NoError(t, err)

	// Regenerate with: go test ./internal/harness -run TestRunWithGolden -update
	require.NoError(t, RunWithGolden(t, scenario))
}

func TestAssertGolden_ReusesResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/ship.yaml")
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	// AssertGolden knows only the name, so its snapshot carries no seed.
	require.NoError(t, AssertGolden(t, "ship_voyage_unseeded", result))
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/ship.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestTraceSnapshot_CanonicalForm(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "s",
		Trace: []TraceEvent{{
			Seq:  1,
			Step: 1,
			Raw:  "x & y",
			Segments: []engine.Segment{
				{Key: "origin", Text: "x & y"},
				{Key: "a", Text: "x", Meta: &ir.Meta{Slot: "subject", Priority: 0, HasPriority: true}},
			},
		}},
	}

	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"s","trace":[{"raw":"x & y","segments":[{"key":"origin","text":"x & y"},{"key":"a","meta":{"priority":0,"slot":"subject"},"text":"x"}],"seq":1,"step":1}]}`,
		string(data))
}

func TestTraceSnapshot_NonFiniteVariableFails(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "s",
		Trace:        []TraceEvent{},
		Variables:    map[string]ir.Value{"bad": ir.Number(ir.ToNumber(ir.String("nope")))},
	}
	_, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	assert.Error(t, err)
}
