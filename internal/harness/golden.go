package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/promptforge/internal/engine"
	"github.com/roach88/promptforge/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string              `json:"scenario_name"`
	Seed         string              `json:"seed,omitempty"`
	Trace        []TraceEvent        `json:"trace"`
	Variables    map[string]ir.Value `json:"variables,omitempty"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step": event.Step,
			"seq":  event.Seq,
			"raw":  event.Raw,
		}
		if event.Entry != "" {
			eventMap["entry"] = event.Entry
		}
		if event.Target != "" {
			eventMap["target"] = event.Target
		}
		if event.Readable != "" {
			eventMap["readable"] = event.Readable
		}
		if event.Segments != nil {
			eventMap["segments"] = segmentsToCanonical(event.Segments)
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.Seed != "" {
		result["seed"] = s.Seed
	}
	if len(s.Variables) > 0 {
		vars := make(map[string]any, len(s.Variables))
		for k, v := range s.Variables {
			vars[k] = v
		}
		result["variables"] = vars
	}
	return result
}

func segmentsToCanonical(segments []engine.Segment) []any {
	out := make([]any, len(segments))
	for i, seg := range segments {
		m := map[string]any{
			"key":  seg.Key,
			"text": seg.Text,
		}
		if seg.Meta != nil {
			meta := map[string]any{}
			if seg.Meta.Slot != "" {
				meta["slot"] = seg.Meta.Slot
			}
			if seg.Meta.Connector != "" {
				meta["connector"] = seg.Meta.Connector
			}
			if seg.Meta.HasPriority {
				meta["priority"] = seg.Meta.Priority
			}
			if seg.Meta.UILabel != "" {
				meta["ui_label"] = seg.Meta.UILabel
			}
			m["meta"] = meta
		}
		out[i] = m
	}
	return out
}

// Snapshot renders a scenario result as canonical JSON, the golden file
// format.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Seed:         scenario.Seed,
		Trace:        result.Trace,
		Variables:    result.Variables,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	traceJSON, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}

// AssertGolden compares an already computed result against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(&Scenario{Name: scenarioName}, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
