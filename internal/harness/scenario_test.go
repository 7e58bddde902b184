package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// scenarioDir creates a temp dir holding a one-rule bundle next to the
// scenario file.
func scenarioDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "b.json", `{"metadata": {"name": "b"}, "grammar": {"origin": "hello"}, "entry_points": {"default": "origin"}}`)
	return dir
}

func TestLoadScenario_Full(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ship.yaml")
	require.NoError(t, err)

	assert.Equal(t, "ship_voyage", s.Name)
	assert.Equal(t, "voyage", s.Seed)
	assert.Equal(t, filepath.Join("testdata", "bundles", "ship.json"), s.Bundle)
	require.Len(t, s.Steps, 6)

	assert.True(t, s.Steps[0].Detailed)
	require.NotNil(t, s.Steps[0].Expect)
	assert.Equal(t, "steel hull with fusion engine", *s.Steps[0].Expect)
	assert.Equal(t, "status", s.Steps[1].Entry)
	assert.Equal(t, map[string]string{"hull": "titanium"}, s.Steps[3].Lock)
	assert.Equal(t, []string{"titanium hull"}, s.Steps[3].ExpectContains)
	assert.Equal(t, "TARGET_NOT_FOUND", s.Steps[5].ExpectError)

	require.Len(t, s.Assertions, 5)
	assert.Equal(t, AssertOutputOrder, s.Assertions[0].Type)
	assert.Equal(t, 5, s.Assertions[2].Value)
	assert.Equal(t, map[string]any{"bundle": "ship", "rule": "hull"}, s.Assertions[3].Where)
}

func TestLoadScenario_EmptyExpectIsKept(t *testing.T) {
	dir := scenarioDir(t)
	path := writeFile(t, dir, "s.yaml", "name: s\nbundle: b.json\nsteps:\n  - expect: \"\"\n")

	s, err := LoadScenario(path)
	require.NoError(t, err)
	require.NotNil(t, s.Steps[0].Expect, "an explicit empty expectation differs from none")
	assert.Equal(t, "", *s.Steps[0].Expect)
}

func TestLoadScenario_AbsoluteBundlePath(t *testing.T) {
	dir := scenarioDir(t)
	abs := filepath.Join(dir, "b.json")
	other := t.TempDir()
	path := writeFile(t, other, "s.yaml", "name: s\nbundle: "+abs+"\nsteps:\n  - {}\n")

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, abs, s.Bundle)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := scenarioDir(t)
	other := t.TempDir()
	path := writeFile(t, other, "s.yaml", "name: s\nbundle: b.json\nsteps:\n  - {}\n")

	s, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "b.json"), s.Bundle)
}

func TestLoadScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", "name: s\nbundle: b.json\nstep:\n  - {}\n", "failed to parse YAML"},
		{"missing name", "bundle: b.json\nsteps:\n  - {}\n", "name is required"},
		{"missing bundle", "name: s\nsteps:\n  - {}\n", "bundle is required"},
		{"bundle not found", "name: s\nbundle: nope.json\nsteps:\n  - {}\n", "bundle file not found"},
		{"no steps", "name: s\nbundle: b.json\nsteps: []\n", "steps list is required"},
		{"entry and target", "name: s\nbundle: b.json\nsteps:\n  - {entry: a, target: b}\n", "mutually exclusive"},
		{"detailed target", "name: s\nbundle: b.json\nsteps:\n  - {target: b, detailed: true}\n", "detailed does not apply"},
		{"readable without detailed", "name: s\nbundle: b.json\nsteps:\n  - {expect_readable: x}\n", "expect_readable requires detailed"},
		{"error with expect", "name: s\nbundle: b.json\nsteps:\n  - {expect: x, expect_error: y}\n", "cannot be combined"},
		{"assertion without type", "name: s\nbundle: b.json\nsteps:\n  - {}\nassertions:\n  - text: x\n", "assertions[0]: type is required"},
		{"unknown assertion", "name: s\nbundle: b.json\nsteps:\n  - {}\nassertions:\n  - type: trace_magic\n", `unknown assertion type "trace_magic"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := scenarioDir(t)
			path := writeFile(t, dir, "s.yaml", tt.yaml)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestValidateAssertion(t *testing.T) {
	tests := []struct {
		name string
		a    Assertion
		want string
	}{
		{"contains ok", Assertion{Type: AssertOutputContains, Text: "x"}, ""},
		{"contains no text", Assertion{Type: AssertOutputContains}, "text is required for output_contains"},
		{"contains negative step", Assertion{Type: AssertOutputContains, Text: "x", Step: -1}, "step must be positive"},
		{"order ok", Assertion{Type: AssertOutputOrder, Texts: []string{"a"}}, ""},
		{"order empty", Assertion{Type: AssertOutputOrder}, "texts list is required"},
		{"count ok", Assertion{Type: AssertOutputCount, Text: "x"}, ""},
		{"count no text", Assertion{Type: AssertOutputCount}, "text is required for output_count"},
		{"count negative", Assertion{Type: AssertOutputCount, Text: "x", Count: -1}, "count must be non-negative"},
		{"variable ok", Assertion{Type: AssertVariable, Name: "v", Value: false}, ""},
		{"variable no name", Assertion{Type: AssertVariable, Value: 1}, "name is required for variable"},
		{"variable no value", Assertion{Type: AssertVariable, Name: "v"}, "value is required for variable"},
		{"state ok", Assertion{Type: AssertFinalState, Table: "t", Expect: map[string]any{"a": 1}}, ""},
		{"state no table", Assertion{Type: AssertFinalState, Expect: map[string]any{"a": 1}}, "table is required"},
		{"state no expect", Assertion{Type: AssertFinalState, Table: "t"}, "expect is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(0, &tt.a)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
