package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/promptforge/internal/harness"
)

func TestTestCommand_Passes(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios")
	require.NoError(t, err)

	assert.Contains(t, out, "✓ ship_voyage\n")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_JSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), "testdata/scenarios")
	require.NoError(t, err)

	var resp struct {
		Status string              `json:"status"`
		Data   harness.SuiteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "ship_voyage", resp.Data.Scenarios[0].Scenario)
}

func TestTestCommand_UpdateWritesGolden(t *testing.T) {
	golden := t.TempDir()

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		"testdata/scenarios", "--golden", golden, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ship_voyage (golden updated)")

	written, err := os.ReadFile(filepath.Join(golden, "ship_voyage.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile("testdata/scenarios/golden/ship_voyage.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))
}

func TestTestCommand_MissingGoldenFails(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}),
		"testdata/scenarios", "--golden", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ ship_voyage")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommand_NoGolden(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--no-golden")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ship_voyage\n")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--filter", "crew*")
	require.NoError(t, err)
	assert.Equal(t, "No scenarios found.\n", out)

	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--filter", "sh*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ship_voyage")
}

func TestTestCommand_CommandErrors(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]: scenarios directory not found")

	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios/ship.yaml")
	require.Error(t, err)
	assert.Contains(t, out, "not a directory")

	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--update", "--no-golden")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "mutually exclusive")
}
