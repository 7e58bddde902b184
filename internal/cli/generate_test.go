package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/promptforge/internal/ir"
	"github.com/roach88/promptforge/internal/store"
)

type generateResponse struct {
	Status string         `json:"status"`
	Data   GenerateResult `json:"data"`
	Error  *CLIError      `json:"error"`
}

func decodeGenerate(t *testing.T, out string) generateResponse {
	t.Helper()
	var resp generateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestGenerate_Default(t *testing.T) {
	out, err := execute(t, NewGenerateCommand(testOptions(t, "text")), "ship")
	require.NoError(t, err)
	assert.Equal(t, "steel hull with fusion engine\n", out)
}

func TestGenerate_EntryRuleAndInlineTemplate(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(t, NewGenerateCommand(opts), "ship", "--entry", "hull")
	require.NoError(t, err)
	assert.Equal(t, "steel\n", out)

	out, err = execute(t, NewGenerateCommand(opts), "ship", "--entry", "#engine.capitalize# drive")
	require.NoError(t, err)
	assert.Equal(t, "Fusion drive\n", out)
}

func TestGenerate_Target(t *testing.T) {
	out, err := execute(t, NewGenerateCommand(testOptions(t, "text")), "ship", "--target", "sd")
	require.NoError(t, err)
	assert.Equal(t, "steel ship, plasma drive\n", out)
}

func TestGenerate_UnknownTarget(t *testing.T) {
	out, err := execute(t, NewGenerateCommand(testOptions(t, "json")), "ship", "--target", "flux")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeGenerate(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTargetNotFound, resp.Error.Code)
	assert.Equal(t, "TARGET_NOT_FOUND: target 'flux' not found in bundle 'ship'", resp.Error.Message)
}

func TestGenerate_UnknownBundle(t *testing.T) {
	out, err := execute(t, NewGenerateCommand(testOptions(t, "text")), "ghost")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")
}

func TestGenerate_ContextVariables(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(t, NewGenerateCommand(opts), "ship", "--entry", "status")
	require.NoError(t, err)
	assert.Equal(t, "refuel\n", out)

	out, err = execute(t, NewGenerateCommand(opts), "ship", "--entry", "status", "--var", "fuel=20")
	require.NoError(t, err)
	assert.Equal(t, "launch\n", out)
}

func TestGenerate_CountSharesVariableState(t *testing.T) {
	out, err := execute(t, NewGenerateCommand(testOptions(t, "text")), "ship", "--entry", "status", "-n", "3")
	require.NoError(t, err)
	assert.Equal(t, "refuel\nlaunch\nrefuel\n", out)
}

func TestGenerate_CountBounds(t *testing.T) {
	for _, n := range []string{"0", "11"} {
		out, err := execute(t, NewGenerateCommand(testOptions(t, "text")), "ship", "--count", n)
		require.Error(t, err, "count %s", n)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "--count must be between 1 and 10")
	}
}

func TestGenerate_FlagConflicts(t *testing.T) {
	out, err := execute(t, NewGenerateCommand(testOptions(t, "text")), "ship", "--target", "sd", "--detailed")
	require.Error(t, err)
	assert.Contains(t, out, "--detailed does not apply to --target")

	out, err = execute(t, NewGenerateCommand(testOptions(t, "text")), "ship", "--target", "sd", "--entry", "hull")
	require.Error(t, err)
	assert.Contains(t, out, "mutually exclusive")

	out, err = execute(t, NewGenerateCommand(testOptions(t, "text")), "ship", "--lock", "hull")
	require.Error(t, err)
	assert.Contains(t, out, `--lock expects name=value, got "hull"`)
}

func TestGenerate_RunLocksAreNotStored(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(t, NewGenerateCommand(opts), "ship", "--lock", "hull=glass", "--lock", "engine=sail")
	require.NoError(t, err)
	assert.Equal(t, "glass hull with sail engine\n", out)

	out, err = execute(t, NewLocksCommand(opts), "ship")
	require.NoError(t, err)
	assert.Equal(t, "No locks for ship\n", out)
}

func TestGenerate_DetailedJSON(t *testing.T) {
	out, err := execute(t, NewGenerateCommand(testOptions(t, "json")), "ship", "--detailed", "--seed", "s1")
	require.NoError(t, err)

	resp := decodeGenerate(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ship", resp.Data.Bundle)
	assert.Equal(t, "s1", resp.Data.Seed)
	require.Len(t, resp.Data.Outputs, 1)

	gen := resp.Data.Outputs[0]
	assert.Equal(t, "steel hull with fusion engine", gen.Raw)
	assert.Equal(t, "steel with fusion", gen.Readable)
	require.Len(t, gen.Segments, 3)
	assert.Equal(t, "origin", gen.Segments[0].Key)
	assert.Nil(t, gen.Segments[0].Meta)
	assert.Equal(t, &ir.Meta{Slot: "engine", Connector: "with"}, gen.Segments[2].Meta)
	assert.NotEmpty(t, gen.ID)
	assert.Equal(t, int64(1), gen.Seq)
}

func TestGenerate_DetailedText(t *testing.T) {
	out, err := execute(t, NewGenerateCommand(testOptions(t, "text")), "ship", "--detailed")
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"=== Prompt 1 ===",
		"Raw:      steel hull with fusion engine",
		"Readable: steel with fusion",
		"  origin       -          steel hull with fusion engine",
		"  hull         hull       steel",
		"  engine       engine     fusion",
		"",
	}, "\n"), out)
}

func TestGenerate_SeedIsReproducible(t *testing.T) {
	opts := testOptions(t, "text")

	first, err := execute(t, NewGenerateCommand(opts), "crew", "--seed", "abc", "-n", "5")
	require.NoError(t, err)
	second, err := execute(t, NewGenerateCommand(opts), "crew", "--seed", "abc", "-n", "5")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, strings.Split(strings.TrimSpace(first), "\n"), 5)
}

func TestGenerate_SaveSeed(t *testing.T) {
	opts := testOptions(t, "text")

	seeded, err := execute(t, NewGenerateCommand(opts), "crew", "--seed", "kept", "--save-seed", "-n", "4")
	require.NoError(t, err)

	again, err := execute(t, NewGenerateCommand(opts), "crew", "-n", "4")
	require.NoError(t, err)
	assert.Equal(t, seeded, again, "saved seed applies without --seed")

	_, err = execute(t, NewGenerateCommand(opts), "crew", "--save-seed", "--no-persist")
	require.NoError(t, err)

	st, err := store.Open(opts.DBPath)
	require.NoError(t, err)
	defer st.Close()
	_, ok, err := st.Seed(t.Context())
	require.NoError(t, err)
	assert.False(t, ok, "empty --seed with --save-seed clears the saved seed")
}

func TestGenerate_RecordsHistory(t *testing.T) {
	opts := testOptions(t, "text")

	_, err := execute(t, NewLockCommand(opts), "ship", "hull", "titanium")
	require.NoError(t, err)
	_, err = execute(t, NewGenerateCommand(opts), "ship", "--seed", "h", "-n", "2")
	require.NoError(t, err)
	_, err = execute(t, NewGenerateCommand(opts), "ship", "--no-persist")
	require.NoError(t, err)
	_, err = execute(t, NewGenerateCommand(opts), "ship", "--target", "sd")
	require.NoError(t, err)

	st, err := store.Open(opts.DBPath)
	require.NoError(t, err)
	defer st.Close()

	gens, err := st.History(t.Context(), "ship", 0)
	require.NoError(t, err)
	require.Len(t, gens, 3)

	latest := gens[0]
	assert.Equal(t, int64(3), latest.Seq)
	assert.Equal(t, "sd", latest.Target)
	assert.False(t, latest.Seeded)
	assert.Equal(t, "titanium ship, plasma drive", latest.Raw)

	first := gens[2]
	assert.Equal(t, "h", first.Seed)
	assert.True(t, first.Seeded)
	assert.Equal(t, map[string]string{"hull": "titanium"}, first.Overrides)
	assert.Len(t, first.BundleHash, 64)
}

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments("--var", []string{"a=1", "b==x", " c =", "a=2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "2", "b": "=x", "c": ""}, got)

	_, err = parseAssignments("--var", []string{"=1"})
	require.Error(t, err)
}

func TestContextValues(t *testing.T) {
	assert.Nil(t, contextValues(nil))
	assert.Equal(t, map[string]any{
		"n":    20.0,
		"f":    -1.5,
		"t":    true,
		"no":   false,
		"s":    "twenty",
		"nan":  "NaN",
		"e":    "",
		"caps": "TRUE",
	}, contextValues(map[string]string{
		"n": "20", "f": "-1.5", "t": "true", "no": "false", "s": "twenty", "nan": "NaN", "e": "", "caps": "TRUE",
	}))
}
