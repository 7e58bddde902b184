package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/promptforge/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
	GoldenDir string // defaults to <scenarios-dir>/golden
	NoGolden  bool   // assertions only
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against their bundles",
		Long: `Run YAML scenario files with the harness.

Each scenario names a bundle (relative to the scenario file), a seed and
a list of generate steps with expectations. Its trace is compared with
<golden-dir>/<scenario name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  promptforge test ./scenarios
  promptforge test ./scenarios --filter "ship-*"
  promptforge test ./scenarios --update
  promptforge test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")
	cmd.Flags().BoolVar(&opts.NoGolden, "no-golden", false, "check assertions only, skipping golden traces")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	info, err := os.Stat(scenariosDir)
	if errors.Is(err, os.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeReadFailed, "cannot access scenarios directory", err)
	}
	if !info.IsDir() {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("not a directory: %s", scenariosDir), nil)
	}
	if opts.Update && opts.NoGolden {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "--update and --no-golden are mutually exclusive", nil)
	}

	suiteOpts := harness.SuiteOptions{Update: opts.Update, Filter: opts.Filter}
	if !opts.NoGolden {
		suiteOpts.GoldenDir = opts.GoldenDir
		if suiteOpts.GoldenDir == "" {
			suiteOpts.GoldenDir = filepath.Join(scenariosDir, "golden")
		}
	}

	result, err := harness.RunSuite(cmd.Context(), scenariosDir, suiteOpts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to run scenarios", err)
	}

	if f.Format == "json" {
		return outputTestJSON(f, result)
	}
	return outputTestText(f, result, opts.Update)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(f *OutputFormatter, result *harness.SuiteResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := f.encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(f *OutputFormatter, result *harness.SuiteResult, updated bool) error {
	w := f.Writer

	if result.TotalScenarios == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	failures := make(map[string]string, len(result.Failures))
	for _, fail := range result.Failures {
		failures[fail.ScenarioPath] = fail.Error
	}
	for _, sc := range result.Scenarios {
		name := sc.Scenario
		if name == "" {
			name = filepath.Base(sc.ScenarioPath)
		}
		switch {
		case !sc.Pass:
			fmt.Fprintf(w, "✗ %s\n", name)
			fmt.Fprintf(w, "  %s\n", failures[sc.ScenarioPath])
		case updated:
			fmt.Fprintf(w, "✓ %s (golden updated)\n", name)
		default:
			fmt.Fprintf(w, "✓ %s\n", name)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.TotalScenarios)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
