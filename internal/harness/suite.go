package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// GoldenDir holds <scenario name>.golden files. Empty disables golden
	// comparison.
	GoldenDir string

	// Update rewrites golden files instead of comparing against them.
	Update bool

	// Filter is a glob matched against scenario file names without their
	// extension. Empty runs everything.
	Filter string
}

// SuiteResult summarises a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Updated        int               `json:"updated,omitempty"`
	Scenarios      []ScenarioStatus  `json:"scenarios"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioStatus is the outcome of one scenario file.
type ScenarioStatus struct {
	ScenarioPath string `json:"scenario_path"`
	Scenario     string `json:"scenario,omitempty"`
	Pass         bool   `json:"pass"`
}

// ScenarioFailure represents one failed scenario.
type ScenarioFailure struct {
	ScenarioPath string `json:"scenario_path"`
	Scenario     string `json:"scenario,omitempty"`
	Error        string `json:"error"`
}

// FindScenarios lists *.yaml and *.yml files directly inside dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenario directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario in dir.
//
// For each scenario file:
// 1. Load the scenario, resolving its bundle relative to the file
// 2. Run it via harness.Run
// 3. Compare (or rewrite) its golden snapshot when GoldenDir is set
// 4. Collect results
//
// A scenario failure never stops the suite. The returned error covers an
// unreadable directory and context cancellation.
func RunSuite(ctx context.Context, dir string, opts SuiteOptions) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Scenarios: []ScenarioStatus{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if opts.Filter != "" {
			base := filepath.Base(path)
			matched, err := filepath.Match(opts.Filter, strings.TrimSuffix(base, filepath.Ext(base)))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		result.TotalScenarios++

		name, err := runOne(path, opts, result)
		result.Scenarios = append(result.Scenarios, ScenarioStatus{ScenarioPath: path, Scenario: name, Pass: err == nil})
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioPath: path,
				Scenario:     name,
				Error:        err.Error(),
			})
			continue
		}
		result.Passed++
	}

	return result, nil
}

// runOne returns the scenario name (when it could be loaded) and the
// reason the scenario failed, if it did.
func runOne(path string, opts SuiteOptions, suite *SuiteResult) (string, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return "", fmt.Errorf("failed to load scenario: %w", err)
	}

	runResult, err := Run(scenario)
	if err != nil {
		return scenario.Name, fmt.Errorf("scenario execution failed: %w", err)
	}
	if !runResult.Pass {
		return scenario.Name, fmt.Errorf("scenario assertions failed: %s", strings.Join(runResult.Errors, "; "))
	}

	if opts.GoldenDir == "" {
		return scenario.Name, nil
	}

	got, err := Snapshot(scenario, runResult)
	if err != nil {
		return scenario.Name, fmt.Errorf("snapshot trace: %w", err)
	}
	goldenPath := filepath.Join(opts.GoldenDir, scenario.Name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0o755); err != nil {
			return scenario.Name, fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(goldenPath, got, 0o644); err != nil {
			return scenario.Name, fmt.Errorf("write golden file: %w", err)
		}
		suite.Updated++
		return scenario.Name, nil
	}

	want, err := os.ReadFile(goldenPath)
	if errors.Is(err, fs.ErrNotExist) {
		return scenario.Name, fmt.Errorf("golden file %s not found (run with --update to create it)", goldenPath)
	}
	if err != nil {
		return scenario.Name, fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), got) {
		return scenario.Name, fmt.Errorf("trace differs from golden file %s", goldenPath)
	}
	return scenario.Name, nil
}
