package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a reproducible generation test.
// A scenario loads one bundle, pins the random source with a seed, runs a
// list of generate steps and asserts on the outputs and the final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Bundle is the path of the bundle file to load.
	// Relative paths resolve against the scenario file location.
	Bundle string `yaml:"bundle"`

	// Seed fixes the random source. Without a seed, steps can only use
	// assertions that hold for every draw.
	Seed string `yaml:"seed,omitempty"`

	// Overrides pins rules before the first step, as a user lock would.
	Overrides map[string]string `yaml:"overrides,omitempty"`

	// Context supplies per-call variables to every step. A step's own
	// context entries win over these.
	Context map[string]any `yaml:"context,omitempty"`

	// Steps are the generate calls, run in order against one engine so
	// variable writes carry over.
	Steps []Step `yaml:"steps"`

	// Assertions validate the whole trace and the final state.
	// Supported types: output_contains, output_order, output_count,
	// variable, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one generate call plus its inline expectations.
type Step struct {
	// Entry overrides the bundle's default entry point. A value containing
	// '#' is expanded as an inline template.
	Entry string `yaml:"entry,omitempty"`

	// Target renders a targeting template instead of the grammar.
	Target string `yaml:"target,omitempty"`

	// Detailed records segments and the readable prompt.
	Detailed bool `yaml:"detailed,omitempty"`

	// Context adds per-call variables for this step only.
	Context map[string]any `yaml:"context,omitempty"`

	// Lock pins rules before this step runs; Unlock releases them.
	Lock   map[string]string `yaml:"lock,omitempty"`
	Unlock []string          `yaml:"unlock,omitempty"`

	// Expect is the exact raw output.
	Expect *string `yaml:"expect,omitempty"`

	// ExpectReadable is the exact readable prompt (detailed steps only).
	ExpectReadable *string `yaml:"expect_readable,omitempty"`

	// ExpectContains lists substrings the raw output must contain.
	ExpectContains []string `yaml:"expect_contains,omitempty"`

	// ExpectError is a substring of the error the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "output_contains": some step's output contains Text
	// - "output_order": Texts first appear in increasing step order
	// - "output_count": exactly Count steps' outputs contain Text
	// - "variable": the bundle variable Name ends with Value
	// - "final_state": query a store table and verify expected values
	Type string `yaml:"type"`

	// Text is the substring to find (output_contains, output_count).
	Text string `yaml:"text,omitempty"`

	// Step restricts output_contains to one step (1-based). Zero means any.
	Step int `yaml:"step,omitempty"`

	// Texts is the expected order (output_order).
	Texts []string `yaml:"texts,omitempty"`

	// Count is the expected number of matching steps (output_count).
	Count int `yaml:"count,omitempty"`

	// Name and Value describe the expected variable (variable).
	Name  string `yaml:"name,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// Table is the store table name (final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected column values (final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertOutputContains = "output_contains"
	AssertOutputOrder    = "output_order"
	AssertOutputCount    = "output_count"
	AssertVariable       = "variable"
	AssertFinalState     = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. The bundle path
// resolves relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the bundle path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve before validation so the existence check sees the real path
	if scenario.Bundle != "" && !filepath.IsAbs(scenario.Bundle) && basePath != "" {
		scenario.Bundle = filepath.Join(basePath, scenario.Bundle)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if _, err := os.Stat(scenario.Bundle); os.IsNotExist(err) {
		return nil, fmt.Errorf("invalid scenario: bundle file not found: %s", scenario.Bundle)
	}

	return scenario, nil
}

// ParseScenario decodes scenario YAML without touching the filesystem.
// The bundle path is left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Bundle == "" {
		return fmt.Errorf("bundle is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Entry != "" && step.Target != "" {
			return fmt.Errorf("steps[%d]: entry and target are mutually exclusive", i)
		}
		if step.Detailed && step.Target != "" {
			return fmt.Errorf("steps[%d]: detailed does not apply to target steps", i)
		}
		if step.ExpectReadable != nil && !step.Detailed {
			return fmt.Errorf("steps[%d]: expect_readable requires detailed", i)
		}
		if step.ExpectError != "" && (step.Expect != nil || len(step.ExpectContains) > 0) {
			return fmt.Errorf("steps[%d]: expect_error cannot be combined with output expectations", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
		if a.Step < 0 {
			return fmt.Errorf("assertions[%d]: step must be positive for output_contains", index)
		}
	case AssertOutputOrder:
		if len(a.Texts) == 0 {
			return fmt.Errorf("assertions[%d]: texts list is required for output_order", index)
		}
	case AssertOutputCount:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for output_count", index)
		}
	case AssertVariable:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for variable", index)
		}
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for variable", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
