// Package harness runs reproducible generation scenarios.
//
// A scenario loads one bundle, fixes the random source with a seed, and
// runs generate steps against a fresh engine and in-memory store. Steps
// carry inline expectations; assertions check the whole trace and the
// final variable and store state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	bundle: ../bundles/ship.json
//	seed: "demo-seed"
//	overrides:
//	  hull: "rusted"
//	context:
//	  fuel: 50
//	steps:
//	  - expect: "rusted hull"
//	  - entry: status
//	    detailed: true
//	    lock: { engine: "ion" }
//	    expect_contains: ["ion"]
//	  - target: sd
//	    expect_error: TARGET_NOT_FOUND
//	assertions:
//	  - type: output_contains
//	    text: "hull"
//	  - type: variable
//	    name: fuel
//	    value: 40
//	  - type: final_state
//	    table: overrides
//	    where: { rule: "engine" }
//	    expect: { value: "ion" }
//
// # Assertion Types
//
//   - output_contains: some step's output (or step N's) contains a text
//   - output_order: texts first appear in the given order
//   - output_count: exactly N steps' outputs contain a text
//   - variable: a bundle variable ends with the given value
//   - final_state: queries a store table and verifies expected values
//
// # Deterministic Testing
//
// The harness uses:
//   - A seeded Mulberry32 source (from scenario.seed)
//   - Sequential generation ids (testutil.SequentialIDs)
//   - A deterministic wall clock (testutil.DeterministicClock)
//   - In-memory SQLite database (isolated per run)
//
// This ensures identical traces across runs for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/ship.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
