package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/promptforge/internal/engine"
	"github.com/roach88/promptforge/internal/loader"
	"github.com/roach88/promptforge/internal/store"
	"github.com/roach88/promptforge/internal/testutil"
)

// Harness runs one scenario against a fresh engine and store.
// Ids and timestamps come from deterministic generators so two runs of the
// same seeded scenario store identical history.
type Harness struct {
	store      *store.Store
	engine     *engine.Engine
	logger     *slog.Logger
	bundle     string
	bundleHash string
	seed       string
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Load and compile the bundle, then apply seed and overrides
// 3. Execute steps, recording each successful one in history
// 4. Evaluate assertions
//
// The returned error covers infrastructure failures only. Failed
// expectations and assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewSequentialIDs("gen")),
		store.WithClock(testutil.NewDeterministicClock().Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	doc, err := loader.New(loader.WithLogger(logger)).LoadFile(scenario.Bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to load bundle: %w", err)
	}

	eng := engine.New(engine.WithLogger(logger))
	name, err := eng.LoadBundle(doc.Data, "")
	if err != nil {
		return nil, fmt.Errorf("failed to compile bundle: %w", err)
	}
	eng.SelectBundle(name)

	ctx := context.Background()
	if err := st.SetSelected(ctx, name); err != nil {
		return nil, fmt.Errorf("failed to select bundle: %w", err)
	}
	if scenario.Seed != "" {
		eng.SetSeed(scenario.Seed)
		if err := st.SetSeed(ctx, scenario.Seed); err != nil {
			return nil, fmt.Errorf("failed to store seed: %w", err)
		}
	}
	if len(scenario.Overrides) > 0 {
		if err := st.SaveOverrides(ctx, name, scenario.Overrides); err != nil {
			return nil, fmt.Errorf("failed to save overrides: %w", err)
		}
	}

	h := &Harness{
		store:      st,
		engine:     eng,
		logger:     logger,
		bundle:     name,
		bundleHash: doc.Hash,
		seed:       scenario.Seed,
	}

	result := NewResult()
	if err := h.executeSteps(ctx, scenario, result); err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}
	result.Variables = eng.Variables(name)

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	assertionErrors := EvaluateAssertions(result, scenario.Assertions, actx)
	for _, errMsg := range assertionErrors {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSteps runs every step in order.
//
// Overrides live in the store and are reloaded into the engine before each
// step, the same way the CLI restores user locks between invocations.
func (h *Harness) executeSteps(ctx context.Context, scenario *Scenario, result *Result) error {
	for i, step := range scenario.Steps {
		n := i + 1

		if err := h.applyLocks(ctx, step); err != nil {
			return fmt.Errorf("step %d: %w", n, err)
		}
		overrides, err := h.store.LoadOverrides(ctx, h.bundle)
		if err != nil {
			return fmt.Errorf("step %d: load overrides: %w", n, err)
		}
		h.engine.ReplaceOverrides(overrides)

		opts := engine.GenerateOptions{
			EntryPoint: step.Entry,
			Target:     step.Target,
			Context:    mergeContext(scenario.Context, step.Context),
		}

		event := TraceEvent{Step: n, Entry: step.Entry, Target: step.Target}
		var genErr error
		if step.Detailed {
			var res *engine.Result
			res, genErr = h.engine.GenerateDetailed(h.bundle, opts)
			if genErr == nil {
				event.Raw = res.Raw
				event.Readable = res.Readable
				event.Segments = res.Segments
			}
		} else {
			event.Raw, genErr = h.engine.Generate(h.bundle, opts)
		}

		if genErr != nil {
			event.Error = genErr.Error()
			result.AddStepTrace(event)
			switch {
			case step.ExpectError == "":
				result.AddError(fmt.Sprintf("step %d: unexpected error: %v", n, genErr))
			case !strings.Contains(genErr.Error(), step.ExpectError):
				result.AddError(fmt.Sprintf("step %d: expected error containing %q, got %q", n, step.ExpectError, genErr.Error()))
			}
			h.logger.Info("step failed", "step", n, "error", genErr)
			continue
		}

		gen, err := h.store.RecordGeneration(ctx, store.Generation{
			Bundle:     h.bundle,
			BundleHash: h.bundleHash,
			Seed:       h.seed,
			Seeded:     h.seed != "",
			Entry:      step.Entry,
			Target:     step.Target,
			Overrides:  overrides,
			Raw:        event.Raw,
			Readable:   event.Readable,
			Segments:   event.Segments,
		})
		if err != nil {
			return fmt.Errorf("step %d: %w", n, err)
		}
		event.Seq = gen.Seq
		result.AddStepTrace(event)

		for _, msg := range checkStep(n, step, event) {
			result.AddError(msg)
		}

		h.logger.Info("step completed",
			"step", n,
			"generation_id", gen.ID,
			"seq", gen.Seq,
		)
	}
	return nil
}

// applyLocks persists the step's lock and unlock requests. Keys are
// applied in sorted order so the store sees a deterministic write sequence.
func (h *Harness) applyLocks(ctx context.Context, step Step) error {
	for _, rule := range slices.Sorted(maps.Keys(step.Lock)) {
		if err := h.store.SetOverride(ctx, h.bundle, rule, step.Lock[rule]); err != nil {
			return fmt.Errorf("lock %s: %w", rule, err)
		}
	}
	for _, rule := range step.Unlock {
		if _, err := h.store.ClearOverride(ctx, h.bundle, rule); err != nil {
			return fmt.Errorf("unlock %s: %w", rule, err)
		}
	}
	return nil
}

// checkStep compares a successful step against its inline expectations.
func checkStep(n int, step Step, event TraceEvent) []string {
	var errs []string
	if step.ExpectError != "" {
		errs = append(errs, fmt.Sprintf("step %d: expected error containing %q, got output %q", n, step.ExpectError, event.Raw))
	}
	if step.Expect != nil && *step.Expect != event.Raw {
		errs = append(errs, fmt.Sprintf("step %d: expected output %q, got %q", n, *step.Expect, event.Raw))
	}
	if step.ExpectReadable != nil && *step.ExpectReadable != event.Readable {
		errs = append(errs, fmt.Sprintf("step %d: expected readable %q, got %q", n, *step.ExpectReadable, event.Readable))
	}
	for _, want := range step.ExpectContains {
		if !strings.Contains(event.Raw, want) {
			errs = append(errs, fmt.Sprintf("step %d: expected output to contain %q, got %q", n, want, event.Raw))
		}
	}
	return errs
}

// mergeContext layers step values over scenario values. Returns nil when
// both are empty.
func mergeContext(base, step map[string]any) map[string]any {
	if len(base) == 0 && len(step) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(step))
	maps.Copy(out, base)
	maps.Copy(out, step)
	return out
}
