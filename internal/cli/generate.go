package cli

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/promptforge/internal/engine"
	"github.com/roach88/promptforge/internal/store"
)

// Generation count bounds for --count.
const (
	minCount = 1
	maxCount = 10
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Entry     string
	Target    string
	Seed      string
	Count     int
	Detailed  bool
	Locks     []string // rule=value, applied to this run only
	Vars      []string // name=value context variables
	NoPersist bool
	SaveSeed  bool
}

// GenerateOutput is one generated prompt.
type GenerateOutput struct {
	ID       string           `json:"id,omitempty"`
	Seq      int64            `json:"seq,omitempty"`
	Raw      string           `json:"raw"`
	Readable string           `json:"readable,omitempty"`
	Segments []engine.Segment `json:"segments,omitempty"`
}

// GenerateResult is the payload of the generate command.
type GenerateResult struct {
	Bundle  string           `json:"bundle"`
	Seed    string           `json:"seed,omitempty"`
	Entry   string           `json:"entry,omitempty"`
	Target  string           `json:"target,omitempty"`
	Outputs []GenerateOutput `json:"outputs"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate <bundle>",
		Short: "Generate prompts from a bundle",
		Long: `Expand a bundle's entry point and print the resulting prompt.

Locks stored with the lock command are applied, and every generation is
appended to the history unless --no-persist is given. The seed comes from
--seed, then the seed saved with --save-seed, then $PROMPTGEN_SEED; without
any of them, output is random.

Examples:
  promptforge generate scifi
  promptforge generate scifi --seed demo --count 3
  promptforge generate scifi --entry "#hull# hull" --var fuel=20
  promptforge generate scifi --target sd --lock engine=plasma
  promptforge generate scifi --detailed --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entry, "entry", "", "entry rule or inline template (default entry_points.default)")
	cmd.Flags().StringVar(&opts.Target, "target", "", "render a targeting template instead of the grammar")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "seed for reproducible output")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of prompts to generate (1-10)")
	cmd.Flags().BoolVar(&opts.Detailed, "detailed", false, "include the readable prompt and segments")
	cmd.Flags().StringArrayVar(&opts.Locks, "lock", nil, "lock rule=value for this run (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "set context variable name=value (repeatable)")
	cmd.Flags().BoolVar(&opts.NoPersist, "no-persist", false, "do not record the generation in history")
	cmd.Flags().BoolVar(&opts.SaveSeed, "save-seed", false, "remember --seed for later runs (an empty --seed clears it)")

	return cmd
}

func runGenerate(opts *GenerateOptions, bundle string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if opts.Count < minCount || opts.Count > maxCount {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs,
			fmt.Sprintf("--count must be between %d and %d, got %d", minCount, maxCount, opts.Count), nil)
	}
	if opts.Detailed && opts.Target != "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "--detailed does not apply to --target", nil)
	}
	if opts.Entry != "" && opts.Target != "" {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, "--entry and --target are mutually exclusive", nil)
	}
	locks, err := parseAssignments("--lock", opts.Locks)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, err.Error(), nil)
	}
	vars, err := parseAssignments("--var", opts.Vars)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, err.Error(), nil)
	}

	s, err := openSession(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if err := s.use(ctx, f, bundle); err != nil {
		return err
	}
	for rule, value := range locks {
		s.engine.SetOverride(rule, value)
	}

	seed, err := resolveSeed(ctx, opts, s)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to resolve seed", err)
	}
	if seed != "" {
		s.engine.SetSeed(seed)
		f.VerboseLog("Seeded with %q", seed)
	}

	genOpts := engine.GenerateOptions{
		EntryPoint: opts.Entry,
		Target:     opts.Target,
		Context:    contextValues(vars),
	}

	result := GenerateResult{
		Bundle:  bundle,
		Seed:    seed,
		Entry:   opts.Entry,
		Target:  opts.Target,
		Outputs: make([]GenerateOutput, 0, opts.Count),
	}
	for i := 0; i < opts.Count; i++ {
		out, err := generateOnce(s, bundle, genOpts, opts.Detailed)
		if err != nil {
			if engine.IsTargetNotFound(err) {
				return f.Fail(ExitCommandError, ErrCodeTargetNotFound, err.Error(), nil)
			}
			return f.Fail(ExitCommandError, ErrCodeGenerateFailed, err.Error(), nil)
		}

		if !opts.NoPersist {
			gen, err := s.store.RecordGeneration(ctx, store.Generation{
				Bundle:     bundle,
				BundleHash: s.hash(bundle),
				Seed:       seed,
				Seeded:     seed != "",
				Entry:      opts.Entry,
				Target:     opts.Target,
				Overrides:  s.engine.Overrides(),
				Raw:        out.Raw,
				Readable:   out.Readable,
				Segments:   out.Segments,
			})
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeStore, "failed to record generation", err)
			}
			out.ID = gen.ID
			out.Seq = gen.Seq
		}
		result.Outputs = append(result.Outputs, out)
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	return outputGenerateText(f, result, opts.Detailed)
}

// resolveSeed picks the seed for this run and saves it when asked to.
func resolveSeed(ctx context.Context, opts *GenerateOptions, s *session) (string, error) {
	if opts.SaveSeed {
		if err := s.store.SetSeed(ctx, opts.Seed); err != nil {
			return "", err
		}
	}
	if opts.Seed != "" {
		return opts.Seed, nil
	}
	saved, ok, err := s.store.Seed(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		return saved, nil
	}
	return opts.Config.Seed, nil
}

func generateOnce(s *session, bundle string, opts engine.GenerateOptions, detailed bool) (GenerateOutput, error) {
	if !detailed {
		raw, err := s.engine.Generate(bundle, opts)
		return GenerateOutput{Raw: raw}, err
	}
	res, err := s.engine.GenerateDetailed(bundle, opts)
	if err != nil {
		return GenerateOutput{}, err
	}
	return GenerateOutput{Raw: res.Raw, Readable: res.Readable, Segments: res.Segments}, nil
}

func outputGenerateText(f *OutputFormatter, result GenerateResult, detailed bool) error {
	w := f.Writer
	for i, out := range result.Outputs {
		if !detailed {
			fmt.Fprintln(w, out.Raw)
			continue
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "=== Prompt %d ===\n", i+1)
		fmt.Fprintf(w, "Raw:      %s\n", out.Raw)
		fmt.Fprintf(w, "Readable: %s\n", out.Readable)
		for _, seg := range out.Segments {
			slot := "-"
			if seg.Meta != nil && seg.Meta.Slot != "" {
				slot = seg.Meta.Slot
			}
			fmt.Fprintf(w, "  %-12s %-10s %s\n", seg.Key, slot, seg.Text)
		}
	}
	for _, out := range result.Outputs {
		if out.ID != "" {
			f.VerboseLog("Recorded %s (seq %d)", truncateID(out.ID), out.Seq)
		}
	}
	return nil
}

// parseAssignments parses repeated name=value flags. Later assignments to
// the same name win.
func parseAssignments(flag string, values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%s expects name=value, got %q", flag, v)
		}
		out[name] = value
	}
	return out, nil
}

// contextValues converts --var values: true/false become booleans, finite
// numeric strings become numbers, and anything else stays a string.
func contextValues(vars map[string]string) map[string]any {
	if len(vars) == 0 {
		return nil
	}
	out := make(map[string]any, len(vars))
	for name, raw := range vars {
		switch {
		case raw == "true" || raw == "false":
			out[name] = raw == "true"
		default:
			if n, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
				out[name] = n
			} else {
				out[name] = raw
			}
		}
	}
	return out
}
