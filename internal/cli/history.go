package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/promptforge/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
	Prune int
	ID    string
}

// HistoryResult is the payload of the history command.
type HistoryResult struct {
	Bundle      string             `json:"bundle"`
	Generations []store.Generation `json:"generations"`
	Pruned      int64              `json:"pruned,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <bundle>",
		Short: "Show recorded generations for a bundle",
		Long: `Show the generations recorded for a bundle, newest first.

With --prune N, every record except the newest N is deleted first. With
--id, a single record is shown in full, including its segments.

Examples:
  promptforge history scifi
  promptforge history scifi --limit 5 --format json
  promptforge history scifi --prune 100
  promptforge history scifi --id 0190a1b2-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of generations to show (0 for all)")
	cmd.Flags().IntVar(&opts.Prune, "prune", -1, "keep only the newest N generations")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show one generation in full")

	return cmd
}

func runHistory(opts *HistoryOptions, bundle string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if opts.Limit < 0 {
		return f.Fail(ExitCommandError, ErrCodeInvalidArgs, fmt.Sprintf("--limit must not be negative, got %d", opts.Limit), nil)
	}

	s, err := openSession(opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if _, ok := s.engine.Bundle(bundle); !ok {
		return f.Fail(ExitCommandError, ErrCodeUnknownBundle, fmt.Sprintf("bundle %q not found", bundle), nil)
	}

	if opts.ID != "" {
		return showGeneration(cmd, f, s, bundle, opts.ID)
	}

	var pruned int64
	if opts.Prune >= 0 {
		pruned, err = s.store.PruneHistory(ctx, bundle, opts.Prune)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to prune history", err)
		}
		f.VerboseLog("Pruned %d generation(s)", pruned)
	}

	gens, err := s.store.History(ctx, bundle, opts.Limit)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read history", err)
	}

	if f.Format == "json" {
		return f.Success(HistoryResult{Bundle: bundle, Generations: gens, Pruned: pruned})
	}

	w := f.Writer
	if pruned > 0 {
		fmt.Fprintf(w, "✓ Pruned %d generation(s)\n", pruned)
	}
	if len(gens) == 0 {
		fmt.Fprintf(w, "No history for %s\n", bundle)
		return nil
	}
	fmt.Fprintf(w, "=== History: %s (%d) ===\n", bundle, len(gens))
	for _, g := range gens {
		fmt.Fprintf(w, "[%d] %s %s", g.Seq, truncateID(g.ID), g.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		if g.Seeded {
			fmt.Fprintf(w, " seed=%s", g.Seed)
		}
		if g.Target != "" {
			fmt.Fprintf(w, " target=%s", g.Target)
		} else if g.Entry != "" {
			fmt.Fprintf(w, " entry=%s", g.Entry)
		}
		if len(g.Overrides) > 0 {
			fmt.Fprintf(w, " locks=%s", formatArgs(g.Overrides))
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "    %s\n", g.Raw)
	}
	return nil
}

func showGeneration(cmd *cobra.Command, f *OutputFormatter, s *session, bundle, id string) error {
	g, err := s.store.ReadGeneration(cmd.Context(), id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && g.Bundle != bundle) {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("generation %s not found in %s", id, bundle), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read generation", err)
	}

	if f.Format == "json" {
		return f.Success(g)
	}

	w := f.Writer
	fmt.Fprintf(w, "=== Generation %s ===\n", g.ID)
	fmt.Fprintf(w, "Seq:      %d\n", g.Seq)
	fmt.Fprintf(w, "Created:  %s\n", g.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Hash:     %s\n", g.BundleHash)
	if g.Seeded {
		fmt.Fprintf(w, "Seed:     %s\n", g.Seed)
	}
	if g.Entry != "" {
		fmt.Fprintf(w, "Entry:    %s\n", g.Entry)
	}
	if g.Target != "" {
		fmt.Fprintf(w, "Target:   %s\n", g.Target)
	}
	fmt.Fprintf(w, "Locks:    %s\n", formatArgs(g.Overrides))
	fmt.Fprintf(w, "Raw:      %s\n", g.Raw)
	if g.Readable != "" {
		fmt.Fprintf(w, "Readable: %s\n", g.Readable)
	}
	for _, seg := range g.Segments {
		fmt.Fprintf(w, "  %s: %s\n", seg.Key, seg.Text)
	}
	return nil
}

// truncateID shortens long record ids for display.
func truncateID(id string) string {
	if len(id) > 16 {
		return id[:8] + "..." + id[len(id)-8:]
	}
	return id
}
