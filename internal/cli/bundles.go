package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

// BundleSummary describes one loaded bundle for the list command.
type BundleSummary struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Hash        string   `json:"hash,omitempty"`
	Entry       string   `json:"entry"`
	Targets     []string `json:"targets,omitempty"`
	Rules       int      `json:"rules"`
	Selected    bool     `json:"selected"`
	LockedRules int      `json:"locked_rules"`
}

// LockResult is the payload of the lock, unlock and locks commands.
type LockResult struct {
	Bundle  string            `json:"bundle"`
	Locks   map[string]string `json:"locks"`
	Cleared int64             `json:"cleared,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the bundles in the bundle directory",
		Long: `List every bundle that loads from the bundle directory, with its
entry point, targeting templates and the number of locked rules.

Files that fail to load are skipped; run with --verbose to see why.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	selected, err := s.store.Selected(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read selection", err)
	}

	summaries := make([]BundleSummary, 0, len(s.docs))
	for _, name := range s.sortedBundles() {
		b, _ := s.engine.Bundle(name)
		locks, err := s.store.LoadOverrides(ctx, name)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to load locks", err)
		}
		targets := make([]string, 0, len(b.Targeting))
		for t := range b.Targeting {
			targets = append(targets, t)
		}
		slices.Sort(targets)
		summaries = append(summaries, BundleSummary{
			Name:        name,
			Path:        s.docs[name].Path,
			Hash:        s.hash(name),
			Entry:       b.EntryPoints.Default,
			Targets:     targets,
			Rules:       len(b.RuleOrder),
			Selected:    name == selected,
			LockedRules: len(locks),
		})
	}

	if f.Format == "json" {
		return f.Success(summaries)
	}

	w := f.Writer
	fmt.Fprintf(w, "=== Bundles (%d) ===\n", len(summaries))
	for _, b := range summaries {
		marker := " "
		if b.Selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  entry=%s rules=%d", marker, b.Name, b.Entry, b.Rules)
		if len(b.Targets) > 0 {
			fmt.Fprintf(w, " targets=%s", strings.Join(b.Targets, ","))
		}
		if b.LockedRules > 0 {
			fmt.Fprintf(w, " locked=%d", b.LockedRules)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// NewLockableCommand creates the lockable command.
func NewLockableCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lockable <bundle>",
		Short: "List the rules of a bundle that can be locked",
		Long: `List, in authored order, the rules a value can be pinned for.

uiConfig.lockable restricts the list and uiConfig.lockableExclude removes
rules from it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLockable(rootOpts, args[0], cmd)
		},
	}
}

func runLockable(opts *RootOptions, bundle string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.use(cmd.Context(), f, bundle); err != nil {
		return err
	}
	rules := s.engine.LockableRules(bundle)
	if rules == nil {
		rules = []string{}
	}

	if f.Format == "json" {
		return f.Success(rules)
	}
	locks := s.engine.Overrides()
	for _, r := range rules {
		if v, ok := locks[r]; ok {
			fmt.Fprintf(f.Writer, "%s (locked: %s)\n", r, v)
			continue
		}
		fmt.Fprintln(f.Writer, r)
	}
	return nil
}

// NewLockCommand creates the lock command.
func NewLockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lock <bundle> <rule> <value>",
		Short: "Pin a rule to a fixed value",
		Long: `Pin a rule so every generation outputs value in its place.

The lock is stored in the database and applies to later generate runs
until it is removed with unlock. The rule need not be lockable, but a
warning is printed when it is not.`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLock(rootOpts, args[0], args[1], args[2], cmd)
		},
	}
}

func runLock(opts *RootOptions, bundle, rule, value string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if err := s.use(ctx, f, bundle); err != nil {
		return err
	}
	if !slices.Contains(s.engine.LockableRules(bundle), rule) {
		opts.logger().Warn("locking a rule that is not lockable", "bundle", bundle, "rule", rule)
		fmt.Fprintf(f.GetErrWriter(), "warning: rule %q is not lockable in %s\n", rule, bundle)
	}
	if err := s.store.SetOverride(ctx, bundle, rule, value); err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to save lock", err)
	}
	return outputLocks(ctx, f, s, bundle, 0, fmt.Sprintf("✓ Locked %s = %s", rule, value))
}

// NewUnlockCommand creates the unlock command.
func NewUnlockCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "unlock <bundle> [rule]",
		Short:         "Remove one lock, or every lock of a bundle",
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rule := ""
			if len(args) == 2 {
				rule = args[1]
			}
			return runUnlock(rootOpts, args[0], rule, cmd)
		},
	}
}

func runUnlock(opts *RootOptions, bundle, rule string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if err := s.use(ctx, f, bundle); err != nil {
		return err
	}

	if rule == "" {
		n, err := s.store.ClearOverrides(ctx, bundle)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to clear locks", err)
		}
		return outputLocks(ctx, f, s, bundle, n, fmt.Sprintf("✓ Cleared %d lock(s)", n))
	}

	removed, err := s.store.ClearOverride(ctx, bundle, rule)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to clear lock", err)
	}
	if !removed {
		return outputLocks(ctx, f, s, bundle, 0, fmt.Sprintf("%s was not locked", rule))
	}
	return outputLocks(ctx, f, s, bundle, 1, fmt.Sprintf("✓ Unlocked %s", rule))
}

// NewLocksCommand creates the locks command.
func NewLocksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "locks <bundle>",
		Short:         "Show the locks stored for a bundle",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocks(rootOpts, args[0], cmd)
		},
	}
}

func runLocks(opts *RootOptions, bundle string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := openSession(opts, f)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if err := s.use(ctx, f, bundle); err != nil {
		return err
	}
	return outputLocks(ctx, f, s, bundle, 0, "")
}

// outputLocks prints headline followed by the bundle's stored locks.
func outputLocks(ctx context.Context, f *OutputFormatter, s *session, bundle string, cleared int64, headline string) error {
	locks, err := s.store.LoadOverrides(ctx, bundle)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to load locks", err)
	}

	if f.Format == "json" {
		return f.Success(LockResult{Bundle: bundle, Locks: locks, Cleared: cleared})
	}

	w := f.Writer
	if headline != "" {
		fmt.Fprintln(w, headline)
	}
	if len(locks) == 0 {
		fmt.Fprintf(w, "No locks for %s\n", bundle)
		return nil
	}
	fmt.Fprintf(w, "=== Locks: %s ===\n", bundle)
	fmt.Fprintln(w, formatArgs(locks))
	return nil
}

// formatArgs formats a string map as "key=value" pairs in sorted key
// order.
func formatArgs(args map[string]string) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, args[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
