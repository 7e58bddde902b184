package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/promptforge/internal/config"
	"github.com/roach88/promptforge/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	BundleDir string
	DBPath    string

	// Config is the environment configuration. Flags left empty fall back
	// to it.
	Config config.Config

	// Logger is built in the root pre-run. Commands constructed on their
	// own (tests) run with a discarding logger.
	Logger *slog.Logger

	closeLog func() error
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the promptforge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "promptforge",
		Short: "promptforge - grammar-driven prompt generation",
		Long: `Generate prompts from weighted grammar bundles.

Bundles are JSON, YAML or CUE files holding a grammar of rules, variables
and targeting templates. Locks, the seed and generation history persist in
a SQLite database between invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				f := &OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr()}
				return f.Fail(ExitCommandError, ErrCodeInvalidArgs,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			if err := opts.setup(cmd.ErrOrStderr()); err != nil {
				return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.BundleDir, "bundles", "", "bundle directory (default $PROMPTGEN_BUNDLE_DIR or ./bundles)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database (default $PROMPTGEN_DB or ./promptforge.db)")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewLockableCommand(opts))
	cmd.AddCommand(NewLockCommand(opts))
	cmd.AddCommand(NewUnlockCommand(opts))
	cmd.AddCommand(NewLocksCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewLintCommand(opts))
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// setup loads the environment configuration, fills unset flags from it and
// builds the logger.
func (o *RootOptions) setup(stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	o.Config = cfg
	if o.BundleDir == "" {
		o.BundleDir = cfg.BundleDir
	}
	if o.DBPath == "" {
		o.DBPath = cfg.DBPath
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Stderr: stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	if o.Verbose {
		logger.Level.Set(slog.LevelDebug)
	}
	o.Logger = logger.Logger
	o.closeLog = logger.Close
	return nil
}

func (o *RootOptions) teardown() error {
	if o.closeLog == nil {
		return nil
	}
	err := o.closeLog()
	o.closeLog = nil
	return err
}

// logger returns the configured logger, or one that discards everything.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
