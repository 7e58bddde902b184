package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/promptforge/internal/engine"
	"github.com/roach88/promptforge/internal/loader"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Entry    string
	Seed     string
	Debounce time.Duration
}

// WatchEvent is one reload reported by the watch command.
type WatchEvent struct {
	File     string `json:"file"`
	Bundle   string `json:"bundle,omitempty"`
	Reload   int    `json:"reload"`
	Raw      string `json:"raw,omitempty"`
	Readable string `json:"readable,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Regenerate from a bundle file every time it changes",
		Long: `Load a bundle file, print a generation, then reload and print a fresh
generation each time the file is saved. Runs until interrupted.

With --seed every reload starts from the same seed, so the output only
changes when the grammar does.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entry, "entry", "", "entry rule or inline template")
	cmd.Flags().StringVar(&opts.Seed, "seed", "", "seed applied before every generation")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", loader.DefaultDebounce, "quiet period before reloading")

	return cmd
}

func runWatch(ctx context.Context, opts *WatchOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	logger := opts.logger()

	if _, err := os.Stat(path); err != nil {
		return failLoad(f, &loader.LoadError{Code: ErrCodeNotFound, Path: path, Message: "file not found", Err: err})
	}
	if !loader.IsBundleFile(path) {
		return f.Fail(ExitCommandError, ErrCodeUnsupported, fmt.Sprintf("not a bundle file: %s", path), nil)
	}

	w, err := loader.NewWatcher([]string{path}, opts.Debounce, logger)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "failed to watch file", err)
	}
	defer w.Close()

	ld := loader.New(loader.WithLogger(logger))
	eng := engine.New(engine.WithLogger(logger))

	reloads := 0
	emit := func() error {
		ev := reloadAndGenerate(ld, eng, path, opts)
		ev.Reload = reloads
		reloads++
		return outputWatchEvent(f, ev)
	}
	if err := emit(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()

	for changed := range w.Events() {
		f.VerboseLog("Changed: %s", changed)
		if err := emit(); err != nil {
			return err
		}
	}

	if err := <-done; err != nil && ctx.Err() == nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "watch failed", err)
	}
	return nil
}

// reloadAndGenerate loads path into eng, replacing the previous version,
// and generates once. Failures are reported in the event, not returned:
// a broken save should not end the watch.
func reloadAndGenerate(ld *loader.Loader, eng *engine.Engine, path string, opts *WatchOptions) WatchEvent {
	ev := WatchEvent{File: path}

	doc, err := ld.LoadFile(path)
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	name, err := eng.LoadBundle(doc.Data, "")
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	ev.Bundle = name

	if opts.Seed != "" {
		eng.SetSeed(opts.Seed)
	}
	res, err := eng.GenerateDetailed(name, engine.GenerateOptions{EntryPoint: opts.Entry})
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	ev.Raw = res.Raw
	ev.Readable = res.Readable
	return ev
}

func outputWatchEvent(f *OutputFormatter, ev WatchEvent) error {
	if f.Format == "json" {
		return f.Success(ev)
	}

	w := f.Writer
	if ev.Error != "" {
		fmt.Fprintf(w, "✗ %s\n  %s\n", ev.File, ev.Error)
		return nil
	}
	fmt.Fprintf(w, "=== %s (reload %d) ===\n", ev.Bundle, ev.Reload)
	fmt.Fprintln(w, ev.Raw)
	if ev.Readable != "" && ev.Readable != ev.Raw {
		fmt.Fprintf(w, "Readable: %s\n", ev.Readable)
	}
	return nil
}
