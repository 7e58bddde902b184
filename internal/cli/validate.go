package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/promptforge/internal/compiler"
	"github.com/roach88/promptforge/internal/ir"
	"github.com/roach88/promptforge/internal/loader"
)

// ValidationResult holds validation results for one bundle file.
type ValidationResult struct {
	File   string                     `json:"file"`
	Bundle string                     `json:"bundle,omitempty"`
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// InventoryResult lists the prompt-visible names of one bundle.
type InventoryResult struct {
	File   string   `json:"file"`
	Bundle string   `json:"bundle"`
	Names  []string `json:"names"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a bundle file",
		Long: `Load, compile and check a bundle file without generating from it.

Reports compile errors (the bundle would not load) and authoring problems
such as unresolved #references#, rules with no selectable options and
targeting parameterMaps naming unknown rules.

Exit codes:
  0 - Bundle is valid
  1 - Validation problems were found
  2 - The file could not be read or decoded`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	doc, err := loader.New(loader.WithLogger(opts.logger())).LoadFile(path)
	if err != nil {
		return failLoad(f, err)
	}
	f.VerboseLog("Loaded %s (hash %s)", doc.Path, doc.Hash)

	result := ValidationResult{File: path}
	b, compileErr := compileDocument(doc)
	if compileErr != nil {
		result.Errors = []compiler.ValidationError{*compileErr}
	} else {
		result.Bundle = b.Name
		result.Errors = compiler.Validate(b)
	}
	result.Valid = len(result.Errors) == 0

	if result.Valid {
		return outputValidateSuccess(f, result)
	}
	return outputValidationErrors(f, result)
}

// compileDocument compiles doc, reporting a compile failure in validation
// form.
func compileDocument(doc *loader.Document) (*ir.Bundle, *compiler.ValidationError) {
	b, err := compiler.CompileBundle(doc.Data, "")
	if err == nil {
		return b, nil
	}
	var cErr *compiler.CompileError
	if errors.As(err, &cErr) {
		return nil, &compiler.ValidationError{Field: cErr.Field, Message: cErr.Message, Code: cErr.Code}
	}
	return nil, &compiler.ValidationError{Field: "$", Message: err.Error(), Code: ErrCodeCompileFailed}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(f *OutputFormatter, result ValidationResult) error {
	if f.Format == "json" {
		return f.Success(result)
	}

	fmt.Fprintf(f.Writer, "✓ %s valid (%s)\n", result.Bundle, result.File)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(f *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if f.Format == "json" {
		if err := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintf(f.Writer, "✗ Validation failed: %s\n", result.File)
	fmt.Fprintln(f.Writer)
	for _, err := range errs {
		fmt.Fprintf(f.Writer, "%s\n", err.Field)
		fmt.Fprintf(f.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// NewLintCommand creates the lint command.
func NewLintCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <dir>",
		Short: "Check that every rule carries slot metadata",
		Long: `Check every bundle in a directory for rules without a _meta marker
carrying slot and priority. Connector is optional.

The readable prompt orders and joins segments by their metadata, so rules
without it are dropped from the readable output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLint(rootOpts, args[0], cmd)
		},
	}
}

func runLint(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	results, err := forEachBundle(opts, dir, func(doc *loader.Document, b *ir.Bundle) ValidationResult {
		return ValidationResult{File: doc.Path, Bundle: b.Name, Errors: compiler.LintMetadata(b)}
	})
	if err != nil {
		return failLoad(f, err)
	}

	failed := 0
	for i := range results {
		results[i].Valid = len(results[i].Errors) == 0
		if !results[i].Valid {
			failed++
		}
	}

	if f.Format == "json" {
		if err := f.Success(results); err != nil {
			return err
		}
	} else {
		w := f.Writer
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(w, "✓ %s\n", r.File)
				continue
			}
			fmt.Fprintf(w, "✗ %s\n", r.File)
			for _, e := range r.Errors {
				fmt.Fprintf(w, "  %s: %s\n", e.Code, e.Message)
			}
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Lint Summary: %d file(s), %d with problems\n", len(results), failed)
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) with lint problems", failed))
	}
	return nil
}

// NewInventoryCommand creates the inventory command.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inventory <dir>",
		Short: "List the names each bundle exposes to #references#",
		Long: `List, per bundle, the sorted union of grammar rule names and declared
variable names: everything a #reference# in a template can resolve to.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInventory(rootOpts, args[0], cmd)
		},
	}
}

func runInventory(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var inventories []InventoryResult
	failures, err := forEachBundle(opts, dir, func(doc *loader.Document, b *ir.Bundle) ValidationResult {
		inventories = append(inventories, InventoryResult{File: doc.Path, Bundle: b.Name, Names: compiler.Inventory(b)})
		return ValidationResult{File: doc.Path, Bundle: b.Name, Valid: true}
	})
	if err != nil {
		return failLoad(f, err)
	}
	if inventories == nil {
		inventories = []InventoryResult{}
	}

	failed := 0
	for _, r := range failures {
		if !r.Valid {
			failed++
			f.VerboseLog("skipped %s: %s", r.File, r.Errors[0].Message)
		}
	}

	if f.Format == "json" {
		if err := f.Success(inventories); err != nil {
			return err
		}
	} else {
		w := f.Writer
		for i, inv := range inventories {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "=== %s (%d) ===\n", inv.Bundle, len(inv.Names))
			for _, name := range inv.Names {
				fmt.Fprintln(w, name)
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) could not be loaded", failed))
	}
	return nil
}

// forEachBundle loads and compiles every bundle file in dir and calls fn
// for each one that compiles. Files that fail to load or compile yield an
// invalid result instead. The error is non-nil only when dir cannot be
// read.
func forEachBundle(opts *RootOptions, dir string, fn func(*loader.Document, *ir.Bundle) ValidationResult) ([]ValidationResult, error) {
	paths, err := loader.FindBundleFiles(dir)
	if err != nil {
		return nil, err
	}

	ld := loader.New(loader.WithLogger(opts.logger()))
	results := make([]ValidationResult, 0, len(paths))
	for _, path := range paths {
		doc, err := ld.LoadFile(path)
		if err != nil {
			code := ErrCodeGeneric
			var loadErr *loader.LoadError
			if errors.As(err, &loadErr) {
				code = loadErr.Code
			}
			results = append(results, ValidationResult{File: path, Errors: []compiler.ValidationError{
				{Field: "$", Message: err.Error(), Code: code},
			}})
			continue
		}
		b, compileErr := compileDocument(doc)
		if compileErr != nil {
			results = append(results, ValidationResult{File: path, Errors: []compiler.ValidationError{*compileErr}})
			continue
		}
		results = append(results, fn(doc, b))
	}
	return results, nil
}
