// Command promptforge generates prompts from grammar bundles.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/promptforge/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		// Command failures are already reported in the requested format;
		// only cobra's own errors (unknown flags, bad arity) still need
		// printing.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
