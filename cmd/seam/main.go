package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/seamlang/seam/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Errors from RunE are already rendered by the formatters; only
		// cobra's own errors (unknown flags, bad arity) reach stderr here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
