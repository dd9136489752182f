package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seamlang/seam/internal/ir"
	"github.com/seamlang/seam/internal/validator"
)

// CheckResult holds suspension validation results.
type CheckResult struct {
	Valid       bool            `json:"valid"`
	Diagnostics []ir.Diagnostic `json:"diagnostics,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <module.cue>",
		Short: "Validate suspension placement",
		Long: `Compile a CUE module and run the static suspension validator.

Every suspension point must sit in an asynchronous context, be lexically
marked by await, and stay out of cleanup blocks and autoclosure arguments
of synchronous functions. All diagnostics are static: a module that
passes check cannot suspend illegally at run time.

Exit codes:
  0 - Module is valid
  1 - Validation produced diagnostics
  2 - Command error (file not found, compile error)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, modulePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	prog, loadErr := LoadModule(modulePath)
	if loadErr != nil {
		return outputCLIError(formatter, loadErr.Code, loadErr.Error())
	}

	formatter.VerboseLog("Validating %d function(s), %d prop(s)", len(prog.Funcs), len(prog.Props))

	diags := validator.Validate(prog)
	result := CheckResult{Valid: len(diags) == 0, Diagnostics: diags}

	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
		if !result.Valid {
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d diagnostic(s)", len(diags)))
		}
		return nil
	}

	if result.Valid {
		fmt.Fprintf(formatter.Writer, "✓ Module %q is valid\n", prog.Module)
		return nil
	}

	fmt.Fprintf(formatter.Writer, "✗ Validation failed: %d diagnostic(s)\n\n", len(diags))
	for _, d := range diags {
		fmt.Fprintf(formatter.Writer, "  %s\n", d)
	}
	fmt.Fprintln(formatter.Writer)

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d diagnostic(s)", len(diags)))
}
