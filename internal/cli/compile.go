package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seamlang/seam/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled module summary.
type CompilationResult struct {
	Module      string   `json:"module"`
	ProgramHash string   `json:"program_hash"`
	Funcs       []string `json:"funcs"` // rendered signatures, declaration order
	Props       []string `json:"props,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <module.cue>",
		Short: "Compile a CUE module to IR",
		Long: `Compile a CUE module to Seam IR.

The compiler parses the module, builds the IR, and reports the callable
surface together with the program's content hash. Compilation is purely
syntactic;
use 'seam check' for suspension validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write IR as JSON to file")

	return cmd
}

func runCompile(opts *CompileOptions, modulePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	prog, loadErr := LoadModule(modulePath)
	if loadErr != nil {
		return outputCLIError(formatter, loadErr.Code, loadErr.Error())
	}

	formatter.VerboseLog("Compiled %s", modulePath)

	hash, err := ir.ProgramHash(prog)
	if err != nil {
		return outputCLIError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing program: %v", err))
	}

	result := &CompilationResult{
		Module:      prog.Module,
		ProgramHash: hash,
	}
	for _, fn := range prog.Funcs {
		result.Funcs = append(result.Funcs, fn.Sig.String())
		formatter.VerboseLog("Compiled func: %s", fn.Sig.String())
	}
	for _, prop := range prog.Props {
		result.Props = append(result.Props, prop.Name)
		formatter.VerboseLog("Compiled prop: %s", prop.Name)
	}

	if opts.Output != "" {
		if err := writeIRToFile(prog, opts.Output); err != nil {
			return outputCLIError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled module %q: %d function(s), %d prop(s)\n\n",
		result.Module, len(result.Funcs), len(result.Props))

	if len(result.Funcs) > 0 {
		fmt.Fprintln(formatter.Writer, "Functions:")
		for _, sig := range result.Funcs {
			fmt.Fprintf(formatter.Writer, "  %s\n", sig)
		}
		fmt.Fprintln(formatter.Writer)
	}

	if len(result.Props) > 0 {
		fmt.Fprintln(formatter.Writer, "Props:")
		for _, name := range result.Props {
			fmt.Fprintf(formatter.Writer, "  %s\n", name)
		}
		fmt.Fprintln(formatter.Writer)
	}

	fmt.Fprintf(formatter.Writer, "Program hash: %s\n", result.ProgramHash)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote IR to %s\n", outputFile)
	}

	return nil
}

// outputCLIError outputs a single command error.
// Load and compile errors are command-level errors (exit code 2).
func outputCLIError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// writeIRToFile writes the compiled program to a file as indented JSON.
// Canonical JSON without indentation is used only for hashing; the file
// output is for humans.
func writeIRToFile(prog *ir.Program, filename string) error {
	data, err := json.MarshalIndent(prog, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling IR: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
