package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seamlang/seam/internal/engine"
	"github.com/seamlang/seam/internal/ir"
	"github.com/seamlang/seam/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Entry    string
	Args     string // entry arguments as a JSON array
	Database string // optional - persist the trace
	Token    string // optional - fixed run token
	MaxSteps int
}

// RunOutput is the JSON payload of a completed run.
type RunOutput struct {
	Token  string          `json:"token"`
	Value  string          `json:"value,omitempty"`  // rendered result value
	Raised string          `json:"raised,omitempty"` // raised error code
	Steps  int             `json:"steps"`
	Trace  []ir.TraceEvent `json:"trace"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <module.cue>",
		Short: "Run an entry function under the handoff protocol",
		Long: `Compile, validate and run a module's entry function.

The run executes on a fresh engine. With --db, the run and its full
trace are persisted for later inspection (seam trace) and replay
verification (seam replay).

Exit codes:
  0 - Run completed with a value
  1 - Run raised an error, was cancelled, or exceeded its step quota
  2 - Command error (compile error, invalid arguments, database error)

Examples:
  seam run ./pipeline.cue
  seam run ./pipeline.cue --entry fetch --args '["https://example.com"]'
  seam run ./pipeline.cue --db ./seam.db --token run-2024-01`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Entry, "entry", "main", "entry function name")
	cmd.Flags().StringVar(&opts.Args, "args", "[]", "entry arguments as a JSON array")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (optional)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "fixed run token (defaults to a fresh UUIDv7)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "per-run evaluation step quota")

	return cmd
}

func runProgram(opts *RunOptions, modulePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Configure logging based on verbose flag
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	prog, loadErr := LoadModule(modulePath)
	if loadErr != nil {
		return outputCLIError(formatter, loadErr.Code, loadErr.Error())
	}

	args, err := parseArgsJSON(opts.Args)
	if err != nil {
		return outputCLIError(formatter, ErrCodeGeneric, fmt.Sprintf("invalid --args: %v", err))
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxSteps(opts.MaxSteps),
	}
	if opts.Token != "" {
		engineOpts = append(engineOpts, engine.WithRunTokens(engine.NewFixedGenerator(opts.Token)))
	}

	// Wire the trace sink before the engine so every event is persisted.
	var writer *store.RunWriter
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return outputCLIError(formatter, ErrCodeStoreFailed, fmt.Sprintf("opening database: %v", err))
		}
		defer st.Close()

		hash, err := ir.ProgramHash(prog)
		if err != nil {
			return outputCLIError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing program: %v", err))
		}
		token := opts.Token
		if token == "" {
			token = engine.UUIDv7Generator{}.Generate()
			engineOpts = append(engineOpts, engine.WithRunTokens(engine.NewFixedGenerator(token)))
		}
		writer, err = st.BeginRun(cmd.Context(), store.RunMeta{
			Token:       token,
			Module:      prog.Module,
			Entry:       opts.Entry,
			Args:        args,
			ProgramHash: hash,
		})
		if err != nil {
			return outputCLIError(formatter, ErrCodeStoreFailed, fmt.Sprintf("beginning run: %v", err))
		}
		engineOpts = append(engineOpts, engine.WithSink(writer))
	}

	eng, err := engine.New(prog, engineOpts...)
	if err != nil {
		var verr *engine.ValidationError
		if errors.As(err, &verr) {
			return outputDiagnostics(formatter, verr.Diags)
		}
		return outputCLIError(formatter, ErrCodeGeneric, fmt.Sprintf("creating engine: %v", err))
	}

	res, runErr := eng.Run(cmd.Context(), opts.Entry, args)
	return outputRunResult(formatter, res, runErr)
}

// outputDiagnostics reports validation diagnostics raised at engine
// construction. Same failure mode as 'seam check', same exit code.
func outputDiagnostics(formatter *OutputFormatter, diags []ir.Diagnostic) error {
	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeGeneric, "validation failed", diags)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ Validation failed: %d diagnostic(s)\n", len(diags))
		for _, d := range diags {
			fmt.Fprintf(formatter.Writer, "  %s\n", d)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d diagnostic(s)", len(diags)))
}

// outputRunResult renders the outcome of a run. The partial trace in res
// is valid even when the run failed.
func outputRunResult(formatter *OutputFormatter, res *engine.RunResult, runErr error) error {
	out := RunOutput{}
	if res != nil {
		out.Token = res.Token
		out.Steps = res.Steps
		out.Trace = res.Trace
		if runErr == nil {
			out.Value = ir.Format(res.Value)
		}
	}

	var raised *engine.RaisedError
	if errors.As(runErr, &raised) {
		out.Raised = raised.Code
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: out}
		if runErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: runErrorCode(runErr), Message: runErr.Error()}
		}
		if err := json.NewEncoder(formatter.Writer).Encode(resp); err != nil {
			return err
		}
		if runErr != nil {
			return NewExitError(ExitFailure, runErr.Error())
		}
		return nil
	}

	w := formatter.Writer
	if runErr != nil {
		if out.Raised != "" {
			fmt.Fprintf(w, "✗ Run %s raised %s\n", out.Token, out.Raised)
		} else {
			fmt.Fprintf(w, "✗ Run failed: %v\n", runErr)
		}
		printTrace(formatter, out.Trace)
		return NewExitError(ExitFailure, runErr.Error())
	}

	fmt.Fprintf(w, "✓ Run %s completed in %d step(s)\n", out.Token, out.Steps)
	fmt.Fprintf(w, "Result: %s\n", out.Value)
	printTrace(formatter, out.Trace)
	return nil
}

// printTrace renders the trace timeline in verbose text mode.
func printTrace(formatter *OutputFormatter, trace []ir.TraceEvent) {
	if !formatter.Verbose || len(trace) == 0 {
		return
	}
	w := formatter.Writer
	fmt.Fprintf(w, "\nTrace (%d events):\n", len(trace))
	for _, ev := range trace {
		formatTraceEvent(w, ev)
	}
}

// parseArgsJSON decodes a JSON array of entry arguments into IR values.
// Numbers decode through json.Number so integral values stay integers.
func parseArgsJSON(s string) ([]ir.Value, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("expected a JSON array: %w", err)
	}

	args := make([]ir.Value, len(raw))
	for i, v := range raw {
		val, err := jsonToValue(v)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		args[i] = val
	}
	return args, nil
}

// jsonToValue converts a json.Number-decoded value into an ir.Value.
func jsonToValue(v any) (ir.Value, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integral number %s", val)
		}
		return ir.Int(n), nil
	case []any:
		list := make(ir.List, len(val))
		for i, elem := range val {
			sv, err := jsonToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = sv
		}
		return list, nil
	case map[string]any:
		rec := make(ir.Rec, len(val))
		for k, elem := range val {
			sv, err := jsonToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			rec[k] = sv
		}
		return rec, nil
	default:
		return ir.FromGo(v)
	}
}

// runErrorCode extracts a stable code from a run failure.
func runErrorCode(err error) string {
	var raised *engine.RaisedError
	if errors.As(err, &raised) {
		return raised.Code
	}
	var re *engine.RunError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ErrCodeGeneric
}
