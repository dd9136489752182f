package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/seamlang/seam/internal/ir"
	"github.com/seamlang/seam/internal/store"
	"github.com/seamlang/seam/internal/tracefilter"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Run      string
	Kind     string
	Func     string
	Call     string
	Context  string
	Since    int64
	Until    int64
}

// TraceOutput is the JSON payload of a trace query.
type TraceOutput struct {
	Run    string          `json:"run"`
	Events []ir.TraceEvent `json:"events"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Query a persisted run trace",
		Long: `Query the trace of a persisted run.

Filters combine with AND semantics and compile to a single SQL query
against the trace store. Without --run the command lists stored runs
instead of printing events.

Examples:
  seam trace --db ./seam.db
  seam trace --db ./seam.db --run run-2024-01
  seam trace --db ./seam.db --run run-2024-01 --kind HANDOFF_OUT
  seam trace --db ./seam.db --run run-2024-01 --func fetch --since 3 --until 9`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run token to query")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter by event kind (CALL, HANDOFF_OUT, RESUME, HANDOFF_BACK, COMPLETE, ERROR, CANCEL)")
	cmd.Flags().StringVar(&opts.Func, "func", "", "filter by function signature")
	cmd.Flags().StringVar(&opts.Call, "call", "", "filter by call identity")
	cmd.Flags().StringVar(&opts.Context, "context", "", "filter by source or target context")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "minimum sequence number")
	cmd.Flags().Int64Var(&opts.Until, "until", 0, "maximum sequence number (0 = no limit)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return outputCLIError(formatter, ErrCodeStoreFailed, fmt.Sprintf("opening database: %v", err))
	}
	defer st.Close()

	if opts.Run == "" {
		return outputRunList(formatter, st, cmd)
	}

	filter, err := buildFilter(opts)
	if err != nil {
		return outputCLIError(formatter, ErrCodeGeneric, err.Error())
	}

	events, err := st.FilteredTrace(cmd.Context(), opts.Run, filter)
	if err != nil {
		return outputCLIError(formatter, ErrCodeStoreFailed, fmt.Sprintf("querying trace: %v", err))
	}

	if formatter.Format == "json" {
		return formatter.Success(TraceOutput{Run: opts.Run, Events: events})
	}

	w := formatter.Writer
	if len(events) == 0 {
		fmt.Fprintf(w, "No events for run %s match the filter\n", opts.Run)
		return nil
	}
	fmt.Fprintf(w, "Run %s: %d event(s)\n", opts.Run, len(events))
	for _, ev := range events {
		formatTraceEvent(w, ev)
	}
	return nil
}

// outputRunList prints the stored runs when no token was given.
func outputRunList(formatter *OutputFormatter, st *store.Store, cmd *cobra.Command) error {
	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return outputCLIError(formatter, ErrCodeStoreFailed, fmt.Sprintf("listing runs: %v", err))
	}

	if formatter.Format == "json" {
		return formatter.Success(runs)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored")
		return nil
	}
	fmt.Fprintf(w, "%d run(s):\n", len(runs))
	for _, r := range runs {
		fmt.Fprintf(w, "  %s  %s.%s  (started %s)\n", r.Token, r.Module, r.Entry, r.StartedAt)
	}
	return nil
}

// buildFilter assembles the AND of every filter flag that was set.
func buildFilter(opts *TraceOptions) (tracefilter.Filter, error) {
	var parts []tracefilter.Filter
	if opts.Kind != "" {
		kind := ir.TraceKind(opts.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown event kind %q", opts.Kind)
		}
		parts = append(parts, tracefilter.KindIs{Kind: kind})
	}
	if opts.Func != "" {
		parts = append(parts, tracefilter.FuncIs{Func: opts.Func})
	}
	if opts.Call != "" {
		parts = append(parts, tracefilter.CallIs{CallID: opts.Call})
	}
	if opts.Context != "" {
		parts = append(parts, tracefilter.ContextIs{Context: opts.Context})
	}
	if opts.Since > 0 {
		parts = append(parts, tracefilter.SeqAtLeast{Seq: opts.Since})
	}
	if opts.Until > 0 {
		parts = append(parts, tracefilter.SeqAtMost{Seq: opts.Until})
	}

	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return tracefilter.And{Filters: parts}, nil
	}
}

// formatTraceEvent prints one trace event as a timeline line.
func formatTraceEvent(w io.Writer, ev ir.TraceEvent) {
	fmt.Fprintf(w, "  [%d] %s", ev.Seq, ev.Kind)
	if ev.Func != "" {
		fmt.Fprintf(w, " %s", ev.Func)
	}
	switch {
	case ev.From != "" && ev.To != "":
		fmt.Fprintf(w, " (%s -> %s)", ev.From, ev.To)
	case ev.To != "":
		fmt.Fprintf(w, " (-> %s)", ev.To)
	case ev.From != "":
		fmt.Fprintf(w, " (%s)", ev.From)
	}
	fmt.Fprintln(w)
}
