package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seamlang/seam/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Run      string
}

// ReplayOutcome is the JSON payload for one verified run.
type ReplayOutcome struct {
	Token      string `json:"token"`
	Events     int    `json:"events"`
	Match      bool   `json:"match"`
	Divergence string `json:"divergence,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <module.cue>",
		Short: "Re-execute stored runs and verify their traces",
		Long: `Re-execute stored runs and compare the fresh traces against the
stored ones, event by event.

The engine injects every source of nondeterminism, so an unchanged
module must reproduce each trace exactly. A module whose program hash
differs from the stored one is refused.

Exit codes:
  0 - Every verified trace matched
  1 - At least one trace diverged
  2 - Command error (compile error, unknown run, database error)

Examples:
  seam replay ./pipeline.cue --db ./seam.db
  seam replay ./pipeline.cue --db ./seam.db --run run-2024-01`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Run, "run", "", "run token to verify (default: all stored runs)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *ReplayOptions, modulePath string, cmd *cobra.Command) error {
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

	st, err := store.Open(opts.Database)
	if err != nil {
		return outputCLIError(formatter, ErrCodeStoreFailed, fmt.Sprintf("opening database: %v", err))
	}
	defer st.Close()

	tokens, err := replayTokens(opts, st, cmd)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return outputCLIError(formatter, ErrCodeRunNotFound, err.Error())
		}
		return outputCLIError(formatter, ErrCodeStoreFailed, err.Error())
	}
	if len(tokens) == 0 {
		return outputCLIError(formatter, ErrCodeRunNotFound, "no runs stored")
	}

	outcomes := make([]ReplayOutcome, 0, len(tokens))
	diverged := 0
	for _, token := range tokens {
		report, err := st.Replay(cmd.Context(), prog, token)
		if err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				return outputCLIError(formatter, ErrCodeRunNotFound, err.Error())
			}
			return outputCLIError(formatter, ErrCodeGeneric, fmt.Sprintf("replaying %s: %v", token, err))
		}
		o := ReplayOutcome{Token: report.Token, Events: report.Events, Match: report.Match}
		if report.Divergence != nil {
			o.Divergence = report.Divergence.String()
		}
		if !report.Match {
			diverged++
		}
		outcomes = append(outcomes, o)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(outcomes); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, o := range outcomes {
			if o.Match {
				fmt.Fprintf(w, "✓ %s: %d event(s) reproduced\n", o.Token, o.Events)
			} else {
				fmt.Fprintf(w, "✗ %s: trace diverged (%s)\n", o.Token, o.Divergence)
			}
		}
		if diverged == 0 {
			fmt.Fprintf(w, "\nVerified %d run(s)\n", len(outcomes))
		} else {
			fmt.Fprintf(w, "\n%d of %d run(s) diverged\n", diverged, len(outcomes))
		}
	}

	if diverged > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) diverged", diverged))
	}
	return nil
}

// replayTokens resolves which runs to verify: the one named with --run,
// or every stored run.
func replayTokens(opts *ReplayOptions, st *store.Store, cmd *cobra.Command) ([]string, error) {
	if opts.Run != "" {
		// Surface an unknown token before replaying anything.
		if _, err := st.ReadRun(cmd.Context(), opts.Run); err != nil {
			return nil, err
		}
		return []string{opts.Run}, nil
	}
	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return nil, err
	}
	tokens := make([]string, len(runs))
	for i, r := range runs {
		tokens[i] = r.Token
	}
	return tokens, nil
}
