package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seamlang/seam/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string
}

// ScenarioOutcome is the JSON payload for one executed scenario.
type ScenarioOutcome struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestSummary is the JSON payload of a full test invocation.
type TestSummary struct {
	Scenarios []ScenarioOutcome `json:"scenarios"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-dir>",
		Short: "Run YAML scenarios against the engine",
		Long: `Run every scenario file in a directory.

A scenario compiles a module, runs an entry function on a fresh
in-memory store, checks the expected value or raised error, and
evaluates trace assertions against the persisted trace.

Examples:
  seam test ./scenarios
  seam test ./scenarios --filter 'handoff_*'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "glob matched against scenario file names")

	return cmd
}

func runScenarios(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return outputCLIError(formatter, ErrCodeNotFound, err.Error())
	}
	if len(files) == 0 {
		return outputCLIError(formatter, ErrCodeNotFound,
			fmt.Sprintf("no scenario files found in %s", dir))
	}

	summary := TestSummary{}
	for _, file := range files {
		outcome := runOneScenario(formatter, file)
		summary.Scenarios = append(summary.Scenarios, outcome)
		if outcome.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "\n%d passed, %d failed\n", summary.Passed, summary.Failed)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// runOneScenario loads and executes a single scenario file. Load errors
// count as failures, not command errors: a broken scenario in a suite
// should not abort the rest.
func runOneScenario(formatter *OutputFormatter, file string) ScenarioOutcome {
	outcome := ScenarioOutcome{Name: scenarioName(file), File: file}

	scenario, err := harness.LoadScenarioWithBasePath(file, filepath.Dir(file))
	if err != nil {
		outcome.Errors = []string{err.Error()}
		printScenarioLine(formatter, outcome)
		return outcome
	}
	outcome.Name = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		outcome.Errors = []string{err.Error()}
		printScenarioLine(formatter, outcome)
		return outcome
	}

	outcome.Pass = result.Pass
	outcome.Errors = result.Errors
	printScenarioLine(formatter, outcome)
	return outcome
}

func printScenarioLine(formatter *OutputFormatter, outcome ScenarioOutcome) {
	if formatter.Format == "json" {
		return
	}
	w := formatter.Writer
	if outcome.Pass {
		fmt.Fprintf(w, "✓ %s\n", outcome.Name)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", outcome.Name)
	for _, msg := range outcome.Errors {
		for _, line := range strings.Split(msg, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// findScenarioFiles lists the .yaml files in dir, optionally narrowed by
// a glob on the base file name. Results are sorted for stable output.
func findScenarioFiles(dir, filter string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		if filter != "" {
			ok, err := filepath.Match(filter, name)
			if err != nil {
				return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
			}
			if !ok {
				continue
			}
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// scenarioName derives a fallback display name from the file path, used
// when the scenario fails to load.
func scenarioName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
