package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: one module, one run, and
// assertions over the resulting handoff trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Doubles as the golden file
	// name for trace snapshots.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the path to the CUE module to compile and run.
	// Relative paths are resolved against the scenario file location
	// when loaded through LoadScenarioWithBasePath.
	Module string `yaml:"module"`

	// Entry names the function to run. Overload resolution happens at
	// run time, in a suspension-capable position.
	Entry string `yaml:"entry"`

	// Args are the entry arguments in declaration order.
	// Values are converted to ir.Value types during execution.
	Args []any `yaml:"args,omitempty"`

	// RunToken is an optional fixed run token for deterministic traces.
	// If empty, defaults to "test-run-default" so golden files stay
	// stable across runs.
	RunToken string `yaml:"run_token,omitempty"`

	// Expect specifies the expected run outcome.
	Expect ExpectClause `yaml:"expect"`

	// Assertions validate the persisted trace.
	// Supported types: trace_contains, trace_order, trace_count
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ExpectClause specifies the expected outcome of the run: either a result
// value or a raised error code, never both.
type ExpectClause struct {
	// Value is the expected result value. Converted to an ir.Value and
	// compared with ir.Equal.
	Value any `yaml:"value,omitempty"`

	// Error is the expected raised error code (e.g. "NETWORK_DOWN").
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace of a completed run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event with the given fields appears in the trace
	// - "trace_order": event kinds appear in order (not necessarily adjacent)
	// - "trace_count": events of a kind appear exactly N times
	Type string `yaml:"type"`

	// Kind is the trace event kind (used by trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Func is the expected function. Matches either the full resolved
	// signature or just the function name (used by trace_contains).
	Func string `yaml:"func,omitempty"`

	// From is the expected source context token (used by trace_contains).
	From string `yaml:"from,omitempty"`

	// To is the expected target context token (used by trace_contains).
	To string `yaml:"to,omitempty"`

	// Kinds is the expected kind order (used by trace_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the module path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the module path BEFORE validation so the existence check
	// sees the resolved path.
	if scenario.Module != "" && basePath != "" && !filepath.IsAbs(scenario.Module) {
		scenario.Module = filepath.Join(basePath, scenario.Module)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Module == "" {
		return fmt.Errorf("module is required")
	}

	if _, err := os.Stat(s.Module); os.IsNotExist(err) {
		return fmt.Errorf("module file not found: %s", s.Module)
	}

	if s.Entry == "" {
		return fmt.Errorf("entry is required")
	}

	if s.Expect.Value == nil && s.Expect.Error == "" {
		return fmt.Errorf("expect requires either value or error")
	}
	if s.Expect.Value != nil && s.Expect.Error != "" {
		return fmt.Errorf("expect cannot have both value and error")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
