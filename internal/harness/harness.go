// Package harness provides a conformance testing framework for the Seam
// execution engine.
//
// A scenario names a CUE module, an entry function, arguments, and the
// expected outcome. The harness compiles the module, runs the entry on a
// real engine backed by a fresh in-memory store, reads the persisted
// trace back, and evaluates assertions against it. Determinism comes
// from the fixed run token and the engine's logical clock, so the same
// scenario always produces a byte-identical trace - which is what makes
// golden file comparison (see golden.go) meaningful.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/seamlang/seam/internal/compiler"
	"github.com/seamlang/seam/internal/engine"
	"github.com/seamlang/seam/internal/ir"
	"github.com/seamlang/seam/internal/store"
)

// defaultRunToken is used when the scenario does not fix a run token.
const defaultRunToken = "test-run-default"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success: the expect clause matched
	// and every assertion held.
	Pass bool `json:"pass"`

	// Token is the run token the scenario executed under.
	Token string `json:"token"`

	// Value is the run's result value. Nil when the run raised.
	Value ir.Value `json:"value,omitempty"`

	// ErrCode is the raised error code. Empty when the run completed.
	ErrCode string `json:"err_code,omitempty"`

	// Trace is the persisted trace, read back from the store in seq order.
	Trace []ir.TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(token string) *Result {
	return &Result{
		Pass:   true,
		Token:  token,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// run token is fixed (scenario.RunToken or defaultRunToken) so the trace
// is reproducible.
//
// Execution flow:
//  1. Compile the scenario's CUE module
//  2. Open a fresh in-memory store and begin the run
//  3. Run the entry on an engine wired to the store's trace sink
//  4. Read the persisted trace back and evaluate expect + assertions
func Run(scenario *Scenario) (*Result, error) {
	prog, err := compiler.LoadFile(scenario.Module)
	if err != nil {
		return nil, fmt.Errorf("failed to compile module %s: %w", scenario.Module, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	token := scenario.RunToken
	if token == "" {
		token = defaultRunToken
	}

	args, err := convertArgs(scenario.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to convert args: %w", err)
	}

	hash, err := ir.ProgramHash(prog)
	if err != nil {
		return nil, fmt.Errorf("failed to hash program: %w", err)
	}

	ctx := context.Background()
	writer, err := st.BeginRun(ctx, store.RunMeta{
		Token:       token,
		Module:      prog.Module,
		Entry:       scenario.Entry,
		Args:        args,
		ProgramHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}

	eng, err := engine.New(prog,
		engine.WithRunTokens(engine.NewFixedGenerator(token)),
		engine.WithSink(writer),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // suppress logs in tests
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	result := NewResult(token)

	res, runErr := eng.Run(ctx, scenario.Entry, args)
	if res != nil {
		// The persisted trace, not the in-memory one, is what assertions
		// see: the store round-trip is part of what the harness verifies.
		trace, err := st.ReadTrace(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to read trace: %w", err)
		}
		result.Trace = trace
		result.Value = res.Value
	}

	var raised *engine.RaisedError
	if errors.As(runErr, &raised) {
		result.ErrCode = raised.Code
	}

	evaluateExpect(scenario, result, runErr)

	for _, errMsg := range EvaluateAssertions(result.Trace, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// evaluateExpect checks the run outcome against the scenario's expect
// clause and records any mismatch on the result.
func evaluateExpect(scenario *Scenario, result *Result, runErr error) {
	if scenario.Expect.Error != "" {
		if result.ErrCode == "" {
			result.AddError(fmt.Sprintf("expected raised error %q, got none (run error: %v)",
				scenario.Expect.Error, runErr))
			return
		}
		if result.ErrCode != scenario.Expect.Error {
			result.AddError(fmt.Sprintf("expected raised error %q, got %q",
				scenario.Expect.Error, result.ErrCode))
		}
		return
	}

	if runErr != nil {
		result.AddError(fmt.Sprintf("expected value %v, run failed: %v", scenario.Expect.Value, runErr))
		return
	}

	want, err := convertValue(scenario.Expect.Value)
	if err != nil {
		result.AddError(fmt.Sprintf("invalid expect value: %v", err))
		return
	}
	if !ir.Equal(want, result.Value) {
		result.AddError(fmt.Sprintf("expected value %s, got %s",
			ir.Format(want), ir.Format(result.Value)))
	}
}

// convertArgs converts YAML-parsed scenario args to engine arguments.
func convertArgs(args []any) ([]ir.Value, error) {
	out := make([]ir.Value, len(args))
	for i, a := range args {
		v, err := convertValue(a)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// convertValue converts a YAML-parsed value to an ir.Value. Integral
// floats are normalized to Int first; true floats and nulls are rejected,
// matching the value domain.
func convertValue(val any) (ir.Value, error) {
	switch v := val.(type) {
	case nil:
		return nil, fmt.Errorf("null values are forbidden (use an explicit value)")
	case float64:
		if v == float64(int64(v)) {
			return ir.Int(int64(v)), nil
		}
		return nil, fmt.Errorf("floats are forbidden: %v", v)
	case []any:
		list := make(ir.List, len(v))
		for i, elem := range v {
			sv, err := convertValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = sv
		}
		return list, nil
	case map[string]any:
		rec := make(ir.Rec, len(v))
		for k, elem := range v {
			sv, err := convertValue(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			rec[k] = sv
		}
		return rec, nil
	default:
		return ir.FromGo(val)
	}
}
