package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seamlang/seam/internal/ir"
)

func lit(v ir.Value) *ir.Lit { return &ir.Lit{Value: v} }

func call(name string, args ...ir.Expr) *ir.Call {
	return &ir.Call{Callee: name, Args: args}
}

func ret(e ir.Expr) *ir.Return { return &ir.Return{Expr: e} }

func newEngine(t *testing.T, p *ir.Program, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithRunTokens(NewFixedGenerator("run-1", "run-2", "run-3"))}, opts...)
	e, err := New(p, opts...)
	require.NoError(t, err)
	return e
}

func kinds(trace []ir.TraceEvent) []ir.TraceKind {
	out := make([]ir.TraceKind, len(trace))
	for i, ev := range trace {
		out[i] = ev.Kind
	}
	return out
}

// doubleProgram: async entry awaiting an async callee with no declared
// affinity, so the callee inherits the entry's context.
func doubleProgram() *ir.Program {
	return &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig: ir.FuncSig{Name: "double", Async: true, Params: []ir.Param{{Name: "n", Type: "Int"}}, Result: "Int"},
				Body: []ir.Expr{
					ret(&ir.Bin{Op: "*", Left: &ir.Ref{Name: "n"}, Rght: lit(ir.Int(2))}),
				},
			},
			{
				Sig: ir.FuncSig{Name: "main", Async: true, Result: "Int"},
				Body: []ir.Expr{
					ret(&ir.Await{Expr: call("double", lit(ir.Int(21)))}),
				},
			},
		},
	}
}

// crossProgram: the callee declares affinity to a different context, so
// every call to it hands off and every return hands back.
func crossProgram() *ir.Program {
	return &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig: ir.FuncSig{Name: "fetch", Async: true, Context: "io", Params: []ir.Param{{Name: "url", Type: "Str"}}, Result: "Str"},
				Body: []ir.Expr{
					ret(&ir.Bin{Op: "+", Left: lit(ir.Str("body:")), Rght: &ir.Ref{Name: "url"}}),
				},
			},
			{
				Sig: ir.FuncSig{Name: "main", Async: true, Result: "Str"},
				Body: []ir.Expr{
					&ir.Let{Name: "greeting", Value: lit(ir.Str("hello"))},
					&ir.Let{Name: "page", Value: &ir.Await{Expr: call("fetch", lit(ir.Str("a")))}},
					// The local bound before the suspension must survive it.
					ret(&ir.Bin{Op: "+", Left: &ir.Ref{Name: "greeting"}, Rght: &ir.Ref{Name: "page"}}),
				},
			},
		},
	}
}

func TestRunSameContextCall(t *testing.T) {
	e := newEngine(t, doubleProgram())

	res, err := e.Run(context.Background(), "main", nil)
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.Token)
	assert.Equal(t, ir.Int(42), res.Value)

	// Callee inherits the caller's context: no handoff events at all,
	// only the degenerate protocol.
	for _, ev := range res.Trace {
		assert.NotEqual(t, ir.TraceHandoffOut, ev.Kind, "same-context call must not hand off")
		assert.NotEqual(t, ir.TraceHandoffBack, ev.Kind, "same-context return must not hand back")
	}
}

func TestRunCrossContextHandoff(t *testing.T) {
	e := newEngine(t, crossProgram())

	res, err := e.Run(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Str("hellobody:a"), res.Value, "locals must survive the suspension")

	got := kinds(res.Trace)
	want := []ir.TraceKind{
		ir.TraceCall,        // main
		ir.TraceResume,      // run start on ctx-main
		ir.TraceCall,        // fetch
		ir.TraceHandoffOut,  // ctx-main -> ctx-io
		ir.TraceResume,      // fetch entry on ctx-io
		ir.TraceComplete,    // fetch
		ir.TraceHandoffBack, // ctx-io -> ctx-main
		ir.TraceResume,      // main resumes with the value
		ir.TraceComplete,    // main
	}
	assert.Equal(t, want, got)

	// Handoff endpoints are the resolver's deterministic tokens.
	var out ir.TraceEvent
	for _, ev := range res.Trace {
		if ev.Kind == ir.TraceHandoffOut {
			out = ev
		}
	}
	assert.Equal(t, "ctx-main", out.From)
	assert.Equal(t, "ctx-io", out.To)
}

func TestRunSeqStrictlyIncreasing(t *testing.T) {
	e := newEngine(t, crossProgram())

	res, err := e.Run(context.Background(), "main", nil)
	require.NoError(t, err)
	for i := 1; i < len(res.Trace); i++ {
		assert.Greater(t, res.Trace[i].Seq, res.Trace[i-1].Seq)
	}
	for _, ev := range res.Trace {
		assert.Equal(t, "run-1", ev.Run)
	}
}

func TestRunErrorAcrossHandoff(t *testing.T) {
	p := &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig: ir.FuncSig{Name: "flaky", Async: true, Throws: true, Context: "io", Result: "Str"},
				Body: []ir.Expr{
					&ir.Raise{Code: "NETWORK_DOWN"},
				},
			},
			{
				Sig: ir.FuncSig{Name: "main", Async: true, Throws: true, Result: "Str"},
				Body: []ir.Expr{
					ret(&ir.Try{Expr: &ir.Await{Expr: call("flaky")}}),
				},
			},
		},
	}
	e := newEngine(t, p)

	res, err := e.Run(context.Background(), "main", nil)
	require.Error(t, err)

	var raised *RaisedError
	require.ErrorAs(t, err, &raised)
	assert.Equal(t, "NETWORK_DOWN", raised.Code)
	assert.Nil(t, res.Value)

	// The raise crosses the boundary through the same handoff-back +
	// resume machinery a value would use.
	got := kinds(res.Trace)
	want := []ir.TraceKind{
		ir.TraceCall, ir.TraceResume,
		ir.TraceCall, ir.TraceHandoffOut, ir.TraceResume,
		ir.TraceError, ir.TraceHandoffBack, ir.TraceResume,
		ir.TraceError,
	}
	assert.Equal(t, want, got)
}

func TestRunCleanupRunsOnUnwind(t *testing.T) {
	// cleanup mutates a local; observable through the error path not
	// changing the raised code and the trace carrying both errors.
	p := &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig: ir.FuncSig{Name: "work", Async: true, Throws: true, Result: "Int"},
				Body: []ir.Expr{
					&ir.Let{Name: "x", Value: lit(ir.Int(1))},
					&ir.DeferBlock{Body: []ir.Expr{
						&ir.Let{Name: "x", Value: lit(ir.Int(0))},
					}},
					&ir.Raise{Code: "BOOM"},
				},
			},
			{
				Sig: ir.FuncSig{Name: "main", Async: true, Throws: true, Result: "Int"},
				Body: []ir.Expr{
					ret(&ir.Try{Expr: &ir.Await{Expr: call("work")}}),
				},
			},
		},
	}
	e := newEngine(t, p)

	_, err := e.Run(context.Background(), "main", nil)
	var raised *RaisedError
	require.ErrorAs(t, err, &raised)
	assert.Equal(t, "BOOM", raised.Code)
}

func TestRunCancellationSignalled(t *testing.T) {
	e := newEngine(t, crossProgram(), WithEnqueueHook(func(u *ResumptionUnit) {
		if u.Kind == UnitKindCalleeEntry {
			require.True(t, u.Cancel())
		}
	}))

	res, err := e.Run(context.Background(), "main", nil)
	require.Error(t, err)
	assert.True(t, IsCancelled(err), "cancellation must surface, not vanish: %v", err)

	found := false
	for _, ev := range res.Trace {
		if ev.Kind == ir.TraceCancel {
			found = true
			assert.Equal(t, "ctx-io", ev.To)
		}
	}
	assert.True(t, found, "trace must record the cancelled unit")
}

func TestRunQuotaExceeded(t *testing.T) {
	p := &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig: ir.FuncSig{Name: "main", Async: true, Result: "Int"},
				Body: []ir.Expr{
					&ir.Let{Name: "acc", Value: lit(ir.Int(0))},
					&ir.Loop{Count: lit(ir.Int(1_000_000)), Body: []ir.Expr{
						&ir.Let{Name: "acc", Value: &ir.Bin{Op: "+", Left: &ir.Ref{Name: "acc"}, Rght: lit(ir.Int(1))}},
					}},
					ret(&ir.Ref{Name: "acc"}),
				},
			},
		},
	}
	e := newEngine(t, p, WithMaxSteps(500))

	_, err := e.Run(context.Background(), "main", nil)
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))
}

func TestRunSyncEntry(t *testing.T) {
	p := &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig: ir.FuncSig{Name: "add", Params: []ir.Param{{Name: "a", Type: "Int"}, {Name: "b", Type: "Int"}}, Result: "Int"},
				Body: []ir.Expr{
					ret(&ir.Bin{Op: "+", Left: &ir.Ref{Name: "a"}, Rght: &ir.Ref{Name: "b"}}),
				},
			},
		},
	}
	e := newEngine(t, p)

	res, err := e.Run(context.Background(), "add", []ir.Value{ir.Int(40), ir.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, ir.Int(42), res.Value)
	assert.Equal(t, []ir.TraceKind{ir.TraceCall, ir.TraceComplete}, kinds(res.Trace))
}

func TestRunOverloadPicksAsyncInRunContext(t *testing.T) {
	p := &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig:  ir.FuncSig{Name: "get", Result: "Str"},
				Body: []ir.Expr{ret(lit(ir.Str("sync")))},
			},
			{
				Sig:  ir.FuncSig{Name: "get", Async: true, Result: "Str"},
				Body: []ir.Expr{ret(lit(ir.Str("async")))},
			},
		},
	}
	e := newEngine(t, p)

	res, err := e.Run(context.Background(), "get", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Str("async"), res.Value, "the run entry point is a suspension-capable position")
}

func TestRunUnknownEntry(t *testing.T) {
	e := newEngine(t, doubleProgram())

	_, err := e.Run(context.Background(), "nope", nil)
	var re *RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeNoEntry, re.Code)
}

func TestRunArityMismatch(t *testing.T) {
	e := newEngine(t, doubleProgram())

	_, err := e.Run(context.Background(), "double", nil)
	var re *RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeBadArgument, re.Code)
}

func TestNewRejectsInvalidProgram(t *testing.T) {
	p := &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig:  ir.FuncSig{Name: "helper", Async: true, Result: "Int"},
				Body: []ir.Expr{ret(lit(ir.Int(1)))},
			},
			{
				Sig: ir.FuncSig{Name: "bad", Result: "Int"},
				Body: []ir.Expr{
					// suspension point in a synchronous function
					ret(&ir.Await{Expr: call("helper")}),
				},
			},
		},
	}

	_, err := New(p)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.NotEmpty(t, ve.Diags)
	assert.Equal(t, ir.DiagSuspendOutsideAsync, ve.Diags[0].Code)
}

func TestRunTrapsRecordedBySink(t *testing.T) {
	var sunk []ir.TraceEvent
	sink := sinkFunc(func(_ context.Context, ev ir.TraceEvent) error {
		sunk = append(sunk, ev)
		return nil
	})
	e := newEngine(t, crossProgram(), WithSink(sink))

	res, err := e.Run(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, res.Trace, sunk, "the sink sees exactly the in-memory trace, in order")
}

type sinkFunc func(context.Context, ir.TraceEvent) error

func (f sinkFunc) Record(ctx context.Context, ev ir.TraceEvent) error { return f(ctx, ev) }

func TestRunOrderingAndBoolOperators(t *testing.T) {
	// 0 <= n and 10 >= n, through the full pipeline. Ordering and Bool
	// operators must evaluate instead of tripping the internal-error path.
	p := &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig: ir.FuncSig{Name: "inRange", Params: []ir.Param{{Name: "n", Type: "Int"}}, Result: "Bool"},
				Body: []ir.Expr{
					&ir.Let{Name: "lo", Value: &ir.Bin{Op: "<=", Left: lit(ir.Int(0)), Rght: &ir.Ref{Name: "n"}}},
					&ir.Let{Name: "hi", Value: &ir.Bin{Op: ">=", Left: lit(ir.Int(10)), Rght: &ir.Ref{Name: "n"}}},
					ret(&ir.Bin{Op: "and", Left: &ir.Ref{Name: "lo"}, Rght: &ir.Ref{Name: "hi"}}),
				},
			},
		},
	}
	e := newEngine(t, p)

	res, err := e.Run(context.Background(), "inRange", []ir.Value{ir.Int(7)})
	require.NoError(t, err)
	assert.Equal(t, ir.Bool(true), res.Value)

	res, err = e.Run(context.Background(), "inRange", []ir.Value{ir.Int(11)})
	require.NoError(t, err)
	assert.Equal(t, ir.Bool(false), res.Value)
}

func TestRunSyncCalleeRecordedOnCallerContext(t *testing.T) {
	// A context label on a synchronous signature never causes a handoff,
	// so the call event must name the context the callee actually ran on.
	p := &ir.Program{
		Module: "test",
		Funcs: []*ir.FuncDecl{
			{
				Sig:  ir.FuncSig{Name: "render", Context: "io", Params: []ir.Param{{Name: "n", Type: "Int"}}, Result: "Int"},
				Body: []ir.Expr{ret(&ir.Ref{Name: "n"})},
			},
			{
				Sig:  ir.FuncSig{Name: "main", Async: true, Result: "Int"},
				Body: []ir.Expr{ret(call("render", lit(ir.Int(7))))},
			},
		},
	}
	e := newEngine(t, p)

	res, err := e.Run(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(7), res.Value)

	found := false
	for _, ev := range res.Trace {
		if ev.Kind == ir.TraceCall && ev.Func == "render(n: Int) -> Int" {
			found = true
			assert.Equal(t, "ctx-main", ev.From)
			assert.Equal(t, "ctx-main", ev.To, "the sync call runs inline on the caller's context")
		}
	}
	require.True(t, found, "trace must record the inline call")
}
