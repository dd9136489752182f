package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seamlang/seam/internal/ir"
)

// Scenario B: a closure { x() } where x is async is inferred async; a
// closure nested inside it with a synchronous-only body is inferred
// non-async.
func TestClosureInferenceDoesNotCrossBoundaryInward(t *testing.T) {
	inner := &ir.Closure{Body: []ir.Expr{&ir.Return{Expr: call("h")}}}
	outer := &ir.Closure{Body: []ir.Expr{
		&ir.Await{Expr: call("x")},
		inner,
	}}

	p := &ir.Program{
		Module: "demo",
		Funcs: []*ir.FuncDecl{
			asyncFn("x", &ir.Return{Expr: lit(1)}),
			syncFn("h", &ir.Return{Expr: lit(2)}),
			asyncFn("f", outer),
		},
	}

	diags := Validate(p)
	assert.Empty(t, diags)
	assert.True(t, outer.IsAsync(), "closure with a top-level suspension point is async")
	assert.False(t, inner.IsAsync(), "sync-only nested closure stays sync despite async enclosure")
}

func TestClosureInferenceDoesNotCrossBoundaryOutward(t *testing.T) {
	// Only the nested closure suspends; the outer closure body has no
	// top-level suspension point and must stay sync.
	inner := &ir.Closure{Body: []ir.Expr{&ir.Await{Expr: call("x")}}}
	outer := &ir.Closure{Body: []ir.Expr{inner, &ir.Return{Expr: lit(0)}}}

	p := &ir.Program{
		Module: "demo",
		Funcs: []*ir.FuncDecl{
			asyncFn("x", &ir.Return{Expr: lit(1)}),
			asyncFn("f", outer),
		},
	}

	diags := Validate(p)
	assert.Empty(t, diags)
	assert.False(t, outer.IsAsync(), "a suspension inside a nested closure does not leak outward")
	assert.True(t, inner.IsAsync())
}

func TestClosureInferenceCountsUnwrappedSuspensions(t *testing.T) {
	// { x() } without an await still infers async; the missing wrapper is
	// then reported as its own diagnostic.
	cl := &ir.Closure{Body: []ir.Expr{call("x")}}
	p := &ir.Program{
		Module: "demo",
		Funcs: []*ir.FuncDecl{
			asyncFn("x", &ir.Return{Expr: lit(1)}),
			asyncFn("f", cl),
		},
	}

	diags := Validate(p)
	require.Len(t, diags, 1)
	assert.Equal(t, ir.DiagSuspendUnmarked, diags[0].Code)
	assert.True(t, cl.IsAsync())
}

func TestClosureInferenceSeesBranchesAndLoops(t *testing.T) {
	cl := &ir.Closure{Body: []ir.Expr{
		&ir.If{
			Cond: &ir.Lit{Value: ir.Bool(true)},
			Then: []ir.Expr{&ir.Loop{Count: lit(2), Body: []ir.Expr{&ir.Await{Expr: call("x")}}}},
		},
	}}
	p := &ir.Program{
		Module: "demo",
		Funcs: []*ir.FuncDecl{
			asyncFn("x", &ir.Return{Expr: lit(1)}),
			asyncFn("f", cl),
		},
	}

	assert.Empty(t, Validate(p))
	assert.True(t, cl.IsAsync(), "control flow inside the closure is still its own top level")
}

func TestExplicitQualifierSuppressesInference(t *testing.T) {
	explicitSync := false
	cl := &ir.Closure{Async: &explicitSync, Body: []ir.Expr{&ir.Await{Expr: call("x")}}}
	p := &ir.Program{
		Module: "demo",
		Funcs: []*ir.FuncDecl{
			asyncFn("x", &ir.Return{Expr: lit(1)}),
			asyncFn("f", cl),
		},
	}

	diags := Validate(p)
	require.Len(t, diags, 1)
	assert.Equal(t, ir.DiagSuspendOutsideAsync, diags[0].Code,
		"an explicitly-sync closure cannot host a suspension point")
}

func TestClosureWithMixedOverloadSetInfersAsync(t *testing.T) {
	// Inference resolves under an assumed-async context, so the async
	// member of the pair is chosen and the closure becomes async -
	// consistent with the preference rule that then applies for real.
	cl := &ir.Closure{Body: []ir.Expr{&ir.Await{Expr: call("f")}}}
	p := &ir.Program{
		Module: "demo",
		Funcs: []*ir.FuncDecl{
			syncFn("f", &ir.Return{Expr: lit(1)}),
			asyncFn("f", &ir.Return{Expr: lit(2)}),
			asyncFn("main", cl),
		},
	}

	assert.Empty(t, Validate(p))
	assert.True(t, cl.IsAsync())
}

func TestClosureInferenceSkipsCleanupBlocks(t *testing.T) {
	// The only async call sits inside a scoped-cleanup block, where no
	// suspension is ever legal; it cannot make the closure async. The
	// illegal placement is still reported, against the sync closure.
	cl := &ir.Closure{Body: []ir.Expr{
		&ir.DeferBlock{Body: []ir.Expr{call("x")}},
		&ir.Return{Expr: lit(0)},
	}}
	p := &ir.Program{
		Module: "demo",
		Funcs: []*ir.FuncDecl{
			asyncFn("x", &ir.Return{Expr: lit(1)}),
			asyncFn("f", cl),
		},
	}

	diags := Validate(p)
	assert.False(t, cl.IsAsync(), "a cleanup-only call site is not a valid suspension point")

	var codes []ir.DiagCode
	for _, d := range diags {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, ir.DiagSuspendInDefer)
	assert.Contains(t, codes, ir.DiagSuspendOutsideAsync,
		"the closure stays sync, so the placement error compounds")
}
