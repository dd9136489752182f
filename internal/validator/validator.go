package validator

import (
	"fmt"

	"github.com/seamlang/seam/internal/ir"
	"github.com/seamlang/seam/internal/types"
)

// Validate checks a compiled program and returns every static diagnostic.
// The program is annotated in place: call nodes get their resolved
// signatures and suspension marks, closures get their inference results.
// An empty result means the program is ready for lowering.
func Validate(p *ir.Program) []ir.Diagnostic {
	v := &validator{program: p}

	v.diags = append(v.diags, types.CheckDecls(p)...)

	for _, fn := range p.Funcs {
		v.checkBody(fn.Body, scope{
			fn:    fn.Sig.Name,
			async: fn.Sig.Async,
		})
	}

	for _, prop := range p.Props {
		if prop.Get != nil {
			v.checkBody(prop.Get.Body, scope{
				fn:    prop.Name + ".get",
				async: prop.Get.Async,
			})
		}
		if prop.Set != nil {
			// Setters are never async; an async-qualified setter was already
			// rejected by CheckDecls, but its body is still checked as sync
			// so every placement error is reported in one pass.
			v.checkBody(prop.Set.Body, scope{
				fn:    prop.Name + ".set",
				async: false,
			})
		}
	}

	return v.diags
}

type validator struct {
	program *ir.Program
	diags   []ir.Diagnostic
}

// scope carries the lexical facts the placement rules depend on. It is a
// value type: child scopes are copies, so flags never leak back out.
type scope struct {
	fn    string // enclosing declaration name, for diagnostics
	async bool   // is the enclosing context asynchronous (declared or inferred)

	await    bool // inside an await wrapper
	try      bool // inside an error-propagation wrapper
	deferred bool // inside a scoped-cleanup block

	// autoclosure is set while walking an argument bound to an autoclosure
	// parameter; autoclosureAsync records whether the receiving function is
	// itself async.
	autoclosure      bool
	autoclosureAsync bool
}

func (v *validator) checkBody(body []ir.Expr, sc scope) {
	for _, e := range body {
		v.checkExpr(e, sc)
	}
}

func (v *validator) checkExpr(e ir.Expr, sc scope) {
	switch ex := e.(type) {
	case *ir.Lit, *ir.Ref:
		// Leaves.

	case *ir.Let:
		v.checkExpr(ex.Value, sc)

	case *ir.Bin:
		if !ir.ValidBinOp(ex.Op) {
			v.diags = append(v.diags, ir.Diagnostic{
				Code:    ir.DiagUnknownOperator,
				Message: fmt.Sprintf("unknown binary operator %q", ex.Op),
				Func:    sc.fn,
				Pos:     ex.Pos,
			})
		}
		v.checkExpr(ex.Left, sc)
		v.checkExpr(ex.Rght, sc)

	case *ir.Call:
		v.checkCall(ex, sc)

	case *ir.Await:
		inner := sc
		inner.await = true
		v.checkExpr(ex.Expr, inner)

	case *ir.Try:
		inner := sc
		inner.try = true
		v.checkExpr(ex.Expr, inner)

	case *ir.Closure:
		v.checkClosure(ex, sc)

	case *ir.DeferBlock:
		inner := sc
		inner.deferred = true
		// Cleanup runs atomically relative to scope exit; wrapper coverage
		// from outside the block does not extend into it.
		inner.await = false
		v.checkBody(ex.Body, inner)

	case *ir.If:
		v.checkExpr(ex.Cond, sc)
		v.checkBody(ex.Then, sc)
		v.checkBody(ex.Else, sc)

	case *ir.Loop:
		v.checkExpr(ex.Count, sc)
		v.checkBody(ex.Body, sc)

	case *ir.Return:
		if ex.Expr != nil {
			v.checkExpr(ex.Expr, sc)
		}

	case *ir.Raise:
		// Raising composes with try at the call site of the enclosing
		// function; nothing to place here.

	default:
		panic(fmt.Sprintf("validator: unhandled expression %T", e))
	}
}

// checkCall resolves the callee, marks the suspension point and enforces
// the placement rules, then walks the arguments. Argument subtrees of
// autoclosure parameters are walked with the autoclosure flags set.
func (v *validator) checkCall(call *ir.Call, sc scope) {
	cands := types.Candidates(v.program, call.Callee)
	target, diag := types.Resolve(call.Callee, cands, len(call.Args),
		types.CallContext{Async: sc.async, Func: sc.fn}, call.Pos)
	if diag != nil {
		v.diags = append(v.diags, *diag)
		// Still walk arguments so nested errors surface in the same pass.
		for _, arg := range call.Args {
			v.checkExpr(arg, sc)
		}
		return
	}

	call.Resolved = &target.Sig
	call.Suspends = target.Sig.Async

	if call.Suspends {
		v.checkSuspensionPlacement(call, sc)
	}

	if target.Sig.Throws && !sc.try {
		v.diags = append(v.diags, ir.Diagnostic{
			Code:    ir.DiagMissingTry,
			Message: fmt.Sprintf("call to %s can fail but is not covered by a try wrapper", target.Sig),
			Func:    sc.fn,
			Pos:     call.Pos,
		})
	}

	for i, arg := range call.Args {
		argScope := sc
		if i < len(target.Sig.Params) && target.Sig.Params[i].Autoclosure {
			argScope.autoclosure = true
			argScope.autoclosureAsync = target.Sig.Async
			// The deferred body evaluates inside the callee, outside any
			// wrapper visible at this call site.
			argScope.await = false
		}
		v.checkExpr(arg, argScope)
	}
}

// checkSuspensionPlacement enforces the four placement rules on a call
// already marked as a suspension point. Every violated rule is reported:
// a suspension point in a defer block of a sync function yields both
// diagnostics.
func (v *validator) checkSuspensionPlacement(call *ir.Call, sc scope) {
	sig := call.Resolved

	if !sc.async {
		v.diags = append(v.diags, ir.Diagnostic{
			Code:    ir.DiagSuspendOutsideAsync,
			Message: fmt.Sprintf("call to %s suspends, but the enclosing context is not async", sig),
			Func:    sc.fn,
			Pos:     call.Pos,
		})
	}

	if !sc.await {
		v.diags = append(v.diags, ir.Diagnostic{
			Code:    ir.DiagSuspendUnmarked,
			Message: fmt.Sprintf("call to %s suspends, but no await wrapper covers it", sig),
			Func:    sc.fn,
			Pos:     call.Pos,
		})
	}

	if sc.deferred {
		v.diags = append(v.diags, ir.Diagnostic{
			Code:    ir.DiagSuspendInDefer,
			Message: fmt.Sprintf("call to %s suspends inside a scoped-cleanup block; cleanup must be atomic", sig),
			Func:    sc.fn,
			Pos:     call.Pos,
		})
	}

	if sc.autoclosure && !sc.autoclosureAsync {
		v.diags = append(v.diags, ir.Diagnostic{
			Code: ir.DiagSuspendInAutoclosure,
			Message: fmt.Sprintf("call to %s suspends inside an autoclosure argument of a non-async function",
				sig),
			Func: sc.fn,
			Pos:  call.Pos,
		})
	}
}

// checkClosure infers the closure's asynchronous qualification when it is
// unannotated, then validates the body under the closure's own context.
// Wrapper coverage and cleanup-block membership never cross the closure
// boundary in either direction: the body executes later, not where the
// literal appears.
func (v *validator) checkClosure(cl *ir.Closure, sc scope) {
	if cl.Async == nil {
		cl.InferredAsync = v.inferAsync(cl)
	}

	v.checkBody(cl.Body, scope{
		fn:    sc.fn + ".closure",
		async: cl.IsAsync(),
	})
}
