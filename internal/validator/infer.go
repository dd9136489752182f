package validator

import (
	"github.com/seamlang/seam/internal/ir"
	"github.com/seamlang/seam/internal/types"
)

// inferAsync decides the asynchronous qualification of an unannotated
// closure literal: async if and only if its own top-level body contains at
// least one call resolving to an async target where suspending is
// syntactically possible. Scoped-cleanup bodies can never suspend, so
// calls inside them do not count. "Top level" means anything
// inside the closure that is not inside a nested closure literal; the
// inference never crosses a closure boundary in either direction, and is
// computed independently per closure.
//
// Calls are resolved under an assumed-async context: if a mixed overload
// set would make the closure async under the async-preference rule, the
// assumption is self-consistent; if nothing suspends, the assumption was
// irrelevant because sync-only resolution picks the same targets.
func (v *validator) inferAsync(cl *ir.Closure) bool {
	for _, e := range cl.Body {
		if v.containsSuspension(e) {
			return true
		}
	}
	return false
}

func (v *validator) containsSuspension(e ir.Expr) bool {
	switch ex := e.(type) {
	case *ir.Lit, *ir.Ref, *ir.Raise:
		return false

	case *ir.Let:
		return v.containsSuspension(ex.Value)

	case *ir.Bin:
		return v.containsSuspension(ex.Left) || v.containsSuspension(ex.Rght)

	case *ir.Call:
		cands := types.Candidates(v.program, ex.Callee)
		target, diag := types.Resolve(ex.Callee, cands, len(ex.Args),
			types.CallContext{Async: true}, ex.Pos)
		if diag == nil && target.Sig.Async {
			return true
		}
		for _, arg := range ex.Args {
			if v.containsSuspension(arg) {
				return true
			}
		}
		return false

	case *ir.Await:
		return v.containsSuspension(ex.Expr)

	case *ir.Try:
		return v.containsSuspension(ex.Expr)

	case *ir.Closure:
		// Nested closures are opaque to inference.
		return false

	case *ir.DeferBlock:
		// Cleanup bodies may never suspend, so nothing inside one is a
		// valid suspension point. An async call here is reported as a
		// placement error, not absorbed into the closure's qualifier.
		return false

	case *ir.If:
		if v.containsSuspension(ex.Cond) {
			return true
		}
		return bodyContains(v, ex.Then) || bodyContains(v, ex.Else)

	case *ir.Loop:
		return v.containsSuspension(ex.Count) || bodyContains(v, ex.Body)

	case *ir.Return:
		return ex.Expr != nil && v.containsSuspension(ex.Expr)

	default:
		return false
	}
}

func bodyContains(v *validator, body []ir.Expr) bool {
	for _, e := range body {
		if v.containsSuspension(e) {
			return true
		}
	}
	return false
}
