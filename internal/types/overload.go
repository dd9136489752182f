package types

import (
	"fmt"

	"github.com/seamlang/seam/internal/ir"
)

// CallContext is the capability of the context a call appears in.
// Async is true inside async functions, async getters and closures whose
// asynchronous qualification is declared or inferred.
type CallContext struct {
	Async bool
	// Func is the enclosing declaration name, used in diagnostics.
	Func string
}

// Candidates collects every declaration sharing the call's base name,
// in declaration order. Phase one of overload resolution; no filtering
// happens here.
func Candidates(p *ir.Program, name string) []*ir.FuncDecl {
	return p.Overloads(name)
}

// Resolve picks the target of a call from its candidate set. Phase two:
// a pure function of the candidates and the calling context, so the
// preference rules are testable without a program around them.
//
// Filtering and ranking:
//  1. Candidates whose arity differs from the call are dropped.
//  2. In a non-async context only non-async candidates are viable - a
//     non-async context has no mechanism to suspend. If every arity-viable
//     candidate is async, the sole candidate is still chosen and the
//     suspension validator reports the placement error; resolution itself
//     never silently falls back.
//  3. In an async context an async candidate is preferred over an
//     equally-viable non-async one, steering call sites away from
//     context-blocking alternatives.
//  4. More than one candidate remaining is AMBIGUOUS_OVERLOAD.
func Resolve(name string, cands []*ir.FuncDecl, argc int, callCtx CallContext, pos ir.Pos) (*ir.FuncDecl, *ir.Diagnostic) {
	if len(cands) == 0 {
		return nil, &ir.Diagnostic{
			Code:    ir.DiagUnknownFunction,
			Message: fmt.Sprintf("no declaration named %q", name),
			Func:    callCtx.Func,
			Pos:     pos,
		}
	}

	viable := filterArity(cands, argc)
	if len(viable) == 0 {
		return nil, &ir.Diagnostic{
			Code:    ir.DiagArityMismatch,
			Message: fmt.Sprintf("no overload of %q takes %d argument(s)", name, argc),
			Func:    callCtx.Func,
			Pos:     pos,
		}
	}

	ranked := rankByContext(viable, callCtx)

	if len(ranked) > 1 {
		return nil, &ir.Diagnostic{
			Code: ir.DiagAmbiguousOverload,
			Message: fmt.Sprintf("call to %q is ambiguous: %d candidates remain after capability filtering",
				name, len(ranked)),
			Func: callCtx.Func,
			Pos:  pos,
		}
	}

	return ranked[0], nil
}

func filterArity(cands []*ir.FuncDecl, argc int) []*ir.FuncDecl {
	var out []*ir.FuncDecl
	for _, c := range cands {
		if len(c.Sig.Params) == argc {
			out = append(out, c)
		}
	}
	return out
}

// rankByContext applies the capability preference for the calling context.
// It partitions candidates by asyncness and keeps the preferred partition
// when it is non-empty.
func rankByContext(cands []*ir.FuncDecl, callCtx CallContext) []*ir.FuncDecl {
	var async, sync []*ir.FuncDecl
	for _, c := range cands {
		if c.Sig.Async {
			async = append(async, c)
		} else {
			sync = append(sync, c)
		}
	}

	if callCtx.Async {
		// Prefer the suspending candidate; a sync alternative would block
		// the context instead of yielding it.
		if len(async) > 0 {
			return async
		}
		return sync
	}

	// Non-async context: sync candidates are the only viable ones. An
	// async-only set falls through so the validator can state the real
	// problem (suspension outside an async context).
	if len(sync) > 0 {
		return sync
	}
	return async
}
