package types

import (
	"fmt"

	"github.com/seamlang/seam/internal/ir"
)

// CheckDecls validates declaration-level capability rules for a compiled
// program. All violations are reported; checking does not stop at the
// first one.
//
// Rules:
//   - A property setter may never be async. The setter's implicit
//     pass-by-reference contract requires it to be effectively
//     instantaneous and non-failing; a suspension inside it would hold
//     the access window open across an unbounded interleaving and break
//     the exclusivity guarantee in-place mutation depends on. Getters
//     may be async.
//
// The async-before-throws qualifier ordering is structural in ir.FuncSig
// and needs no check here.
func CheckDecls(p *ir.Program) []ir.Diagnostic {
	var diags []ir.Diagnostic

	for _, prop := range p.Props {
		if prop.Set != nil && prop.Set.Async {
			diags = append(diags, ir.Diagnostic{
				Code: ir.DiagAsyncSetter,
				Message: fmt.Sprintf("setter of property %q cannot be async: setters must be instantaneous and non-failing",
					prop.Name),
				Func: prop.Name,
				Pos:  setterPos(prop),
			})
		}
	}

	return diags
}

func setterPos(prop *ir.PropDecl) ir.Pos {
	if !prop.Set.Pos.IsZero() {
		return prop.Set.Pos
	}
	return prop.Pos
}
