package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainProgram = "seam/program/v1"
	DomainCall    = "seam/call/v1"
	DomainUnit    = "seam/unit/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramHash computes a stable identity for a compiled program: module
// name, every declared signature with its context affinity, and every
// declaration body. Replay refuses to compare traces across different
// hashes, so anything that could change behavior must move the hash.
// Source positions and validator annotations are not behavior and do not
// participate.
func ProgramHash(p *Program) (string, error) {
	funcs := make(List, 0, len(p.Funcs))
	for _, f := range p.Funcs {
		funcs = append(funcs, Rec{
			"sig":     Str(f.Sig.String()),
			"context": Str(f.Sig.Context),
			"body":    bodyValue(f.Body),
		})
	}
	props := make(List, 0, len(p.Props))
	for _, prop := range p.Props {
		rec := Rec{"name": Str(prop.Name), "type": Str(prop.Type)}
		if prop.Get != nil {
			rec["get"] = Rec{"async": Bool(prop.Get.Async), "body": bodyValue(prop.Get.Body)}
		}
		if prop.Set != nil {
			rec["set"] = Rec{"body": bodyValue(prop.Set.Body)}
		}
		props = append(props, rec)
	}
	obj := Rec{
		"module": Str(p.Module),
		"funcs":  funcs,
		"props":  props,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: marshal: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

func bodyValue(body []Expr) Value {
	out := make(List, 0, len(body))
	for _, e := range body {
		out = append(out, exprValue(e))
	}
	return out
}

// exprValue renders an expression subtree as a Value for hashing. Every
// node carries a kind tag so structurally different trees never collide
// on identical field sets.
func exprValue(e Expr) Value {
	switch ex := e.(type) {
	case *Lit:
		return Rec{"kind": Str("lit"), "value": ex.Value}
	case *Ref:
		return Rec{"kind": Str("ref"), "name": Str(ex.Name)}
	case *Let:
		return Rec{"kind": Str("let"), "name": Str(ex.Name), "value": exprValue(ex.Value)}
	case *Bin:
		return Rec{"kind": Str("bin"), "op": Str(ex.Op),
			"left": exprValue(ex.Left), "right": exprValue(ex.Rght)}
	case *Call:
		return Rec{"kind": Str("call"), "callee": Str(ex.Callee), "args": bodyValue(ex.Args)}
	case *Await:
		return Rec{"kind": Str("await"), "expr": exprValue(ex.Expr)}
	case *Try:
		return Rec{"kind": Str("try"), "expr": exprValue(ex.Expr)}
	case *Closure:
		rec := Rec{
			"kind":   Str("closure"),
			"throws": Bool(ex.Throws),
			"params": paramsValue(ex.Params),
			"body":   bodyValue(ex.Body),
		}
		// Tri-state: an absent key means "infer".
		if ex.Async != nil {
			rec["async"] = Bool(*ex.Async)
		}
		return rec
	case *DeferBlock:
		return Rec{"kind": Str("defer"), "body": bodyValue(ex.Body)}
	case *If:
		return Rec{"kind": Str("if"), "cond": exprValue(ex.Cond),
			"then": bodyValue(ex.Then), "else": bodyValue(ex.Else)}
	case *Loop:
		return Rec{"kind": Str("loop"), "count": exprValue(ex.Count), "body": bodyValue(ex.Body)}
	case *Return:
		rec := Rec{"kind": Str("return")}
		if ex.Expr != nil {
			rec["expr"] = exprValue(ex.Expr)
		}
		return rec
	case *Raise:
		return Rec{"kind": Str("raise"), "code": Str(ex.Code)}
	default:
		panic(fmt.Sprintf("ir: unhandled expression %T", e))
	}
}

func paramsValue(params []Param) Value {
	out := make(List, 0, len(params))
	for _, p := range params {
		rec := Rec{"name": Str(p.Name), "type": Str(p.Type)}
		if p.Autoclosure {
			rec["autoclosure"] = Bool(true)
		}
		out = append(out, rec)
	}
	return out
}

// CallID computes the content-addressed identity of a single call:
// the run it belongs to, the resolved signature, the evaluated arguments
// and the logical-clock stamp. Stable across restarts and replays given
// the same inputs.
func CallID(runToken, sig string, args List, seq int64) (string, error) {
	obj := Rec{
		"run":  Str(runToken),
		"sig":  Str(sig),
		"args": args,
		"seq":  Int(seq),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CallID: marshal: %w", err)
	}
	return hashWithDomain(DomainCall, canonical), nil
}

// UnitID computes the identity of a resumption unit enqueued for a call.
// Kind distinguishes the callee-entry unit from the caller-resume unit of
// the same call.
func UnitID(callID, kind string, seq int64) (string, error) {
	obj := Rec{
		"call": Str(callID),
		"kind": Str(kind),
		"seq":  Int(seq),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("UnitID: marshal: %w", err)
	}
	return hashWithDomain(DomainUnit, canonical), nil
}
