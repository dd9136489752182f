package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/seamlang/seam/internal/ir"
)

// parseBody parses a CUE list of statements into an expression slice.
func parseBody(v cue.Value) ([]ir.Expr, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var body []ir.Expr
	for iter.Next() {
		e, err := parseExpr(iter.Value())
		if err != nil {
			return nil, err
		}
		body = append(body, e)
	}
	return body, nil
}

// parseExpr parses one expression node, discriminated by its "kind"
// field.
func parseExpr(v cue.Value) (ir.Expr, error) {
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return nil, &CompileError{
			Field:   "expr",
			Message: "expression is missing its kind",
			Pos:     v.Pos(),
		}
	}
	kind, err := kindVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	pos := position(v)

	switch kind {
	case "lit":
		val, err := parseLitValue(v.LookupPath(cue.ParsePath("value")))
		if err != nil {
			return nil, err
		}
		return &ir.Lit{Pos: pos, Value: val}, nil

	case "ref":
		name, err := v.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &ir.Ref{Pos: pos, Name: name}, nil

	case "let":
		name, err := v.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		value, err := parseExpr(v.LookupPath(cue.ParsePath("value")))
		if err != nil {
			return nil, err
		}
		return &ir.Let{Pos: pos, Name: name, Value: value}, nil

	case "bin":
		op, err := v.LookupPath(cue.ParsePath("op")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		left, err := parseExpr(v.LookupPath(cue.ParsePath("left")))
		if err != nil {
			return nil, err
		}
		right, err := parseExpr(v.LookupPath(cue.ParsePath("right")))
		if err != nil {
			return nil, err
		}
		return &ir.Bin{Pos: pos, Op: op, Left: left, Rght: right}, nil

	case "call":
		callee, err := v.LookupPath(cue.ParsePath("callee")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var args []ir.Expr
		argsVal := v.LookupPath(cue.ParsePath("args"))
		if argsVal.Exists() {
			args, err = parseBody(argsVal)
			if err != nil {
				return nil, err
			}
		}
		return &ir.Call{Pos: pos, Callee: callee, Args: args}, nil

	case "await":
		inner, err := parseExpr(v.LookupPath(cue.ParsePath("expr")))
		if err != nil {
			return nil, err
		}
		return &ir.Await{Pos: pos, Expr: inner}, nil

	case "try":
		inner, err := parseExpr(v.LookupPath(cue.ParsePath("expr")))
		if err != nil {
			return nil, err
		}
		return &ir.Try{Pos: pos, Expr: inner}, nil

	case "closure":
		return parseClosure(v, pos)

	case "defer":
		body, err := parseBody(v.LookupPath(cue.ParsePath("body")))
		if err != nil {
			return nil, err
		}
		return &ir.DeferBlock{Pos: pos, Body: body}, nil

	case "if":
		cond, err := parseExpr(v.LookupPath(cue.ParsePath("cond")))
		if err != nil {
			return nil, err
		}
		then, err := parseBody(v.LookupPath(cue.ParsePath("then")))
		if err != nil {
			return nil, err
		}
		node := &ir.If{Pos: pos, Cond: cond, Then: then}
		elseVal := v.LookupPath(cue.ParsePath("else"))
		if elseVal.Exists() {
			node.Else, err = parseBody(elseVal)
			if err != nil {
				return nil, err
			}
		}
		return node, nil

	case "loop":
		count, err := parseExpr(v.LookupPath(cue.ParsePath("count")))
		if err != nil {
			return nil, err
		}
		body, err := parseBody(v.LookupPath(cue.ParsePath("body")))
		if err != nil {
			return nil, err
		}
		return &ir.Loop{Pos: pos, Count: count, Body: body}, nil

	case "return":
		node := &ir.Return{Pos: pos}
		exprVal := v.LookupPath(cue.ParsePath("expr"))
		if exprVal.Exists() {
			node.Expr, err = parseExpr(exprVal)
			if err != nil {
				return nil, err
			}
		}
		return node, nil

	case "raise":
		code, err := v.LookupPath(cue.ParsePath("code")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &ir.Raise{Pos: pos, Code: code}, nil

	default:
		return nil, &CompileError{
			Field:   "expr.kind",
			Message: fmt.Sprintf("unknown expression kind %q", kind),
			Pos:     v.Pos(),
		}
	}
}

// parseClosure parses a closure literal. The async field is tri-state:
// absent means "infer from the body".
func parseClosure(v cue.Value, pos ir.Pos) (ir.Expr, error) {
	cl := &ir.Closure{Pos: pos}

	asyncVal := v.LookupPath(cue.ParsePath("async"))
	if asyncVal.Exists() {
		b, err := asyncVal.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		cl.Async = &b
	}

	throws, err := optionalBool(v, "throws")
	if err != nil {
		return nil, err
	}
	cl.Throws = throws

	cl.Params, err = parseParams(v.LookupPath(cue.ParsePath("params")))
	if err != nil {
		return nil, err
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if bodyVal.Exists() {
		cl.Body, err = parseBody(bodyVal)
		if err != nil {
			return nil, err
		}
	}

	return cl, nil
}

// parseLitValue converts a CUE scalar into a runtime value.
// Null maps to Unit; floats are forbidden, the value domain is
// deliberately integral.
func parseLitValue(v cue.Value) (ir.Value, error) {
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "lit.value",
			Message: "literal value is required",
			Pos:     v.Pos(),
		}
	}

	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Str(s), nil
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(i), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.NullKind:
		return ir.Unit{}, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "lit.value",
			Message: "float literals are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "lit.value",
			Message: fmt.Sprintf("unsupported literal kind: %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}
