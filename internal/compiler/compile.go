// Package compiler turns CUE module definitions into IR programs.
//
// A Seam module is a CUE file with a module name, a list of function
// declarations (overloads are simply repeated names) and an optional
// list of property declarations:
//
//	module: "demo"
//	func: [{
//		name:    "fetch"
//		async:   true
//		throws:  true
//		context: "io"
//		params: [{name: "url", type: "Str"}]
//		result: "Str"
//		body: [
//			{kind: "return", expr: {kind: "bin", op: "+",
//				left:  {kind: "lit", value: "body:"},
//				right: {kind: "ref", name: "url"},
//			}},
//		]
//	}]
//
// The compiler is purely syntactic: it builds the declaration surface
// and expression trees, and leaves capability checking, overload
// resolution and suspension placement to internal/validator.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/seamlang/seam/internal/ir"
)

// Compile parses a CUE value holding a whole Seam module.
// Uses the CUE SDK's Go API directly (not CLI subprocess).
func Compile(v cue.Value) (*ir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	p := &ir.Program{}

	moduleVal := v.LookupPath(cue.ParsePath("module"))
	if !moduleVal.Exists() {
		return nil, &CompileError{
			Field:   "module",
			Message: "module name is required",
			Pos:     v.Pos(),
		}
	}
	module, err := moduleVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	p.Module = module

	p.Funcs, err = parseFuncs(v)
	if err != nil {
		return nil, err
	}
	if len(p.Funcs) == 0 {
		return nil, &CompileError{
			Field:   "func",
			Message: "at least one function is required",
			Pos:     v.Pos(),
		}
	}

	p.Props, err = parseProps(v)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// parseFuncs extracts the function declaration list. Order is preserved:
// overload resolution and traces depend on declaration order being
// stable.
func parseFuncs(v cue.Value) ([]*ir.FuncDecl, error) {
	var funcs []*ir.FuncDecl

	funcVal := v.LookupPath(cue.ParsePath("func"))
	if !funcVal.Exists() {
		return funcs, nil
	}

	iter, err := funcVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		decl, err := parseFunc(iter.Value())
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, decl)
	}

	return funcs, nil
}

func parseFunc(v cue.Value) (*ir.FuncDecl, error) {
	decl := &ir.FuncDecl{Pos: position(v)}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "func.name",
			Message: "function name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	decl.Sig.Name = name

	decl.Sig.Async, err = optionalBool(v, "async")
	if err != nil {
		return nil, err
	}
	decl.Sig.Throws, err = optionalBool(v, "throws")
	if err != nil {
		return nil, err
	}
	decl.Sig.Context, err = optionalString(v, "context")
	if err != nil {
		return nil, err
	}
	decl.Sig.Result, err = optionalString(v, "result")
	if err != nil {
		return nil, err
	}

	// context(...) affinity only decides where suspension-capable work
	// lands; on a plain function there is nothing to place.
	if decl.Sig.Context != "" && !decl.Sig.Async {
		return nil, &CompileError{
			Field:   fmt.Sprintf("func.%s.context", name),
			Message: "context affinity requires the async qualifier",
			Pos:     v.Pos(),
		}
	}

	decl.Sig.Params, err = parseParams(v.LookupPath(cue.ParsePath("params")))
	if err != nil {
		return nil, err
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("func.%s.body", name),
			Message: "function body is required",
			Pos:     v.Pos(),
		}
	}
	decl.Body, err = parseBody(bodyVal)
	if err != nil {
		return nil, err
	}

	return decl, nil
}

func parseParams(v cue.Value) ([]ir.Param, error) {
	if !v.Exists() {
		return nil, nil
	}

	var params []ir.Param
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		pv := iter.Value()

		name, err := pv.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		typ, err := pv.LookupPath(cue.ParsePath("type")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		auto, err := optionalBool(pv, "autoclosure")
		if err != nil {
			return nil, err
		}

		params = append(params, ir.Param{Name: name, Type: typ, Autoclosure: auto})
	}

	return params, nil
}

// parseProps extracts property declarations with their optional
// accessors.
func parseProps(v cue.Value) ([]*ir.PropDecl, error) {
	propVal := v.LookupPath(cue.ParsePath("prop"))
	if !propVal.Exists() {
		return nil, nil
	}

	var props []*ir.PropDecl
	iter, err := propVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		pv := iter.Value()
		prop := &ir.PropDecl{Pos: position(pv)}

		prop.Name, err = pv.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		prop.Type, err = pv.LookupPath(cue.ParsePath("type")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		prop.Get, err = parseAccessor(pv.LookupPath(cue.ParsePath("get")))
		if err != nil {
			return nil, err
		}
		prop.Set, err = parseAccessor(pv.LookupPath(cue.ParsePath("set")))
		if err != nil {
			return nil, err
		}

		props = append(props, prop)
	}

	return props, nil
}

func parseAccessor(v cue.Value) (*ir.Accessor, error) {
	if !v.Exists() {
		return nil, nil
	}

	acc := &ir.Accessor{Pos: position(v)}

	async, err := optionalBool(v, "async")
	if err != nil {
		return nil, err
	}
	acc.Async = async

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if bodyVal.Exists() {
		acc.Body, err = parseBody(bodyVal)
		if err != nil {
			return nil, err
		}
	}

	return acc, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// position converts a CUE source position to an IR position.
func position(v cue.Value) ir.Pos {
	pos := v.Pos()
	if !pos.IsValid() {
		return ir.Pos{}
	}
	return ir.Pos{File: pos.Filename(), Line: pos.Line(), Col: pos.Column()}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
