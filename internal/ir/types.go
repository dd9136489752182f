package ir

import "strings"

// Pos identifies a source location in a compiled program document.
// Line and Col are 1-based; a zero Pos means "position unknown".
type Pos struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Col  int    `json:"col,omitempty"`
}

// IsZero reports whether the position carries no location information.
func (p Pos) IsZero() bool {
	return p.File == "" && p.Line == 0 && p.Col == 0
}

// String renders the position as "file:line:col" for diagnostics.
func (p Pos) String() string {
	if p.IsZero() {
		return "<unknown>"
	}
	var b strings.Builder
	b.WriteString(p.File)
	if p.Line > 0 {
		b.WriteString(":")
		writeInt(&b, p.Line)
		if p.Col > 0 {
			b.WriteString(":")
			writeInt(&b, p.Col)
		}
	}
	return b.String()
}

func writeInt(b *strings.Builder, n int) {
	if n >= 10 {
		writeInt(b, n/10)
	}
	b.WriteByte(byte('0' + n%10))
}

// Param is a declared function parameter.
//
// Autoclosure marks an argument position that implicitly wraps the passed
// expression in a deferred closure evaluated inside the callee. Suspension
// inside such an argument is only legal when the receiving function is
// itself async (see the validator).
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Autoclosure bool   `json:"autoclosure,omitempty"`
}

// FuncSig is a function signature with its capability qualifiers.
//
// The two qualifiers are declared jointly; when both are present the
// rendered order is fixed: async precedes throws. Context is the declared
// executor affinity label; empty means "inherit the caller's context".
type FuncSig struct {
	Name    string  `json:"name"`
	Async   bool    `json:"async,omitempty"`
	Throws  bool    `json:"throws,omitempty"`
	Params  []Param `json:"params,omitempty"`
	Result  string  `json:"result,omitempty"` // type name; "" means Unit
	Context string  `json:"context,omitempty"`
}

// Qualifiers renders the capability qualifiers in declaration order.
// Returns "" for a plain synchronous, non-throwing signature.
func (s FuncSig) Qualifiers() string {
	switch {
	case s.Async && s.Throws:
		return "async throws"
	case s.Async:
		return "async"
	case s.Throws:
		return "throws"
	default:
		return ""
	}
}

// String renders the signature for diagnostics, e.g. "fetch(url: Str) async throws -> Str".
func (s FuncSig) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString("(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Type)
	}
	b.WriteString(")")
	if q := s.Qualifiers(); q != "" {
		b.WriteString(" ")
		b.WriteString(q)
	}
	if s.Result != "" {
		b.WriteString(" -> ")
		b.WriteString(s.Result)
	}
	return b.String()
}

// FuncType is the type of a function value, reduced to what conversion
// checking needs: parameter types, result type, and the two capability
// qualifiers. Used by the capability conversion lattice in internal/types.
type FuncType struct {
	Async  bool     `json:"async,omitempty"`
	Throws bool     `json:"throws,omitempty"`
	Params []string `json:"params,omitempty"`
	Result string   `json:"result,omitempty"`
}

// Type returns the FuncType corresponding to the signature.
func (s FuncSig) Type() FuncType {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.Type
	}
	return FuncType{Async: s.Async, Throws: s.Throws, Params: params, Result: s.Result}
}

// String renders the function type, e.g. "(Str) async -> Int".
func (t FuncType) String() string {
	var b strings.Builder
	b.WriteString("(")
	b.WriteString(strings.Join(t.Params, ", "))
	b.WriteString(")")
	if t.Async {
		b.WriteString(" async")
	}
	if t.Throws {
		b.WriteString(" throws")
	}
	b.WriteString(" -> ")
	if t.Result == "" {
		b.WriteString("Unit")
	} else {
		b.WriteString(t.Result)
	}
	return b.String()
}

// FuncDecl is a function declaration: signature plus body.
type FuncDecl struct {
	Sig  FuncSig `json:"sig"`
	Pos  Pos     `json:"pos,omitempty"`
	Body []Expr  `json:"-"`
}

// Accessor is a property getter or setter body.
// Async is the declared qualifier; it is only ever legal on getters.
type Accessor struct {
	Async bool   `json:"async,omitempty"`
	Pos   Pos    `json:"pos,omitempty"`
	Body  []Expr `json:"-"`
}

// PropDecl is a settable-storage declaration with optional accessors.
//
// A setter's implicit pass-by-reference contract requires it to be
// effectively instantaneous and non-failing, so Set.Async is a
// declaration-time error; only getters may be async.
type PropDecl struct {
	Name string    `json:"name"`
	Type string    `json:"type"`
	Pos  Pos       `json:"pos,omitempty"`
	Get  *Accessor `json:"get,omitempty"`
	Set  *Accessor `json:"set,omitempty"`
}

// Program is a compiled Seam module: an ordered set of function
// declarations (overloads share a name) and property declarations.
// Declaration order is preserved and never changes after compilation.
type Program struct {
	Module string      `json:"module"`
	Funcs  []*FuncDecl `json:"funcs"`
	Props  []*PropDecl `json:"props,omitempty"`
}

// Overloads returns every function declaration sharing the given base name,
// in declaration order.
func (p *Program) Overloads(name string) []*FuncDecl {
	var out []*FuncDecl
	for _, f := range p.Funcs {
		if f.Sig.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// Func returns the sole declaration for name, or nil if the name is
// missing or overloaded. Call sites that may face overload sets go through
// overload resolution in internal/types instead.
func (p *Program) Func(name string) *FuncDecl {
	decls := p.Overloads(name)
	if len(decls) != 1 {
		return nil
	}
	return decls[0]
}
