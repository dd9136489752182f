// Package tracefilter provides an abstract predicate language over
// stored trace events, compiled to parameterized SQL for SQLite.
//
// Filters are a sealed interface: only types in this package implement
// it, which keeps the backend compiler's type switch exhaustive. Every
// compiled query orders by seq so results are deterministic, and every
// value travels as a ? parameter, never interpolated.
package tracefilter

import "github.com/seamlang/seam/internal/ir"

// Filter is an abstract predicate over trace events.
//
// This is a sealed interface - only types in this package implement it.
//
// Filter types:
//   - KindIs: event kind equals a protocol state
//   - FuncIs: event function signature equals a rendered signature
//   - CallIs: event belongs to one call
//   - ContextIs: event touches a context (as source or destination)
//   - SeqAtLeast / SeqAtMost: seq range bounds
//   - And: all filters must hold
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// KindIs matches events of one protocol kind.
type KindIs struct {
	Kind ir.TraceKind
}

func (KindIs) filterNode() {}

// FuncIs matches events recorded for one function, by its rendered
// signature (e.g. "fetch(url: Str) async throws -> Str").
type FuncIs struct {
	Func string
}

func (FuncIs) filterNode() {}

// CallIs matches every event of one call: its CALL, handoffs, resumes
// and final COMPLETE or ERROR.
type CallIs struct {
	CallID string
}

func (CallIs) filterNode() {}

// ContextIs matches events that touch a context on either side: events
// leaving it (from) and events targeting it (to).
type ContextIs struct {
	Context string
}

func (ContextIs) filterNode() {}

// SeqAtLeast matches events with seq >= Seq.
type SeqAtLeast struct {
	Seq int64
}

func (SeqAtLeast) filterNode() {}

// SeqAtMost matches events with seq <= Seq.
type SeqAtMost struct {
	Seq int64
}

func (SeqAtMost) filterNode() {}

// And holds when every child filter holds. An empty And is always true.
type And struct {
	Filters []Filter
}

func (And) filterNode() {}
