package engine

import (
	"github.com/seamlang/seam/internal/ir"
)

// Context is an opaque execution-context token: a scheduling domain on
// which resumption units run. The engine never inspects a token beyond
// handing it back to the Resolver's equality predicate.
type Context struct {
	Label string
	ID    string
}

// String renders the token for traces and logs.
func (c Context) String() string {
	if c.ID == "" {
		return "<none>"
	}
	return c.ID
}

// Resolver is the external isolation collaborator. It assigns every call
// to an execution context and decides context identity. The engine
// resolves the callee's context exactly once per call and compares tokens
// only through Same; the exact equality semantics belong to the resolver.
type Resolver interface {
	// Root returns the context a fresh run starts on.
	Root() Context

	// Resolve returns the context the given callee runs on, given the
	// caller's current context.
	Resolve(sig *ir.FuncSig, caller Context) Context

	// Same reports whether two tokens denote the same context.
	Same(a, b Context) bool
}

// DefaultRootLabel is the label of the context a run's entry function
// starts on when the entry declares no affinity.
const DefaultRootLabel = "main"

// LabelResolver maps declared affinity labels to serial contexts, one per
// label. Callees with no declared label inherit the caller's context.
// Token IDs derive from the label, so traces are deterministic.
type LabelResolver struct {
	contexts map[string]Context
}

// NewLabelResolver creates a resolver with no contexts materialized yet.
func NewLabelResolver() *LabelResolver {
	return &LabelResolver{contexts: make(map[string]Context)}
}

// Root implements Resolver: runs start on the default root context.
func (r *LabelResolver) Root() Context {
	return r.context(DefaultRootLabel)
}

// context returns the serial context for a label, materializing it on
// first use.
func (r *LabelResolver) context(label string) Context {
	ctx, ok := r.contexts[label]
	if !ok {
		ctx = Context{Label: label, ID: "ctx-" + label}
		r.contexts[label] = ctx
	}
	return ctx
}

// Resolve implements Resolver: declared affinity wins, otherwise the
// callee inherits the caller's context.
func (r *LabelResolver) Resolve(sig *ir.FuncSig, caller Context) Context {
	if sig.Context == "" {
		return caller
	}
	return r.context(sig.Context)
}

// Same implements Resolver by token ID equality.
func (r *LabelResolver) Same(a, b Context) bool {
	return a.ID == b.ID
}
