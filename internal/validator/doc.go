// Package validator performs static suspension checking on compiled Seam
// programs.
//
// The validator resolves every call expression through the capability type
// system, marks each call whose target is async as a suspension point, and
// enforces the placement rules: a suspension point must sit inside an
// asynchronous context, must be covered by an await wrapper, may not occur
// inside a scoped-cleanup block, and may not occur inside an autoclosure
// argument of a non-async function. It also infers the asynchronous
// qualification of unannotated closure literals from their own top-level
// bodies.
//
// Validation annotates the program in place (resolved callees, suspension
// marks, inference results) and returns every diagnostic found; lowering
// is only attempted on programs that validate cleanly.
package validator
