// Package ir provides the canonical intermediate representation for Seam
// programs: function signatures, the expression AST, runtime values, and
// the static diagnostics emitted by the front end.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps IR
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use Int (int64) for numbers
//   - The Expr and Value interfaces are sealed (marker methods)
//   - Suspension-relevant structure (Await, DeferBlock, autoclosure params)
//     is explicit in the AST, never reconstructed downstream
//   - Content-addressed identity uses canonical JSON only (canonical.go)
package ir
