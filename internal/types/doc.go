// Package types implements the capability type system for Seam function
// values: the conversion lattice between sync/async and throwing/non-throwing
// function types, context-sensitive overload resolution, and declaration-level
// capability checks.
//
// Overload resolution is two explicit phases: signature-based candidate
// collection (Candidates) and a pure scoring pass (Resolve) that filters by
// calling-context capability. Keeping the second phase pure makes the
// preference rules independently testable.
package types
