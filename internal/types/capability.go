package types

import (
	"fmt"
	"slices"

	"github.com/seamlang/seam/internal/ir"
)

// Capability classifies a function value by its two qualifiers.
type Capability struct {
	Async  bool
	Throws bool
}

// CapabilityOf extracts the capability class of a function type.
func CapabilityOf(t ir.FuncType) Capability {
	return Capability{Async: t.Async, Throws: t.Throws}
}

// String renders the capability in declaration order ("async throws").
func (c Capability) String() string {
	switch {
	case c.Async && c.Throws:
		return "async throws"
	case c.Async:
		return "async"
	case c.Throws:
		return "throws"
	default:
		return "sync"
	}
}

// CheckConvert validates a conversion from one function type to another.
//
// The lattice admits exactly two widenings:
//
//	sync           -> sync throws
//	async          -> async throws
//
// Identity conversions are allowed. Any conversion crossing the sync/async
// boundary fails in either direction: a non-async value has no suspension
// protocol to run, and treating an async value as sync would erase its
// suspension points. Callers needing a bridge write an explicit async
// closure; no implicit coercion exists, because implicit sync->async would
// make overload resolution ambiguous whenever both variants of an
// operation are declared.
//
// Returns nil when the conversion is permitted. Shape mismatches (params,
// result) are reported as a plain error; capability violations produce an
// ir.Diagnostic with code INVALID_CAPABILITY_CONVERSION so callers can
// attach a source position.
func CheckConvert(src, dst ir.FuncType, pos ir.Pos) error {
	if !slices.Equal(src.Params, dst.Params) || src.Result != dst.Result {
		return fmt.Errorf("function shapes differ: %s vs %s", src, dst)
	}

	if src.Async != dst.Async {
		return ir.Diagnostic{
			Code: ir.DiagInvalidConversion,
			Message: fmt.Sprintf("cannot convert %s to %s: conversions may not cross the sync/async boundary",
				src, dst),
			Pos: pos,
		}
	}

	// Throws may widen but never narrow.
	if src.Throws && !dst.Throws {
		return ir.Diagnostic{
			Code: ir.DiagInvalidConversion,
			Message: fmt.Sprintf("cannot convert %s to %s: a throwing value cannot lose its error capability",
				src, dst),
			Pos: pos,
		}
	}

	return nil
}

// Convertible is the predicate form of CheckConvert.
func Convertible(src, dst ir.FuncType) bool {
	return CheckConvert(src, dst, ir.Pos{}) == nil
}
