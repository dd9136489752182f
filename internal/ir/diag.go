package ir

import "fmt"

// DiagCode categorizes static diagnostics. Every error this core produces
// is static and blocks lowering; none is runtime-recoverable.
type DiagCode string

const (
	// DiagSuspendOutsideAsync: a suspension point occurs in a context that
	// is not asynchronous (declared or inferred).
	DiagSuspendOutsideAsync DiagCode = "SUSPEND_OUTSIDE_ASYNC"

	// DiagSuspendUnmarked: a suspension point is not lexically enclosed by
	// an await wrapper expression.
	DiagSuspendUnmarked DiagCode = "SUSPEND_UNMARKED"

	// DiagSuspendInDefer: a suspension point occurs inside a scoped-cleanup
	// block. Cleanup runs atomically relative to scope exit.
	DiagSuspendInDefer DiagCode = "SUSPEND_IN_DEFER"

	// DiagSuspendInAutoclosure: a suspension point occurs inside an
	// autoclosure argument of a non-async function.
	DiagSuspendInAutoclosure DiagCode = "SUSPEND_IN_AUTOCLOSURE"

	// DiagInvalidConversion: a function value conversion crosses the
	// sync/async capability boundary.
	DiagInvalidConversion DiagCode = "INVALID_CAPABILITY_CONVERSION"

	// DiagAmbiguousOverload: more than one candidate remains viable after
	// context-capability filtering and preference ranking.
	DiagAmbiguousOverload DiagCode = "AMBIGUOUS_OVERLOAD"

	// DiagAsyncSetter: a settable-storage declaration carries the async
	// qualifier on its setter.
	DiagAsyncSetter DiagCode = "ASYNC_SETTER"

	// DiagMissingTry: a call whose resolved target throws is not enclosed
	// by an error-propagation wrapper.
	DiagMissingTry DiagCode = "MISSING_TRY"

	// DiagUnknownFunction: a call names a function with no declaration.
	DiagUnknownFunction DiagCode = "UNKNOWN_FUNCTION"

	// DiagArityMismatch: a call's argument count matches no candidate.
	DiagArityMismatch DiagCode = "ARITY_MISMATCH"

	// DiagUnknownOperator: a binary expression carries an operator outside
	// the closed operator set (see ir.ValidBinOp).
	DiagUnknownOperator DiagCode = "UNKNOWN_OPERATOR"
)

// Diagnostic is a static error located in a compiled program.
type Diagnostic struct {
	Code    DiagCode `json:"code"`
	Message string   `json:"message"`
	Func    string   `json:"func,omitempty"` // enclosing declaration name
	Pos     Pos      `json:"pos,omitempty"`
}

// Error implements the error interface so a Diagnostic can travel through
// error-returning call chains.
func (d Diagnostic) Error() string {
	return d.String()
}

// String renders the diagnostic as "CODE: message (func, at pos)".
func (d Diagnostic) String() string {
	loc := ""
	switch {
	case d.Func != "" && !d.Pos.IsZero():
		loc = fmt.Sprintf(" (in %s, at %s)", d.Func, d.Pos)
	case d.Func != "":
		loc = fmt.Sprintf(" (in %s)", d.Func)
	case !d.Pos.IsZero():
		loc = fmt.Sprintf(" (at %s)", d.Pos)
	}
	return fmt.Sprintf("%s: %s%s", d.Code, d.Message, loc)
}
