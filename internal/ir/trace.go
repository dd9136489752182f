package ir

// TraceKind classifies handoff-protocol trace events.
type TraceKind string

const (
	// TraceCall: a call began; arguments are fully evaluated and the
	// callee's execution context has been resolved.
	TraceCall TraceKind = "CALL"

	// TraceHandoffOut: the callee's context differs from the caller's; the
	// caller suspended and a resumption unit for the callee was enqueued.
	TraceHandoffOut TraceKind = "HANDOFF_OUT"

	// TraceResume: a resumption unit began executing on its context.
	TraceResume TraceKind = "RESUME"

	// TraceHandoffBack: the callee completed on a foreign context and a
	// resumption unit for the caller was enqueued on the caller's
	// original context.
	TraceHandoffBack TraceKind = "HANDOFF_BACK"

	// TraceComplete: a call completed with a value for its caller. When a
	// HANDOFF_BACK follows, the caller observes the value after resuming.
	TraceComplete TraceKind = "COMPLETE"

	// TraceError: a call completed by propagating an error.
	TraceError TraceKind = "ERROR"

	// TraceCancel: an enqueued resumption unit was explicitly cancelled
	// before running. Cancellation always signals; units are never
	// silently dropped.
	TraceCancel TraceKind = "CANCEL"
)

// Valid reports whether k is one of the defined trace kinds.
func (k TraceKind) Valid() bool {
	switch k {
	case TraceCall, TraceHandoffOut, TraceResume, TraceHandoffBack,
		TraceComplete, TraceError, TraceCancel:
		return true
	}
	return false
}

// TraceEvent is one entry in the handoff log of a run. Events are stamped
// with a logical clock; wall-clock time is never ordering-relevant.
type TraceEvent struct {
	Seq    int64     `json:"seq"`
	Kind   TraceKind `json:"kind"`
	Run    string    `json:"run"`
	CallID string    `json:"call_id,omitempty"`
	UnitID string    `json:"unit_id,omitempty"`
	Func   string    `json:"func,omitempty"` // resolved signature string
	From   string    `json:"from,omitempty"` // context token of the suspending side
	To     string    `json:"to,omitempty"`   // context token of the enqueued side
	Detail Rec       `json:"detail,omitempty"`
}
