// Package engine lowers validated Seam programs into resumable state
// machines and executes them under the handoff protocol.
//
// Per call the protocol is a fixed sequence:
//
//	ARGS_EVAL -> CONTEXT_RESOLVE -> SUSPEND_OUT? -> CALLEE_RUN ->
//	SUSPEND_BACK? -> CALLER_RESUME -> COMPLETE
//
// Arguments evaluate left-to-right under ordinary rules. The callee's
// execution context comes from the injected Resolver, once per call. When
// it differs from the caller's current context, the caller suspends and a
// resumption unit for the callee is enqueued on the callee's context; on
// completion the callee suspends and a unit for the caller is enqueued on
// the caller's original context. Each unit executes at most once, and
// exactly once absent explicit cancellation; cancellation signals through
// the trace and the run result, never by silently dropping a unit.
//
// Scheduling is cooperative and single-threaded: the run loop multiplexes
// all execution contexts, so work on one context is atomic with respect to
// everything else queued on that same context between suspension points.
// Ordering among queued units is a pluggable policy (FIFO by default);
// only eventual, exactly-once execution is guaranteed.
//
// Blocking policy (contractual, not mechanically enforced): lowered code
// must not block its worker on an event with no scheduled producer.
// Suspension is the only sanctioned yield mechanism.
//
// Lowering represents each activation as a frame in a per-task arena
// indexed by an integer program counter; locals that survive a suspension
// live in the frame, independent of the Go call stack.
package engine
