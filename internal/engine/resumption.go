package engine

import "sync/atomic"

// UnitState is the lifecycle state of a resumption unit.
type UnitState int32

const (
	// UnitPending: enqueued, not yet run.
	UnitPending UnitState = iota
	// UnitRunning: the run loop picked the unit and is executing it.
	UnitRunning
	// UnitDone: the unit executed.
	UnitDone
	// UnitCancelled: the unit was explicitly cancelled before running.
	UnitCancelled
)

// Unit kinds, part of unit identity.
const (
	UnitKindRunStart    = "run-start"
	UnitKindCalleeEntry = "callee-entry"
	UnitKindCallerResum = "caller-resume"
)

// ResumptionUnit is the deferred remainder of a call: the continuation
// enqueued on exactly one execution context after a handoff.
//
// The state machine Pending -> Running -> Done (or Pending -> Cancelled)
// advances by compare-and-swap, so a unit executes at most once - and
// exactly once unless explicitly cancelled. A cancelled unit is signalled
// through the trace and the run result; it is never silently discarded.
type ResumptionUnit struct {
	ID     string
	Kind   string
	Target Context

	task  *task
	state atomic.Int32
}

func newUnit(id, kind string, target Context, t *task) *ResumptionUnit {
	return &ResumptionUnit{ID: id, Kind: kind, Target: target, task: t}
}

// State returns the current lifecycle state.
func (u *ResumptionUnit) State() UnitState {
	return UnitState(u.state.Load())
}

// begin transitions Pending -> Running. Returns false when the unit was
// cancelled (or already ran), in which case it must not execute.
func (u *ResumptionUnit) begin() bool {
	return u.state.CompareAndSwap(int32(UnitPending), int32(UnitRunning))
}

// finish transitions Running -> Done.
func (u *ResumptionUnit) finish() {
	u.state.CompareAndSwap(int32(UnitRunning), int32(UnitDone))
}

// Cancel transitions Pending -> Cancelled. Returns false when the unit
// already ran, is running, or was cancelled before.
func (u *ResumptionUnit) Cancel() bool {
	return u.state.CompareAndSwap(int32(UnitPending), int32(UnitCancelled))
}
