package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/seamlang/seam/internal/ir"
)

// stepTask interprets the task's top frame until it either finishes or
// suspends across a context boundary. Returns a non-nil error only for
// engine-level failures that must abort scheduling; program-raised
// errors travel through the task's pendingErr and surface via
// task.finish.
func (e *Engine) stepTask(gctx context.Context, r *run) error {
	t := r.task
	for !t.done {
		if t.pendingErr != nil {
			suspended, err := e.unwind(gctx, r)
			if err != nil {
				return err
			}
			if suspended {
				return nil
			}
			continue
		}

		f := t.top()
		if f.pc >= len(f.fn.Code) {
			return e.internalf(r, f, "instruction pointer ran off the end of the body")
		}

		if r.steps++; r.steps > e.maxSteps {
			t.finish(nil, NewQuotaError(r.token, r.steps, e.maxSteps))
			return nil
		}

		in := f.fn.Code[f.pc]
		f.pc++

		switch in.Op {
		case opPush:
			f.push(in.Val)
		case opLoad:
			v, ok := f.locals[in.Name]
			if !ok {
				return e.internalf(r, f, "load of unbound name %q", in.Name)
			}
			f.push(v)
		case opStore:
			f.locals[in.Name] = f.pop()
		case opPop:
			f.pop()
		case opBin:
			right := f.pop()
			left := f.pop()
			v, err := applyBin(in.Name, left, right)
			if err != nil {
				return e.internalf(r, f, "%v", err)
			}
			f.push(v)
		case opJump:
			f.pc = in.Target
		case opJumpIfFalse:
			cond, ok := f.pop().(ir.Bool)
			if !ok {
				return e.internalf(r, f, "condition is not a Bool")
			}
			if !cond {
				f.pc = in.Target
			}
		case opLoopInit:
			n, ok := f.pop().(ir.Int)
			if !ok {
				return e.internalf(r, f, "loop count is not an Int")
			}
			f.locals[in.Name] = n
		case opLoopStep:
			n := f.locals[in.Name].(ir.Int)
			if n <= 0 {
				f.pc = in.Target
			} else {
				f.locals[in.Name] = n - 1
			}
		case opDefer:
			f.defers = append(f.defers, in.DeferIdx)
		case opReturn:
			var v ir.Value = ir.Unit{}
			if in.HasVal {
				v = f.pop()
			}
			suspended, err := e.returnValue(gctx, r, v)
			if err != nil {
				return err
			}
			if suspended {
				return nil
			}
		case opRaise:
			t.pendingErr = &RaisedError{Code: in.Name, Func: f.fn.Sig.Name}
		case opCall:
			suspended, err := e.call(gctx, r, in)
			if err != nil {
				return err
			}
			if suspended {
				return nil
			}
		default:
			return e.internalf(r, f, "unknown opcode %d", in.Op)
		}
	}
	return nil
}

// call dispatches an opCall. A non-suspending callee is evaluated inline
// on the caller's Go stack; a suspending one gets its own heap frame.
// Reports suspended=true when control left the current context and a
// resumption unit was enqueued.
func (e *Engine) call(gctx context.Context, r *run, in instr) (bool, error) {
	t := r.task
	caller := t.top()
	sig := in.Sig
	args := caller.popN(in.Argc)

	callID, err := ir.CallID(r.token, sig.String(), ir.List(args), e.clock.Next())
	if err != nil {
		return false, e.internalf(r, caller, "call id: %v", err)
	}
	if !sig.Async {
		// Validated programs never suspend inside a plain call, so the
		// whole subtree runs here, on the caller's context. A declared
		// affinity on a synchronous signature never takes effect, so the
		// event records the context the call actually runs on.
		e.record(gctx, r, ir.TraceEvent{
			Kind: ir.TraceCall, CallID: callID, Func: sig.String(),
			From: caller.ctx.String(), To: caller.ctx.String(),
		})
		v, err := e.evalSync(gctx, r, e.fns[sig], args, caller.ctx, callID, 0)
		if err != nil {
			var raised *RaisedError
			if !errors.As(err, &raised) {
				return false, err
			}
			e.record(gctx, r, ir.TraceEvent{
				Kind: ir.TraceError, CallID: callID, Func: sig.String(),
				From: caller.ctx.String(), Detail: ir.Rec{"error": ir.Str(raised.Code)},
			})
			t.pendingErr = raised
			return false, nil
		}
		e.record(gctx, r, ir.TraceEvent{
			Kind: ir.TraceComplete, CallID: callID, Func: sig.String(), From: caller.ctx.String(),
		})
		caller.push(v)
		return false, nil
	}

	callee := e.resolver.Resolve(sig, caller.ctx)

	e.record(gctx, r, ir.TraceEvent{
		Kind: ir.TraceCall, CallID: callID, Func: sig.String(),
		From: caller.ctx.String(), To: callee.String(),
	})

	t.pushFrame(newFrame(e.fns[sig], callee, callID, args))

	if e.resolver.Same(callee, caller.ctx) {
		// Same context: the handoff is degenerate and control continues
		// immediately in the callee without a scheduling round-trip.
		return false, nil
	}

	e.record(gctx, r, ir.TraceEvent{
		Kind: ir.TraceHandoffOut, CallID: callID, Func: sig.String(),
		From: caller.ctx.String(), To: callee.String(),
	})
	unitID, err := ir.UnitID(callID, UnitKindCalleeEntry, e.clock.Next())
	if err != nil {
		return false, e.internalf(r, caller, "unit id: %v", err)
	}
	e.enqueue(r, newUnit(unitID, UnitKindCalleeEntry, callee, t))
	return true, nil
}

// returnValue pops the finished frame and delivers its value to the
// caller frame, or finishes the task when the entry frame returns.
// Cleanup blocks registered by the frame run first, on its own context.
func (e *Engine) returnValue(gctx context.Context, r *run, v ir.Value) (bool, error) {
	t := r.task
	f := t.popFrame()

	if err := e.runCleanups(gctx, r, f); err != nil {
		return false, err
	}

	e.record(gctx, r, ir.TraceEvent{
		Kind: ir.TraceComplete, CallID: f.callID, Func: f.fn.Sig.String(), From: f.ctx.String(),
	})

	caller := t.top()
	if caller == nil {
		t.finish(v, nil)
		return false, nil
	}

	caller.push(v)
	if e.resolver.Same(f.ctx, caller.ctx) {
		return false, nil
	}

	e.record(gctx, r, ir.TraceEvent{
		Kind: ir.TraceHandoffBack, CallID: f.callID, Func: f.fn.Sig.String(),
		From: f.ctx.String(), To: caller.ctx.String(),
	})
	unitID, err := ir.UnitID(f.callID, UnitKindCallerResum, e.clock.Next())
	if err != nil {
		return false, e.internalf(r, caller, "unit id: %v", err)
	}
	e.enqueue(r, newUnit(unitID, UnitKindCallerResum, caller.ctx, t))
	return true, nil
}

// unwind propagates the task's pending error one frame outward: run the
// frame's cleanups, record the failure, and resume the caller.
func (e *Engine) unwind(gctx context.Context, r *run) (bool, error) {
	t := r.task
	f := t.popFrame()

	if err := e.runCleanups(gctx, r, f); err != nil {
		return false, err
	}

	e.record(gctx, r, ir.TraceEvent{
		Kind: ir.TraceError, CallID: f.callID, Func: f.fn.Sig.String(),
		From: f.ctx.String(), Detail: ir.Rec{"error": ir.Str(t.pendingErr.Code)},
	})

	caller := t.top()
	if caller == nil {
		t.finish(nil, t.pendingErr)
		t.pendingErr = nil
		return false, nil
	}

	if e.resolver.Same(f.ctx, caller.ctx) {
		return false, nil
	}

	// The error crosses the boundary through the same resume machinery a
	// value would: the caller is enqueued and observes the raise after
	// resuming on its own context.
	e.record(gctx, r, ir.TraceEvent{
		Kind: ir.TraceHandoffBack, CallID: f.callID, Func: f.fn.Sig.String(),
		From: f.ctx.String(), To: caller.ctx.String(),
	})
	unitID, err := ir.UnitID(f.callID, UnitKindCallerResum, e.clock.Next())
	if err != nil {
		return false, e.internalf(r, caller, "unit id: %v", err)
	}
	e.enqueue(r, newUnit(unitID, UnitKindCallerResum, caller.ctx, t))
	return true, nil
}

// runCleanups executes a frame's registered cleanup blocks in reverse
// registration order, sharing the frame's locals. Cleanup bodies cannot
// suspend or fail (the lowerer enforces both), so interpreting them
// inline on the frame's context suffices.
func (e *Engine) runCleanups(gctx context.Context, r *run, f *frame) error {
	for i := len(f.defers) - 1; i >= 0; i-- {
		body := f.fn.Defers[f.defers[i]]
		scratch := &frame{
			fn:     &lowered{Sig: f.fn.Sig, Code: body},
			ctx:    f.ctx,
			callID: f.callID,
			locals: f.locals,
		}
		if err := e.syncExec(gctx, r, scratch, 0); err != nil {
			return err
		}
	}
	f.defers = nil
	return nil
}

// evalSync runs a non-suspending function to completion on the caller's
// Go stack. depth guards against unbounded plain-call recursion.
func (e *Engine) evalSync(gctx context.Context, r *run, fn *lowered, args []ir.Value, ctx Context, callID string, depth int) (ir.Value, error) {
	if depth > maxSyncDepth {
		return nil, &RunError{
			Code: ErrCodeQuotaExceeded, Run: r.token, Func: fn.Sig.Name,
			Message: fmt.Sprintf("call depth exceeded %d", maxSyncDepth),
		}
	}
	f := newFrame(fn, ctx, callID, args)
	if err := e.syncExec(gctx, r, f, depth); err != nil {
		return nil, err
	}
	ret := f.pop()
	if err := e.runCleanups(gctx, r, f); err != nil {
		return nil, err
	}
	return ret, nil
}

// syncExec interprets a frame that is guaranteed never to suspend,
// leaving the return value on the frame's stack. Registered cleanups are
// the caller's responsibility. A raise comes back as *RaisedError.
func (e *Engine) syncExec(gctx context.Context, r *run, f *frame, depth int) error {
	for f.pc < len(f.fn.Code) {
		if r.steps++; r.steps > e.maxSteps {
			return NewQuotaError(r.token, r.steps, e.maxSteps)
		}
		in := f.fn.Code[f.pc]
		f.pc++

		switch in.Op {
		case opPush:
			f.push(in.Val)
		case opLoad:
			v, ok := f.locals[in.Name]
			if !ok {
				return e.internalf(r, f, "load of unbound name %q", in.Name)
			}
			f.push(v)
		case opStore:
			f.locals[in.Name] = f.pop()
		case opPop:
			f.pop()
		case opBin:
			right := f.pop()
			left := f.pop()
			v, err := applyBin(in.Name, left, right)
			if err != nil {
				return e.internalf(r, f, "%v", err)
			}
			f.push(v)
		case opJump:
			f.pc = in.Target
		case opJumpIfFalse:
			cond, ok := f.pop().(ir.Bool)
			if !ok {
				return e.internalf(r, f, "condition is not a Bool")
			}
			if !cond {
				f.pc = in.Target
			}
		case opLoopInit:
			n, ok := f.pop().(ir.Int)
			if !ok {
				return e.internalf(r, f, "loop count is not an Int")
			}
			f.locals[in.Name] = n
		case opLoopStep:
			n := f.locals[in.Name].(ir.Int)
			if n <= 0 {
				f.pc = in.Target
			} else {
				f.locals[in.Name] = n - 1
			}
		case opDefer:
			f.defers = append(f.defers, in.DeferIdx)
		case opReturn:
			if !in.HasVal {
				f.push(ir.Unit{})
			}
			return nil
		case opRaise:
			return &RaisedError{Code: in.Name, Func: f.fn.Sig.Name}
		case opCall:
			sig := in.Sig
			if sig.Async {
				return e.internalf(r, f, "suspending call %s reached a non-suspending body", sig.Name)
			}
			args := f.popN(in.Argc)
			callID, err := ir.CallID(r.token, sig.String(), ir.List(args), e.clock.Next())
			if err != nil {
				return e.internalf(r, f, "call id: %v", err)
			}
			e.record(gctx, r, ir.TraceEvent{
				Kind: ir.TraceCall, CallID: callID, Func: sig.String(),
				From: f.ctx.String(), To: f.ctx.String(),
			})
			v, err := e.evalSync(gctx, r, e.fns[sig], args, f.ctx, callID, depth+1)
			if err != nil {
				var raised *RaisedError
				if errors.As(err, &raised) {
					e.record(gctx, r, ir.TraceEvent{
						Kind: ir.TraceError, CallID: callID, Func: sig.String(),
						From: f.ctx.String(), Detail: ir.Rec{"error": ir.Str(raised.Code)},
					})
				}
				return err
			}
			e.record(gctx, r, ir.TraceEvent{
				Kind: ir.TraceComplete, CallID: callID, Func: sig.String(), From: f.ctx.String(),
			})
			f.push(v)
		default:
			return e.internalf(r, f, "unknown opcode %d", in.Op)
		}
	}
	return e.internalf(r, f, "body finished without a return")
}

func (e *Engine) internalf(r *run, f *frame, format string, args ...any) error {
	return &RunError{
		Code: ErrCodeInternal, Run: r.token, Func: f.fn.Sig.Name,
		Message: fmt.Sprintf(format, args...),
	}
}

// applyBin evaluates the closed operator set. The validator rejects every
// operator outside ir.ValidBinOp, so an unknown here is an internal error.
func applyBin(op string, left, right ir.Value) (ir.Value, error) {
	switch op {
	case "+":
		switch l := left.(type) {
		case ir.Int:
			if r, ok := right.(ir.Int); ok {
				return l + r, nil
			}
		case ir.Str:
			if r, ok := right.(ir.Str); ok {
				return l + r, nil
			}
		}
	case "-":
		if l, ok := left.(ir.Int); ok {
			if r, ok := right.(ir.Int); ok {
				return l - r, nil
			}
		}
	case "*":
		if l, ok := left.(ir.Int); ok {
			if r, ok := right.(ir.Int); ok {
				return l * r, nil
			}
		}
	case "==":
		return ir.Bool(ir.Equal(left, right)), nil
	case "!=":
		return ir.Bool(!ir.Equal(left, right)), nil
	case "<":
		if l, ok := left.(ir.Int); ok {
			if r, ok := right.(ir.Int); ok {
				return ir.Bool(l < r), nil
			}
		}
	case "<=":
		if l, ok := left.(ir.Int); ok {
			if r, ok := right.(ir.Int); ok {
				return ir.Bool(l <= r), nil
			}
		}
	case ">":
		if l, ok := left.(ir.Int); ok {
			if r, ok := right.(ir.Int); ok {
				return ir.Bool(l > r), nil
			}
		}
	case ">=":
		if l, ok := left.(ir.Int); ok {
			if r, ok := right.(ir.Int); ok {
				return ir.Bool(l >= r), nil
			}
		}
	case "and":
		if l, ok := left.(ir.Bool); ok {
			if r, ok := right.(ir.Bool); ok {
				return ir.Bool(bool(l) && bool(r)), nil
			}
		}
	case "or":
		if l, ok := left.(ir.Bool); ok {
			if r, ok := right.(ir.Bool); ok {
				return ir.Bool(bool(l) || bool(r)), nil
			}
		}
	default:
		return nil, fmt.Errorf("unknown operator %q", op)
	}
	return nil, fmt.Errorf("operator %q not defined for %s and %s", op, ir.TypeName(left), ir.TypeName(right))
}
