package engine

import "github.com/seamlang/seam/internal/ir"

// frame is one resumable activation: a program counter over the lowered
// code plus operand stack, locals and registered cleanups. Frames live on
// the task's arena, never on the Go call stack, so locals survive any
// number of suspensions unchanged.
type frame struct {
	fn     *lowered
	ctx    Context // execution context this activation runs on
	callID string
	pc     int
	stack  []ir.Value
	locals map[string]ir.Value
	defers []int // registered cleanup bodies, run LIFO on exit
}

func newFrame(fn *lowered, ctx Context, callID string, args []ir.Value) *frame {
	locals := make(map[string]ir.Value, len(fn.Sig.Params))
	for i, p := range fn.Sig.Params {
		locals[p.Name] = args[i]
	}
	return &frame{fn: fn, ctx: ctx, callID: callID, locals: locals}
}

func (f *frame) push(v ir.Value) {
	f.stack = append(f.stack, v)
}

func (f *frame) pop() ir.Value {
	v := f.stack[len(f.stack)-1]
	f.stack[len(f.stack)-1] = nil
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *frame) popN(n int) []ir.Value {
	out := make([]ir.Value, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = f.pop()
	}
	return out
}

// task is one logical activation chain: the arena of frames for a call
// tree rooted at the run's entry. A task migrates between context queues
// as its calls hand off; at any moment it is either running, waiting in
// exactly one queue, or finished.
type task struct {
	run    string
	frames []*frame

	// pendingErr is a raised error travelling down the frame arena
	// during unwinding. Cleared only when the task finishes.
	pendingErr *RaisedError

	done  bool
	value ir.Value
	err   error
}

func (t *task) top() *frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

func (t *task) pushFrame(f *frame) {
	t.frames = append(t.frames, f)
}

func (t *task) popFrame() *frame {
	f := t.frames[len(t.frames)-1]
	t.frames[len(t.frames)-1] = nil
	t.frames = t.frames[:len(t.frames)-1]
	return f
}

func (t *task) finish(v ir.Value, err error) {
	t.done = true
	t.value = v
	t.err = err
}
