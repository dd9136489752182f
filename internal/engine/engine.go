package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/seamlang/seam/internal/ir"
	"github.com/seamlang/seam/internal/types"
	"github.com/seamlang/seam/internal/validator"
)

// DefaultMaxSteps bounds the number of lowered instructions one run may
// execute. Prevents runaway loops from consuming unbounded resources.
const DefaultMaxSteps = 100_000

// maxSyncDepth bounds Go-stack recursion through plain (non-suspending)
// calls, which execute inline rather than through the frame arena.
const maxSyncDepth = 512

// TraceSink receives every trace event of a run, in order. Implemented by
// the SQLite store; nil disables persistence (events are still collected
// in the RunResult).
type TraceSink interface {
	Record(ctx context.Context, ev ir.TraceEvent) error
}

// ValidationError aggregates the static diagnostics that prevented an
// engine from being built.
type ValidationError struct {
	Diags []ir.Diagnostic
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Diags))
	for i, d := range e.Diags {
		msgs[i] = d.String()
	}
	return fmt.Sprintf("program has %d static error(s):\n%s", len(e.Diags), strings.Join(msgs, "\n"))
}

// Engine executes lowered Seam programs under the handoff protocol.
//
// Thread-safety model (single-writer, like the run loop itself):
//   - Run must be called from exactly one goroutine at a time
//   - ResumptionUnit.Cancel is safe from any goroutine
type Engine struct {
	program  *ir.Program
	fns      map[*ir.FuncSig]*lowered
	hash     string
	clock    *Clock
	resolver Resolver
	gen      RunTokenGenerator
	policy   Policy
	sink     TraceSink
	logger   *slog.Logger
	maxSteps int
	hook     func(*ResumptionUnit)
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver injects the execution-context resolver (the external
// isolation collaborator). Default: a fresh LabelResolver.
func WithResolver(r Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithRunTokens injects the run-token generator. Tests pass a
// FixedGenerator for deterministic traces.
func WithRunTokens(g RunTokenGenerator) Option {
	return func(e *Engine) { e.gen = g }
}

// WithPolicy sets the ordering policy among ready resumption units.
// Default: FIFO. Ordering is policy, not protocol.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithSink persists trace events as they are recorded.
func WithSink(s TraceSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithLogger sets the structured logger. Default: slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMaxSteps sets the per-run instruction quota.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithEnqueueHook observes every enqueue(unit, context) as the external
// task manager would. The hook may call Cancel on the unit.
func WithEnqueueHook(h func(*ResumptionUnit)) Option {
	return func(e *Engine) { e.hook = h }
}

// New validates, lowers and wraps a program. A program with static
// diagnostics is refused with a *ValidationError: lowering is only
// attempted on statically well-formed inputs.
func New(p *ir.Program, opts ...Option) (*Engine, error) {
	if diags := validator.Validate(p); len(diags) > 0 {
		return nil, &ValidationError{Diags: diags}
	}

	fns, err := lowerProgram(p)
	if err != nil {
		return nil, err
	}

	hash, err := ir.ProgramHash(p)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		program:  p,
		fns:      fns,
		hash:     hash,
		clock:    NewClock(),
		resolver: NewLabelResolver(),
		gen:      UUIDv7Generator{},
		policy:   FIFOPolicy{},
		logger:   slog.Default(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ProgramHash returns the loaded program's content identity, recorded
// with every persisted run and checked again before replay.
func (e *Engine) ProgramHash() string { return e.hash }

// RunResult is the outcome of one run.
type RunResult struct {
	Token string
	Value ir.Value
	Trace []ir.TraceEvent
	Steps int
}

// run is the per-run mutable state. A fresh one per Run call keeps the
// Engine reusable.
type run struct {
	token   string
	queue   *unitQueue
	task    *task
	trace   []ir.TraceEvent
	steps   int
	sinkErr error
}

// Run executes the named entry function with the given arguments and
// returns its result together with the full handoff trace.
//
// A program-raised error comes back as *RaisedError; engine-level
// failures (cancellation, quota, bad entry) as *RunError. In both cases
// the partial trace in RunResult is valid.
func (e *Engine) Run(gctx context.Context, entry string, args []ir.Value) (*RunResult, error) {
	token := e.gen.Generate()
	r := &run{token: token, queue: newUnitQueue()}

	target, diag := types.Resolve(entry, types.Candidates(e.program, entry), len(args),
		types.CallContext{Async: true, Func: "<run>"}, ir.Pos{})
	if diag != nil {
		code := ErrCodeNoEntry
		if diag.Code == ir.DiagArityMismatch {
			code = ErrCodeBadArgument
		}
		return nil, &RunError{Code: code, Message: diag.Message, Run: token, Func: entry}
	}
	sig := &target.Sig

	e.logger.Info("run start", "run", token, "entry", sig.String(), "program", e.hash)

	rootCtx := e.resolver.Root()
	entryCtx := e.resolver.Resolve(sig, rootCtx)

	callID, err := ir.CallID(token, sig.String(), ir.List(args), e.clock.Next())
	if err != nil {
		return nil, &RunError{Code: ErrCodeBadArgument, Message: err.Error(), Run: token}
	}

	e.record(gctx, r, ir.TraceEvent{
		Kind: ir.TraceCall, CallID: callID, Func: sig.String(),
		From: rootCtx.String(), To: entryCtx.String(),
	})

	if !sig.Async {
		// A synchronous entry runs immediately on the root context.
		return e.runSyncEntry(gctx, r, target, args, rootCtx, callID)
	}

	t := &task{run: token}
	t.pushFrame(newFrame(e.fns[sig], entryCtx, callID, args))
	r.task = t

	if !e.resolver.Same(entryCtx, rootCtx) {
		e.record(gctx, r, ir.TraceEvent{
			Kind: ir.TraceHandoffOut, CallID: callID,
			From: rootCtx.String(), To: entryCtx.String(),
		})
	}
	unitID, _ := ir.UnitID(callID, UnitKindRunStart, e.clock.Next())
	e.enqueue(r, newUnit(unitID, UnitKindRunStart, entryCtx, t))

	return e.loop(gctx, r)
}

// loop is the scheduler: dequeue a ready unit per policy, run its task to
// the next suspension. Single-threaded across all contexts, so execution
// between suspension points is atomic with respect to every other unit
// queued on the same context.
func (e *Engine) loop(gctx context.Context, r *run) (*RunResult, error) {
	t := r.task
	for {
		if err := gctx.Err(); err != nil {
			e.cancelPending(gctx, r)
			return e.result(r), err
		}
		if r.sinkErr != nil {
			return e.result(r), fmt.Errorf("trace sink: %w", r.sinkErr)
		}

		u := r.queue.Dequeue(e.policy)
		if u == nil {
			break
		}

		if !u.begin() {
			// Cancelled before running: signal, never drop silently.
			e.record(gctx, r, ir.TraceEvent{
				Kind: ir.TraceCancel, UnitID: u.ID, To: u.Target.String(),
			})
			if !t.done {
				t.finish(nil, &RunError{
					Code:    ErrCodeCancelled,
					Message: fmt.Sprintf("resumption unit %s cancelled", shortID(u.ID)),
					Run:     r.token,
				})
			}
			continue
		}

		e.record(gctx, r, ir.TraceEvent{
			Kind: ir.TraceResume, UnitID: u.ID, To: u.Target.String(),
			CallID: topCallID(t), Func: topFunc(t),
		})
		if err := e.stepTask(gctx, r); err != nil {
			return e.result(r), err
		}
		u.finish()
	}

	if !t.done {
		return e.result(r), &RunError{
			Code:    ErrCodeInternal,
			Message: "queue drained before the task finished",
			Run:     r.token,
		}
	}

	res := e.result(r)
	if t.err != nil {
		e.logger.Info("run failed", "run", r.token, "error", t.err, "steps", r.steps)
		return res, t.err
	}
	e.logger.Info("run complete", "run", r.token, "steps", r.steps)
	return res, nil
}

func (e *Engine) result(r *run) *RunResult {
	res := &RunResult{Token: r.token, Trace: r.trace, Steps: r.steps}
	if r.task != nil && r.task.done && r.task.err == nil {
		res.Value = r.task.value
	}
	return res
}

func (e *Engine) runSyncEntry(gctx context.Context, r *run, target *ir.FuncDecl, args []ir.Value, ctx Context, callID string) (*RunResult, error) {
	v, err := e.evalSync(gctx, r, e.fns[&target.Sig], args, ctx, callID, 0)
	if err != nil {
		var raised *RaisedError
		if errors.As(err, &raised) {
			e.record(gctx, r, ir.TraceEvent{
				Kind: ir.TraceError, CallID: callID, Func: target.Sig.String(),
				From: ctx.String(), Detail: ir.Rec{"error": ir.Str(raised.Code)},
			})
			return e.result(r), raised
		}
		return e.result(r), err
	}
	e.record(gctx, r, ir.TraceEvent{
		Kind: ir.TraceComplete, CallID: callID, Func: target.Sig.String(), From: ctx.String(),
	})
	res := e.result(r)
	res.Value = v
	return res, r.sinkErr
}

// enqueue hands a unit to the scheduler and notifies the external task
// manager hook. The unit is bound to exactly one context.
func (e *Engine) enqueue(r *run, u *ResumptionUnit) {
	r.queue.Enqueue(u)
	e.logger.Debug("enqueue", "run", r.token, "unit", shortID(u.ID), "kind", u.Kind, "context", u.Target)
	if e.hook != nil {
		e.hook(u)
	}
}

func (e *Engine) cancelPending(gctx context.Context, r *run) {
	for {
		u := r.queue.Dequeue(FIFOPolicy{})
		if u == nil {
			return
		}
		if u.Cancel() {
			e.record(gctx, r, ir.TraceEvent{
				Kind: ir.TraceCancel, UnitID: u.ID, To: u.Target.String(),
			})
		}
	}
}

// record stamps and stores a trace event. Sink failures are remembered
// and abort the run at the next scheduling boundary.
func (e *Engine) record(gctx context.Context, r *run, ev ir.TraceEvent) {
	ev.Seq = e.clock.Next()
	ev.Run = r.token
	r.trace = append(r.trace, ev)
	e.logger.Debug("trace", "run", r.token, "seq", ev.Seq, "kind", ev.Kind, "func", ev.Func)
	if e.sink != nil && r.sinkErr == nil {
		r.sinkErr = e.sink.Record(gctx, ev)
	}
}

func topCallID(t *task) string {
	if t == nil || t.top() == nil {
		return ""
	}
	return t.top().callID
}

func topFunc(t *task) string {
	if t == nil || t.top() == nil {
		return ""
	}
	return t.top().fn.Sig.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
