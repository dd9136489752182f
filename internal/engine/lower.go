package engine

import (
	"fmt"

	"github.com/seamlang/seam/internal/ir"
)

// opcode is the instruction set of lowered bodies. Deliberately flat: a
// resumable activation is a program counter over this list plus a locals
// map and an operand stack, all heap-held in a frame.
type opcode int

const (
	opPush        opcode = iota // push Val
	opLoad                      // push locals[Name]
	opStore                     // locals[Name] = pop
	opPop                       // discard top
	opBin                       // binary op Name over two operands
	opCall                      // call Sig with Argc operands
	opJump                      // pc = Target
	opJumpIfFalse               // pop Bool; if false pc = Target
	opLoopInit                  // locals[Name] = pop (loop counter)
	opLoopStep                  // if counter == 0 jump Target else counter--
	opDefer                     // register cleanup body DeferIdx
	opReturn                    // return pop (HasVal) or Unit
	opRaise                     // raise error Name
)

// instr is one lowered instruction. Fields are used per-opcode.
type instr struct {
	Op       opcode
	Val      ir.Value
	Name     string
	Target   int
	Sig      *ir.FuncSig
	Argc     int
	HasVal   bool
	DeferIdx int
	Pos      ir.Pos
}

// lowered is the resumable form of one declaration body.
type lowered struct {
	Sig    ir.FuncSig
	Code   []instr
	Defers [][]instr // cleanup bodies, referenced by opDefer
}

// lowerProgram lowers every function of a validated program. Call nodes
// must carry their resolved signatures; a missing annotation means the
// program skipped validation and lowering refuses it.
func lowerProgram(p *ir.Program) (map[*ir.FuncSig]*lowered, error) {
	out := make(map[*ir.FuncSig]*lowered, len(p.Funcs))
	for _, fn := range p.Funcs {
		lo, err := lowerFunc(fn)
		if err != nil {
			return nil, fmt.Errorf("lower %s: %w", fn.Sig.Name, err)
		}
		out[&fn.Sig] = lo
	}
	return out, nil
}

func lowerFunc(fn *ir.FuncDecl) (*lowered, error) {
	lw := &lowerer{}
	if err := lw.stmts(fn.Body); err != nil {
		return nil, err
	}
	// Falling off the end returns Unit.
	lw.emit(instr{Op: opReturn})
	return &lowered{Sig: fn.Sig, Code: lw.code, Defers: lw.defers}, nil
}

type lowerer struct {
	code      []instr
	defers    [][]instr
	loopDepth int
}

func (l *lowerer) emit(in instr) int {
	l.code = append(l.code, in)
	return len(l.code) - 1
}

func (l *lowerer) stmts(body []ir.Expr) error {
	for _, e := range body {
		if err := l.stmt(e); err != nil {
			return err
		}
	}
	return nil
}

// stmt lowers an expression in statement position: value-producing nodes
// get their result dropped.
func (l *lowerer) stmt(e ir.Expr) error {
	switch ex := e.(type) {
	case *ir.Let:
		if err := l.expr(ex.Value); err != nil {
			return err
		}
		l.emit(instr{Op: opStore, Name: ex.Name, Pos: ex.Pos})
		return nil

	case *ir.If:
		return l.lowerIf(ex)

	case *ir.Loop:
		return l.lowerLoop(ex)

	case *ir.DeferBlock:
		body, err := lowerCleanup(ex)
		if err != nil {
			return err
		}
		l.defers = append(l.defers, body)
		l.emit(instr{Op: opDefer, DeferIdx: len(l.defers) - 1, Pos: ex.Pos})
		return nil

	case *ir.Return:
		if ex.Expr != nil {
			if err := l.expr(ex.Expr); err != nil {
				return err
			}
			l.emit(instr{Op: opReturn, HasVal: true, Pos: ex.Pos})
		} else {
			l.emit(instr{Op: opReturn, Pos: ex.Pos})
		}
		return nil

	case *ir.Raise:
		l.emit(instr{Op: opRaise, Name: ex.Code, Pos: ex.Pos})
		return nil

	default:
		if err := l.expr(e); err != nil {
			return err
		}
		l.emit(instr{Op: opPop})
		return nil
	}
}

// expr lowers an expression in value position: exactly one operand is
// pushed. Await and try wrappers are erased - their work was done
// statically.
func (l *lowerer) expr(e ir.Expr) error {
	switch ex := e.(type) {
	case *ir.Lit:
		l.emit(instr{Op: opPush, Val: ex.Value, Pos: ex.Pos})
		return nil

	case *ir.Ref:
		l.emit(instr{Op: opLoad, Name: ex.Name, Pos: ex.Pos})
		return nil

	case *ir.Bin:
		if err := l.expr(ex.Left); err != nil {
			return err
		}
		if err := l.expr(ex.Rght); err != nil {
			return err
		}
		l.emit(instr{Op: opBin, Name: ex.Op, Pos: ex.Pos})
		return nil

	case *ir.Call:
		if ex.Resolved == nil {
			return fmt.Errorf("call to %q has no resolved target: program not validated", ex.Callee)
		}
		// ARGS_EVAL: strictly left-to-right.
		for _, arg := range ex.Args {
			if err := l.expr(arg); err != nil {
				return err
			}
		}
		l.emit(instr{Op: opCall, Sig: ex.Resolved, Argc: len(ex.Args), Pos: ex.Pos})
		return nil

	case *ir.Await:
		return l.expr(ex.Expr)

	case *ir.Try:
		return l.expr(ex.Expr)

	case *ir.Closure:
		// Closure literals are not first-class callables at runtime in
		// this core; the literal evaluates to Unit. Their significance is
		// static (inference, conversions, validation).
		l.emit(instr{Op: opPush, Val: ir.Unit{}, Pos: ex.Pos})
		return nil

	default:
		return fmt.Errorf("expression %T is not valid in value position", e)
	}
}

func (l *lowerer) lowerIf(ex *ir.If) error {
	if err := l.expr(ex.Cond); err != nil {
		return err
	}
	jumpElse := l.emit(instr{Op: opJumpIfFalse, Pos: ex.Pos})
	if err := l.stmts(ex.Then); err != nil {
		return err
	}
	jumpEnd := l.emit(instr{Op: opJump})
	l.code[jumpElse].Target = len(l.code)
	if err := l.stmts(ex.Else); err != nil {
		return err
	}
	l.code[jumpEnd].Target = len(l.code)
	return nil
}

func (l *lowerer) lowerLoop(ex *ir.Loop) error {
	counter := fmt.Sprintf("$loop%d", l.loopDepth)
	l.loopDepth++
	defer func() { l.loopDepth-- }()

	if err := l.expr(ex.Count); err != nil {
		return err
	}
	l.emit(instr{Op: opLoopInit, Name: counter, Pos: ex.Pos})
	head := l.emit(instr{Op: opLoopStep, Name: counter, Pos: ex.Pos})
	if err := l.stmts(ex.Body); err != nil {
		return err
	}
	l.emit(instr{Op: opJump, Target: head})
	l.code[head].Target = len(l.code)
	return nil
}

// lowerCleanup lowers a scoped-cleanup body. Cleanup runs atomically on
// scope exit: the validator already barred suspension points, and control
// transfers out of the cleanup (return, raise) are rejected here.
func lowerCleanup(block *ir.DeferBlock) ([]instr, error) {
	for _, e := range block.Body {
		if err := rejectExits(e); err != nil {
			return nil, err
		}
	}
	lw := &lowerer{}
	if err := lw.stmts(block.Body); err != nil {
		return nil, err
	}
	if len(lw.defers) > 0 {
		return nil, fmt.Errorf("cleanup blocks cannot nest")
	}
	lw.emit(instr{Op: opReturn})
	return lw.code, nil
}

func rejectExits(e ir.Expr) error {
	switch ex := e.(type) {
	case *ir.Return:
		return fmt.Errorf("return is not allowed inside a cleanup block")
	case *ir.Raise:
		return fmt.Errorf("raise is not allowed inside a cleanup block: cleanup must be non-failing")
	case *ir.If:
		for _, b := range ex.Then {
			if err := rejectExits(b); err != nil {
				return err
			}
		}
		for _, b := range ex.Else {
			if err := rejectExits(b); err != nil {
				return err
			}
		}
	case *ir.Loop:
		for _, b := range ex.Body {
			if err := rejectExits(b); err != nil {
				return err
			}
		}
	}
	return nil
}
