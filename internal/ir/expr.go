package ir

// Expr is the sealed expression interface.
//
// Only the node types in this file implement it. The marker method pattern
// prevents external implementations and enables exhaustive type switches in
// the validator and the lowering pass.
type Expr interface {
	exprNode()
	Position() Pos
}

// Lit is a literal value.
type Lit struct {
	Pos   Pos
	Value Value
}

// Ref reads a local binding or parameter by name.
type Ref struct {
	Pos  Pos
	Name string
}

// Let introduces a local binding in the enclosing body.
type Let struct {
	Pos   Pos
	Name  string
	Value Expr
}

// Bin is a binary operation over Int/Bool/Str operands. The operator set
// is closed; ValidBinOp is the authoritative membership test.
type Bin struct {
	Pos  Pos
	Op   string
	Left Expr
	Rght Expr
}

// binOps is the closed operator set a Bin node may carry. Arithmetic and
// ordering apply to Int, equality to any value pair, "and"/"or" to Bool;
// "+" also concatenates Str.
var binOps = map[string]bool{
	"+": true, "-": true, "*": true,
	"==": true, "!=": true,
	"<": true, "<=": true, ">": true, ">=": true,
	"and": true, "or": true,
}

// ValidBinOp reports whether op belongs to the operator set.
func ValidBinOp(op string) bool { return binOps[op] }

// Call invokes a function by base name. Overload resolution and suspension
// marking annotate the node in place during validation.
type Call struct {
	Pos    Pos
	Callee string
	Args   []Expr

	// Resolved is the signature chosen by overload resolution.
	// Set by the validator; nil until then.
	Resolved *FuncSig `json:"-"`

	// Suspends reports whether this call is a suspension point
	// (Resolved.Async). Set by the validator.
	Suspends bool `json:"-"`
}

// Await is the suspension-marking wrapper expression. A single Await covers
// every suspension point lexically within it, including points nested in
// another call's arguments.
type Await struct {
	Pos  Pos
	Expr Expr
}

// Try is the error-propagation wrapper expression. Required around calls
// whose resolved target throws; composes with Await as "try await expr"
// when the target is async throws.
type Try struct {
	Pos  Pos
	Expr Expr
}

// Closure is a closure literal. Async is the explicit qualifier; nil means
// the qualifier is inferred from the closure's own top-level body.
type Closure struct {
	Pos    Pos
	Async  *bool // nil = infer
	Throws bool
	Params []Param
	Body   []Expr

	// InferredAsync is the inference result when Async is nil.
	// Set by the validator; meaningless when Async is non-nil.
	InferredAsync bool `json:"-"`
}

// IsAsync reports the effective asynchronous qualification after inference.
func (c *Closure) IsAsync() bool {
	if c.Async != nil {
		return *c.Async
	}
	return c.InferredAsync
}

// DeferBlock is a scoped-cleanup block: its body runs on every exit path
// of the enclosing scope. Cleanup must be atomic relative to scope exit,
// so no suspension point may occur inside it.
type DeferBlock struct {
	Pos  Pos
	Body []Expr
}

// If branches on a Bool condition.
type If struct {
	Pos  Pos
	Cond Expr
	Then []Expr
	Else []Expr
}

// Loop executes Body Count times. Count must evaluate to a non-negative Int.
type Loop struct {
	Pos   Pos
	Count Expr
	Body  []Expr
}

// Return exits the enclosing function with an optional value.
type Return struct {
	Pos  Pos
	Expr Expr // nil returns Unit
}

// Raise propagates an error out of a throws-qualified function.
type Raise struct {
	Pos  Pos
	Code string
}

func (*Lit) exprNode()        {}
func (*Ref) exprNode()        {}
func (*Let) exprNode()        {}
func (*Bin) exprNode()        {}
func (*Call) exprNode()       {}
func (*Await) exprNode()      {}
func (*Try) exprNode()        {}
func (*Closure) exprNode()    {}
func (*DeferBlock) exprNode() {}
func (*If) exprNode()         {}
func (*Loop) exprNode()       {}
func (*Return) exprNode()     {}
func (*Raise) exprNode()      {}

func (e *Lit) Position() Pos        { return e.Pos }
func (e *Ref) Position() Pos        { return e.Pos }
func (e *Let) Position() Pos        { return e.Pos }
func (e *Bin) Position() Pos        { return e.Pos }
func (e *Call) Position() Pos       { return e.Pos }
func (e *Await) Position() Pos      { return e.Pos }
func (e *Try) Position() Pos        { return e.Pos }
func (e *Closure) Position() Pos    { return e.Pos }
func (e *DeferBlock) Position() Pos { return e.Pos }
func (e *If) Position() Pos         { return e.Pos }
func (e *Loop) Position() Pos       { return e.Pos }
func (e *Return) Position() Pos     { return e.Pos }
func (e *Raise) Position() Pos      { return e.Pos }
