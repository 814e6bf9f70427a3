// Package encoder lowers a function's control-flow graph into a logical
// transition system plus verification conditions. The walk is path
// sensitive: each path prefix gets its own immutable state chain, every
// rebinding of a source variable introduces a fresh versioned solver
// constant, and every array read is bound to a fresh scalar read variable so
// a counterexample model over scalar constants is complete.
package encoder

import (
	"fmt"

	"github.com/kimroniny/solidity/internal/cfg"
	"github.com/kimroniny/solidity/internal/diag"
	"github.com/kimroniny/solidity/internal/smt"
	"github.com/kimroniny/solidity/internal/state"
)

// BoundsPolicy selects how array accesses relate to the array's symbolic
// length. The sample semantics do not pin this down, so it is an explicit
// configuration choice.
type BoundsPolicy int

const (
	// BoundsNondet leaves accesses unconstrained: an out-of-range index is
	// a free choice of the model, exposed rather than clamped.
	BoundsNondet BoundsPolicy = iota
	// BoundsAssert emits an additional verification condition
	// 0 <= index < length for every access.
	BoundsAssert
	// BoundsAssume adds 0 <= index < length to the path condition, treating
	// out-of-range access as unreachable.
	BoundsAssume
)

// Options configures an encoding run.
type Options struct {
	Bounds BoundsPolicy
	// MaxUnroll is how many extra times a block may repeat on a single
	// path before the construct is classified unsupported. Zero allows
	// straight-line plus branching only.
	MaxUnroll int
}

// Kind distinguishes user assertions from policy-generated obligations.
type Kind int

const (
	KindAssert Kind = iota
	KindBounds
)

// Transition relates the state before one statement to the state after it.
// Constraint is the fresh-binding equation for the statement's effect, or nil
// when the step only rebinds an existing constant; Env is the immutable
// post-state used later for counterexample snapshots.
type Transition struct {
	Point      cfg.Point
	Constraint smt.Term
	Env        *state.State
	Desc       string
}

// Read records one array read: which array term was read, at which index,
// and the scalar variable the result was bound to. Reads from the entry
// version of an array are what make its initial contents observable.
type Read struct {
	Array     string
	ArrayTerm smt.Term
	Index     smt.Term
	Var       *smt.Var
}

// VC is a verification condition: prove that Guard ∧ ¬Pred is unsatisfiable
// over the path's transition constraints.
type VC struct {
	ID    int
	Kind  Kind
	Point cfg.Point
	Span  diag.Span
	Guard smt.Term
	Pred  smt.Term
	Path  []Transition
	Reads []Read
}

// Constraints returns the full satisfiability problem for the VC: all
// transition constraints on the path, the guard, and the negated predicate.
func (vc *VC) Constraints() []smt.Term {
	terms := make([]smt.Term, 0, len(vc.Path)+2)
	for _, tr := range vc.Path {
		if tr.Constraint != nil {
			terms = append(terms, tr.Constraint)
		}
	}
	terms = append(terms, vc.Guard, smt.Not(vc.Pred))
	return terms
}

// Finding reports a construct outside the modeled subset. It is not fatal:
// remaining VCs of the function are still encoded and checked.
type Finding struct {
	Code    diag.Code
	Span    diag.Span
	Message string
}

// Entry describes the function's entry state for the extractor: the initial
// bindings and, per array, the name of its entry version variable.
type Entry struct {
	State      *state.State
	BaseArrays map[string]string
}

// Result is the output of an encoding run. Side-effect free: the input graph
// is never modified.
type Result struct {
	Function *cfg.Function
	Entry    Entry
	VCs      []VC
	Findings []Finding
}

// Encode walks the function's CFG and produces its transition system and
// verification conditions in a deterministic order (statement order within a
// block, true edge before false edge).
func Encode(fn *cfg.Function, opts Options) (*Result, error) {
	if fn.Entry == nil {
		return nil, fmt.Errorf("encoder: function %q has no entry block", fn.Name)
	}

	w := &walker{
		fn:     fn,
		opts:   opts,
		counts: make(map[string]int),
		visits: make(map[*cfg.BasicBlock]int),
		seen:   make(map[string]bool),
	}

	st, entry := w.entryState()
	if err := w.block(fn.Entry, st); err != nil {
		return nil, err
	}

	return &Result{Function: fn, Entry: entry, VCs: w.vcs, Findings: w.findings}, nil
}

type walker struct {
	fn   *cfg.Function
	opts Options

	counts map[string]int
	readN  int

	path  []Transition
	conds []smt.Term
	reads []Read

	visits map[*cfg.BasicBlock]int
	seen   map[string]bool

	vcs      []VC
	findings []Finding
}

// entryState binds parameters to solver constants carrying their source
// names, scalar locals to their zero values, and array locals to an
// unconstrained entry version with a symbolic length.
func (w *walker) entryState() (*state.State, Entry) {
	st := state.New()
	base := make(map[string]string)

	for _, p := range w.fn.Params {
		switch p.Type {
		case cfg.TypeBool:
			st = st.Write(p.Name, smt.BoolVar(p.Name))
		case cfg.TypeIntArray:
			v := w.fresh(p.Name, smt.SortArray)
			base[p.Name] = v.Name
			st = st.Write(p.Name, v).WriteLength(p.Name, smt.IntVar(p.Name+".length"))
		default:
			st = st.Write(p.Name, smt.IntVar(p.Name))
		}
	}
	for _, l := range w.fn.Locals {
		switch l.Type {
		case cfg.TypeBool:
			st = st.Write(l.Name, smt.Bool(false))
		case cfg.TypeIntArray:
			v := w.fresh(l.Name, smt.SortArray)
			base[l.Name] = v.Name
			st = st.Write(l.Name, v).WriteLength(l.Name, smt.IntVar(l.Name+".length"))
		default:
			st = st.Write(l.Name, smt.Int(0))
		}
	}

	return st, Entry{State: st, BaseArrays: base}
}

func (w *walker) fresh(name string, sort smt.Sort) *smt.Var {
	n := w.counts[name]
	w.counts[name]++
	return &smt.Var{Name: fmt.Sprintf("%s@%d", name, n), VarSort: sort}
}

func (w *walker) freshRead() *smt.Var {
	v := smt.IntVar(fmt.Sprintf("rd@%d", w.readN))
	w.readN++
	return v
}

func (w *walker) block(b *cfg.BasicBlock, st *state.State) error {
	if w.visits[b] > w.opts.MaxUnroll {
		w.unsupported(b)
		return nil
	}
	w.visits[b]++
	defer func() { w.visits[b]-- }()

	// Restore the path stacks when this branch of the walk finishes so
	// sibling paths do not see each other's suffixes.
	pathLen, condLen, readLen := len(w.path), len(w.conds), len(w.reads)
	defer func() {
		w.path = w.path[:pathLen]
		w.conds = w.conds[:condLen]
		w.reads = w.reads[:readLen]
	}()

	for i, stmt := range b.Statements {
		point := cfg.Point{Block: b.Label, Index: i}
		next, err := w.statement(point, stmt, st)
		if err != nil {
			return err
		}
		st = next
	}

	return w.terminator(b, st)
}

func (w *walker) statement(point cfg.Point, stmt cfg.Statement, st *state.State) (*state.State, error) {
	switch s := stmt.(type) {
	case *cfg.Assign:
		rhs, err := w.rvalue(st, s.RHS)
		if err != nil {
			return nil, err
		}
		v := w.fresh(s.Local.Name, rhs.Sort())
		next := st.Write(s.Local.Name, v)
		w.push(point, smt.Eq(v, rhs), next, cfg.PrettyStmt(stmt))
		return next, nil

	case *cfg.LoadIndex:
		idx, err := w.operand(st, s.Index)
		if err != nil {
			return nil, err
		}
		if err := w.bounds(point, s.Array.Name, idx, s.Span, st); err != nil {
			return nil, err
		}
		rd, err := w.bindRead(point, st, s.Array.Name, idx, cfg.PrettyStmt(stmt))
		if err != nil {
			return nil, err
		}
		next := st.Write(s.Result.Name, rd)
		w.push(point, nil, next, cfg.PrettyStmt(stmt))
		return next, nil

	case *cfg.StoreIndex:
		idx, err := w.operand(st, s.Index)
		if err != nil {
			return nil, err
		}
		val, err := w.operand(st, s.Value)
		if err != nil {
			return nil, err
		}
		if err := w.bounds(point, s.Array.Name, idx, s.Span, st); err != nil {
			return nil, err
		}
		return w.storeArray(point, st, s.Array.Name, idx, val, cfg.PrettyStmt(stmt))

	case *cfg.IncIndex:
		idx, err := w.operand(st, s.Index)
		if err != nil {
			return nil, err
		}
		if err := w.bounds(point, s.Array.Name, idx, s.Span, st); err != nil {
			return nil, err
		}

		// Read-modify-write: the compound form has exactly the semantics
		// of an explicit load, add, store.
		rd, err := w.bindRead(point, st, s.Array.Name, idx, cfg.PrettyStmt(stmt))
		if err != nil {
			return nil, err
		}
		updated := smt.Add(rd, smt.Int(s.Delta))
		next, err := w.storeArray(point, st, s.Array.Name, idx, updated, cfg.PrettyStmt(stmt))
		if err != nil {
			return nil, err
		}

		if s.Result != nil {
			if s.Pre {
				v := w.fresh(s.Result.Name, smt.SortInt)
				bound := next.Write(s.Result.Name, v)
				w.push(point, smt.Eq(v, updated), bound, cfg.PrettyStmt(stmt))
				return bound, nil
			}
			// Post-fix form: the result is the pre-value, already a scalar
			// constant, so the binding needs no constraint of its own.
			bound := next.Write(s.Result.Name, rd)
			w.push(point, nil, bound, cfg.PrettyStmt(stmt))
			return bound, nil
		}
		return next, nil

	case *cfg.Assert:
		pred, err := w.rvalue(st, s.Cond)
		if err != nil {
			return nil, err
		}
		if pred.Sort() != smt.SortBool {
			return nil, fmt.Errorf("encoder: assertion at %s is not boolean", point)
		}
		w.emit(KindAssert, point, s.Span, pred)
		return st, nil

	default:
		return nil, fmt.Errorf("encoder: unsupported statement %T at %s", stmt, point)
	}
}

// bindRead binds array[idx] to a fresh scalar read variable and records the
// read for the extractor.
func (w *walker) bindRead(point cfg.Point, st *state.State, array string, idx smt.Term, desc string) (*smt.Var, error) {
	sel, err := st.ArrayRead(array, idx)
	if err != nil {
		return nil, err
	}
	arrTerm, err := st.Read(array)
	if err != nil {
		return nil, err
	}

	rd := w.freshRead()
	w.push(point, smt.Eq(rd, sel), st, desc)
	w.reads = append(w.reads, Read{Array: array, ArrayTerm: arrTerm, Index: idx, Var: rd})
	return rd, nil
}

// storeArray performs the functional array update and rebinds the array to a
// fresh version variable, so later reads go through a constant rather than a
// growing store chain.
func (w *walker) storeArray(point cfg.Point, st *state.State, array string, idx, val smt.Term, desc string) (*state.State, error) {
	written, err := st.ArrayWrite(array, idx, val)
	if err != nil {
		return nil, err
	}
	chain, err := written.Read(array)
	if err != nil {
		return nil, err
	}

	v := w.fresh(array, smt.SortArray)
	next := written.Write(array, v)
	w.push(point, smt.Eq(v, chain), next, desc)
	return next, nil
}

func (w *walker) bounds(point cfg.Point, array string, idx smt.Term, span diag.Span, st *state.State) error {
	if w.opts.Bounds == BoundsNondet {
		return nil
	}
	length, err := st.Length(array)
	if err != nil {
		return err
	}
	inBounds := smt.And(smt.Ge(idx, smt.Int(0)), smt.Lt(idx, length))

	switch w.opts.Bounds {
	case BoundsAssert:
		w.emit(KindBounds, point, span, inBounds)
	case BoundsAssume:
		w.conds = append(w.conds, inBounds)
	}
	return nil
}

func (w *walker) terminator(b *cfg.BasicBlock, st *state.State) error {
	point := cfg.Point{Block: b.Label, Index: len(b.Statements)}

	switch t := b.Terminator.(type) {
	case *cfg.Return, nil:
		return nil

	case *cfg.Goto:
		return w.block(t.Target, st)

	case *cfg.Branch:
		cond, err := w.rvalue(st, t.Condition)
		if err != nil {
			return err
		}
		if cond.Sort() != smt.SortBool {
			return fmt.Errorf("encoder: branch condition at %s is not boolean", point)
		}

		w.conds = append(w.conds, cond)
		if err := w.block(t.True, st); err != nil {
			return err
		}
		w.conds[len(w.conds)-1] = smt.Not(cond)
		if err := w.block(t.False, st); err != nil {
			return err
		}
		w.conds = w.conds[:len(w.conds)-1]
		return nil

	default:
		return fmt.Errorf("encoder: unsupported terminator %T at %s", b.Terminator, point)
	}
}

func (w *walker) push(point cfg.Point, constraint smt.Term, env *state.State, desc string) {
	w.path = append(w.path, Transition{Point: point, Constraint: constraint, Env: env, Desc: desc})
}

func (w *walker) emit(kind Kind, point cfg.Point, span diag.Span, pred smt.Term) {
	vc := VC{
		ID:    len(w.vcs),
		Kind:  kind,
		Point: point,
		Span:  span,
		Guard: smt.And(append([]smt.Term{}, w.conds...)...),
		Pred:  pred,
		Path:  append([]Transition{}, w.path...),
		Reads: append([]Read{}, w.reads...),
	}
	w.vcs = append(w.vcs, vc)
}

func (w *walker) unsupported(b *cfg.BasicBlock) {
	if w.seen[b.Label] {
		return
	}
	w.seen[b.Label] = true
	w.findings = append(w.findings, Finding{
		Code:    diag.CodeUnsupportedConstruct,
		Span:    w.fn.Span,
		Message: fmt.Sprintf("loop through block %q exceeds the unrolling limit (%d); the construct is not verified", b.Label, w.opts.MaxUnroll),
	})
}

func (w *walker) operand(st *state.State, op cfg.Operand) (smt.Term, error) {
	switch o := op.(type) {
	case *cfg.LocalRef:
		return st.Read(o.Local.Name)
	case *cfg.Literal:
		switch v := o.Value.(type) {
		case int64:
			return smt.Int(v), nil
		case int:
			return smt.Int(int64(v)), nil
		case bool:
			return smt.Bool(v), nil
		default:
			return nil, fmt.Errorf("encoder: unsupported literal %T", o.Value)
		}
	default:
		return nil, fmt.Errorf("encoder: unsupported operand %T", op)
	}
}

func (w *walker) rvalue(st *state.State, rv cfg.Rvalue) (smt.Term, error) {
	switch r := rv.(type) {
	case cfg.Operand:
		return w.operand(st, r)
	case *cfg.BinaryExpr:
		x, err := w.operand(st, r.X)
		if err != nil {
			return nil, err
		}
		y, err := w.operand(st, r.Y)
		if err != nil {
			return nil, err
		}
		return binary(r.Op, x, y)
	case *cfg.UnaryExpr:
		x, err := w.operand(st, r.X)
		if err != nil {
			return nil, err
		}
		switch r.Op {
		case "-":
			return smt.Neg(x), nil
		case "!":
			return smt.Not(x), nil
		default:
			return nil, fmt.Errorf("encoder: unsupported unary operator %q", r.Op)
		}
	default:
		return nil, fmt.Errorf("encoder: unsupported rvalue %T", rv)
	}
}

func binary(op cfg.BinOp, x, y smt.Term) (smt.Term, error) {
	switch op {
	case cfg.OpAdd:
		return smt.Add(x, y), nil
	case cfg.OpSub:
		return smt.Sub(x, y), nil
	case cfg.OpMul:
		return smt.Mul(x, y), nil
	case cfg.OpDiv:
		return smt.Div(x, y), nil
	case cfg.OpMod:
		return smt.Mod(x, y), nil
	case cfg.OpEq:
		return smt.Eq(x, y), nil
	case cfg.OpNe:
		return smt.Ne(x, y), nil
	case cfg.OpLt:
		return smt.Lt(x, y), nil
	case cfg.OpLe:
		return smt.Le(x, y), nil
	case cfg.OpGt:
		return smt.Gt(x, y), nil
	case cfg.OpGe:
		return smt.Ge(x, y), nil
	case cfg.OpAnd:
		return smt.And(x, y), nil
	case cfg.OpOr:
		return smt.Or(x, y), nil
	default:
		return nil, fmt.Errorf("encoder: unsupported operator %q", op)
	}
}
