package cex

import (
	"fmt"

	"github.com/kimroniny/solidity/internal/cfg"
	"github.com/kimroniny/solidity/internal/encoder"
	"github.com/kimroniny/solidity/internal/smt"
	"github.com/kimroniny/solidity/internal/solver"
	"github.com/kimroniny/solidity/internal/state"
)

// Extract reconstructs a concrete trace from a satisfying model. The model
// only assigns scalar constants; array contents are recovered from the read
// bindings recorded along the path (for entry versions) and the store-chain
// definitions in the transition constraints (for later versions).
func Extract(fn *cfg.Function, entry encoder.Entry, vc *encoder.VC, model solver.Model) (*Trace, error) {
	ev := &evaluator{
		model: model,
		defs:  make(map[string]smt.Term),
		reads: make(map[string][]encoder.Read),
	}
	for _, tr := range vc.Path {
		// Transition constraints have the shape (fresh == rhs); the fresh
		// variable's definition lets the evaluator chase versions back to
		// the entry state.
		if eq, ok := tr.Constraint.(*smt.Bin); ok && eq.Op == smt.OpEq {
			if v, ok := eq.X.(*smt.Var); ok {
				ev.defs[v.Name] = eq.Y
			}
		}
	}
	for _, rd := range vc.Reads {
		if v, ok := rd.ArrayTerm.(*smt.Var); ok {
			ev.reads[v.Name] = append(ev.reads[v.Name], rd)
		}
	}

	tr := &Trace{Function: fn.Name}

	for _, p := range fn.Params {
		term, err := entry.State.Read(p.Name)
		if err != nil {
			return nil, err
		}
		val, err := ev.value(term)
		if err != nil {
			return nil, err
		}
		tr.Args = append(tr.Args, Arg{Name: p.Name, Value: val})
	}

	var err error
	tr.Entry, err = ev.snapshot(entry.State.Names(), entry.State)
	if err != nil {
		return nil, err
	}

	// One step per program point; intermediate transitions of the same
	// statement (read bindings) collapse into its final post-state.
	for i, t := range vc.Path {
		if i+1 < len(vc.Path) && vc.Path[i+1].Point == t.Point {
			continue
		}
		st, err := ev.snapshot(t.Env.Names(), t.Env)
		if err != nil {
			return nil, err
		}
		tr.Steps = append(tr.Steps, Step{Point: t.Point, Desc: t.Desc, State: st})
	}

	return tr, nil
}

type evaluator struct {
	model solver.Model
	defs  map[string]smt.Term
	reads map[string][]encoder.Read
}

func (ev *evaluator) snapshot(names []string, st *state.State) (map[string]Value, error) {
	out := make(map[string]Value, len(names))
	for _, name := range names {
		term, err := st.Read(name)
		if err != nil {
			return nil, err
		}
		val, err := ev.value(term)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}

func (ev *evaluator) value(term smt.Term) (Value, error) {
	switch term.Sort() {
	case smt.SortArray:
		elems, err := ev.array(term)
		if err != nil {
			return Value{}, err
		}
		return ArrayVal(elems), nil
	case smt.SortBool:
		b, err := ev.boolean(term)
		if err != nil {
			return Value{}, err
		}
		return BoolVal(b), nil
	default:
		n, err := ev.integer(term)
		if err != nil {
			return Value{}, err
		}
		return IntVal(n), nil
	}
}

// array resolves an array term to its touched indices. A version variable
// resolves through its store-chain definition; the entry version has no
// definition and is populated from the reads recorded against it.
func (ev *evaluator) array(term smt.Term) (map[int64]int64, error) {
	switch t := term.(type) {
	case *smt.Var:
		if def, ok := ev.defs[t.Name]; ok {
			return ev.array(def)
		}
		elems := make(map[int64]int64)
		for _, rd := range ev.reads[t.Name] {
			idx, err := ev.integer(rd.Index)
			if err != nil {
				return nil, err
			}
			elems[idx] = ev.model.Lookup(rd.Var).Int
		}
		return elems, nil
	case *smt.StoreTerm:
		elems, err := ev.array(t.Array)
		if err != nil {
			return nil, err
		}
		idx, err := ev.integer(t.Index)
		if err != nil {
			return nil, err
		}
		val, err := ev.integer(t.Value)
		if err != nil {
			return nil, err
		}
		elems[idx] = val
		return elems, nil
	default:
		return nil, fmt.Errorf("cex: cannot resolve array term %s", term)
	}
}

func (ev *evaluator) integer(term smt.Term) (int64, error) {
	switch t := term.(type) {
	case *smt.Var:
		return ev.model.Lookup(t).Int, nil
	case *smt.IntLit:
		return t.Value, nil
	case *smt.SelectTerm:
		elems, err := ev.array(t.Array)
		if err != nil {
			return 0, err
		}
		idx, err := ev.integer(t.Index)
		if err != nil {
			return 0, err
		}
		// An index never touched is an unconstrained point of the array
		// function; zero is the canonical representative.
		return elems[idx], nil
	case *smt.Ite:
		cond, err := ev.boolean(t.Cond)
		if err != nil {
			return 0, err
		}
		if cond {
			return ev.integer(t.Then)
		}
		return ev.integer(t.Else)
	case *smt.Bin:
		x, err := ev.integer(t.X)
		if err != nil {
			return 0, err
		}
		y, err := ev.integer(t.Y)
		if err != nil {
			return 0, err
		}
		switch t.Op {
		case smt.OpAdd:
			return x + y, nil
		case smt.OpSub:
			return x - y, nil
		case smt.OpMul:
			return x * y, nil
		case smt.OpDiv:
			if y == 0 {
				return 0, fmt.Errorf("cex: division by zero in model evaluation")
			}
			return x / y, nil
		case smt.OpMod:
			if y == 0 {
				return 0, fmt.Errorf("cex: modulo by zero in model evaluation")
			}
			return x % y, nil
		default:
			return 0, fmt.Errorf("cex: operator %s is not integer-valued", t.Op)
		}
	default:
		return 0, fmt.Errorf("cex: cannot evaluate %s as integer", term)
	}
}

func (ev *evaluator) boolean(term smt.Term) (bool, error) {
	switch t := term.(type) {
	case *smt.Var:
		return ev.model.Lookup(t).Bool, nil
	case *smt.BoolLit:
		return t.Value, nil
	case *smt.NotTerm:
		b, err := ev.boolean(t.X)
		return !b, err
	case *smt.Ite:
		cond, err := ev.boolean(t.Cond)
		if err != nil {
			return false, err
		}
		if cond {
			return ev.boolean(t.Then)
		}
		return ev.boolean(t.Else)
	case *smt.Bin:
		switch t.Op {
		case smt.OpAnd, smt.OpOr, smt.OpImplies:
			x, err := ev.boolean(t.X)
			if err != nil {
				return false, err
			}
			y, err := ev.boolean(t.Y)
			if err != nil {
				return false, err
			}
			switch t.Op {
			case smt.OpAnd:
				return x && y, nil
			case smt.OpOr:
				return x || y, nil
			default:
				return !x || y, nil
			}
		case smt.OpEq, smt.OpNe:
			if t.X.Sort() == smt.SortBool {
				x, err := ev.boolean(t.X)
				if err != nil {
					return false, err
				}
				y, err := ev.boolean(t.Y)
				if err != nil {
					return false, err
				}
				return (x == y) == (t.Op == smt.OpEq), nil
			}
			x, err := ev.integer(t.X)
			if err != nil {
				return false, err
			}
			y, err := ev.integer(t.Y)
			if err != nil {
				return false, err
			}
			return (x == y) == (t.Op == smt.OpEq), nil
		default:
			x, err := ev.integer(t.X)
			if err != nil {
				return false, err
			}
			y, err := ev.integer(t.Y)
			if err != nil {
				return false, err
			}
			switch t.Op {
			case smt.OpLt:
				return x < y, nil
			case smt.OpLe:
				return x <= y, nil
			case smt.OpGt:
				return x > y, nil
			case smt.OpGe:
				return x >= y, nil
			default:
				return false, fmt.Errorf("cex: operator %s is not boolean-valued", t.Op)
			}
		}
	default:
		return false, fmt.Errorf("cex: cannot evaluate %s as boolean", term)
	}
}
