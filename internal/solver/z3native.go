//go:build z3cgo

package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/aclements/go-z3/z3"

	"github.com/kimroniny/solidity/internal/smt"
)

// Native solves in process through the z3 C API. It avoids the subprocess
// round trip but needs cgo and libz3 at build time, so it sits behind the
// z3cgo build tag and the subprocess backend stays the default.
type Native struct{}

// NewNative returns the in-process backend.
func NewNative() *Native { return &Native{} }

func (*Native) Name() string { return "z3-native" }

func (n *Native) Check(ctx context.Context, constraints []smt.Term, budget time.Duration) (Result, error) {
	type answer struct {
		res Result
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		r, err := nativeCheck(constraints)
		ch <- answer{r, err}
	}()

	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	select {
	case a := <-ch:
		return a.res, a.err
	case <-ctx.Done():
		// The abandoned query holds its goroutine until z3 returns.
		return Result{Verdict: Unknown}, nil
	}
}

func nativeCheck(constraints []smt.Term) (Result, error) {
	zctx := z3.NewContext(nil)
	tr := &translator{ctx: zctx, consts: make(map[string]z3.Value)}

	s := z3.NewSolver(zctx)
	for _, c := range constraints {
		v, err := tr.term(c)
		if err != nil {
			return Result{}, err
		}
		b, ok := v.(z3.Bool)
		if !ok {
			return Result{}, fmt.Errorf("solver: non-boolean assertion %s", c)
		}
		s.Assert(b)
	}

	sat, err := s.Check()
	if err != nil {
		return Result{Verdict: Unknown}, nil
	}
	if !sat {
		return Result{Verdict: Unsat}, nil
	}

	m := s.Model()
	model := make(Model)
	for _, v := range smt.ScalarVars(constraints...) {
		c, ok := tr.consts[v.Name]
		if !ok {
			continue
		}
		if val, parsed := ParseLiteral(m.Eval(c, true).String()); parsed {
			model[v.Name] = val
		}
	}
	return Result{Verdict: Sat, Model: model}, nil
}

type translator struct {
	ctx    *z3.Context
	consts map[string]z3.Value
}

func (t *translator) constant(v *smt.Var) z3.Value {
	if c, ok := t.consts[v.Name]; ok {
		return c
	}
	var c z3.Value
	switch v.VarSort {
	case smt.SortBool:
		c = t.ctx.BoolConst(v.Name)
	case smt.SortArray:
		c = t.ctx.Const(v.Name, t.ctx.ArraySort(t.ctx.IntSort(), t.ctx.IntSort()))
	default:
		c = t.ctx.IntConst(v.Name)
	}
	t.consts[v.Name] = c
	return c
}

func (t *translator) term(term smt.Term) (z3.Value, error) {
	switch v := term.(type) {
	case *smt.Var:
		return t.constant(v), nil
	case *smt.IntLit:
		return t.ctx.FromInt(v.Value, t.ctx.IntSort()), nil
	case *smt.BoolLit:
		return t.ctx.FromBool(v.Value), nil
	case *smt.NotTerm:
		x, err := t.term(v.X)
		if err != nil {
			return nil, err
		}
		return x.(z3.Bool).Not(), nil
	case *smt.Ite:
		cond, err := t.term(v.Cond)
		if err != nil {
			return nil, err
		}
		then, err := t.term(v.Then)
		if err != nil {
			return nil, err
		}
		els, err := t.term(v.Else)
		if err != nil {
			return nil, err
		}
		return cond.(z3.Bool).IfThenElse(then, els), nil
	case *smt.SelectTerm:
		arr, err := t.term(v.Array)
		if err != nil {
			return nil, err
		}
		idx, err := t.term(v.Index)
		if err != nil {
			return nil, err
		}
		return arr.(z3.Array).Select(idx), nil
	case *smt.StoreTerm:
		arr, err := t.term(v.Array)
		if err != nil {
			return nil, err
		}
		idx, err := t.term(v.Index)
		if err != nil {
			return nil, err
		}
		val, err := t.term(v.Value)
		if err != nil {
			return nil, err
		}
		return arr.(z3.Array).Store(idx, val), nil
	case *smt.Bin:
		return t.binary(v)
	default:
		return nil, fmt.Errorf("solver: cannot translate %T", term)
	}
}

func (t *translator) binary(b *smt.Bin) (z3.Value, error) {
	x, err := t.term(b.X)
	if err != nil {
		return nil, err
	}
	y, err := t.term(b.Y)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case smt.OpAdd:
		return x.(z3.Int).Add(y.(z3.Int)), nil
	case smt.OpSub:
		return x.(z3.Int).Sub(y.(z3.Int)), nil
	case smt.OpMul:
		return x.(z3.Int).Mul(y.(z3.Int)), nil
	case smt.OpDiv:
		return x.(z3.Int).Div(y.(z3.Int)), nil
	case smt.OpMod:
		return x.(z3.Int).Mod(y.(z3.Int)), nil
	case smt.OpLt:
		return x.(z3.Int).LT(y.(z3.Int)), nil
	case smt.OpLe:
		return x.(z3.Int).LE(y.(z3.Int)), nil
	case smt.OpGt:
		return x.(z3.Int).GT(y.(z3.Int)), nil
	case smt.OpGe:
		return x.(z3.Int).GE(y.(z3.Int)), nil
	case smt.OpAnd:
		return x.(z3.Bool).And(y.(z3.Bool)), nil
	case smt.OpOr:
		return x.(z3.Bool).Or(y.(z3.Bool)), nil
	case smt.OpImplies:
		return x.(z3.Bool).Implies(y.(z3.Bool)), nil
	case smt.OpEq, smt.OpNe:
		eq, err := equality(b.X.Sort(), x, y)
		if err != nil {
			return nil, err
		}
		if b.Op == smt.OpNe {
			return eq.Not(), nil
		}
		return eq, nil
	default:
		return nil, fmt.Errorf("solver: cannot translate operator %s", b.Op)
	}
}

func equality(sort smt.Sort, x, y z3.Value) (z3.Bool, error) {
	switch sort {
	case smt.SortInt:
		return x.(z3.Int).Eq(y.(z3.Int)), nil
	case smt.SortBool:
		return x.(z3.Bool).Eq(y.(z3.Bool)), nil
	case smt.SortArray:
		return x.(z3.Array).Eq(y.(z3.Array)), nil
	default:
		return z3.Bool{}, fmt.Errorf("solver: no equality for sort %s", sort)
	}
}
