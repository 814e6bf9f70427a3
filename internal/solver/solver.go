// Package solver is the boundary to the SMT solver. The checker hands a
// solver a conjunction of constraints and gets back a verdict plus, on
// satisfiability, a model over the scalar constants. Backends are stateless
// between calls.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/kimroniny/solidity/internal/smt"
)

// Verdict is the solver's answer for one query.
type Verdict int

const (
	// Unsat: no assignment satisfies the constraints. For a verification
	// condition this proves the assertion.
	Unsat Verdict = iota
	// Sat: a satisfying assignment exists; the model carries it.
	Sat
	// Unknown: the solver gave up within its resource budget.
	Unknown
)

func (v Verdict) String() string {
	switch v {
	case Unsat:
		return "unsat"
	case Sat:
		return "sat"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("<?verdict:%d>", int(v))
	}
}

// Value is a concrete scalar from a model.
type Value struct {
	Sort smt.Sort
	Int  int64
	Bool bool
}

// IntValue returns an integer model value.
func IntValue(v int64) Value { return Value{Sort: smt.SortInt, Int: v} }

// BoolValue returns a boolean model value.
func BoolValue(v bool) Value { return Value{Sort: smt.SortBool, Bool: v} }

func (v Value) String() string {
	if v.Sort == smt.SortBool {
		return fmt.Sprintf("%t", v.Bool)
	}
	return fmt.Sprintf("%d", v.Int)
}

// Model maps solver constant names to their concrete values.
type Model map[string]Value

// Result is the outcome of one query.
type Result struct {
	Verdict Verdict
	Model   Model
}

// Solver answers satisfiability queries. Check must honor the context for
// cancellation and treat budget as a soft per-query limit; on exhaustion it
// returns Unknown rather than an error.
type Solver interface {
	Name() string
	Check(ctx context.Context, constraints []smt.Term, budget time.Duration) (Result, error)
}

// Func adapts a function to the Solver interface, mainly for tests.
type Func func(ctx context.Context, constraints []smt.Term, budget time.Duration) (Result, error)

func (f Func) Name() string { return "func" }

func (f Func) Check(ctx context.Context, constraints []smt.Term, budget time.Duration) (Result, error) {
	return f(ctx, constraints, budget)
}

// CheckWithRetry runs one query and, on Unknown or a process failure,
// retries once at half the budget. The retry sometimes succeeds because the
// solver takes a different search path under a tighter limit; a second
// Unknown or failure is final.
func CheckWithRetry(ctx context.Context, s Solver, constraints []smt.Term, budget time.Duration) (Result, error) {
	res, err := s.Check(ctx, constraints, budget)
	if err == nil && res.Verdict != Unknown {
		return res, nil
	}
	if ctx.Err() != nil {
		return Result{Verdict: Unknown}, nil
	}
	return s.Check(ctx, constraints, budget/2)
}
