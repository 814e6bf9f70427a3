package checker

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kimroniny/solidity/internal/cfg"
	"github.com/kimroniny/solidity/internal/diag"
	"github.com/kimroniny/solidity/internal/smt"
	"github.com/kimroniny/solidity/internal/solver"
)

// seedFunction is the reference program, with array reads flattened into
// temporaries by the front-end:
//
//	fn f(x: int) {
//	  array[x] = 2
//	  a = ++array[x]
//	  t0 = array[x]
//	  assert(t0 == 3)
//	  assert(a == 3)
//	  b = array[x]++
//	  t1 = array[x]
//	  assert(t1 == 4)
//	  assert(b < 3)
//	}
func seedFunction() *cfg.Function {
	x := cfg.Local{ID: 0, Name: "x", Type: cfg.TypeInt}
	array := cfg.Local{ID: 1, Name: "array", Type: cfg.TypeIntArray}
	a := cfg.Local{ID: 2, Name: "a", Type: cfg.TypeInt}
	b := cfg.Local{ID: 3, Name: "b", Type: cfg.TypeInt}
	t0 := cfg.Local{ID: 4, Name: "t0", Type: cfg.TypeInt}
	t1 := cfg.Local{ID: 5, Name: "t1", Type: cfg.TypeInt}

	entry := &cfg.BasicBlock{
		Label: "entry",
		Statements: []cfg.Statement{
			&cfg.StoreIndex{Array: array, Index: cfg.Ref(x), Value: cfg.IntLit(2)},
			&cfg.IncIndex{Result: &a, Array: array, Index: cfg.Ref(x), Delta: 1, Pre: true},
			&cfg.LoadIndex{Result: t0, Array: array, Index: cfg.Ref(x)},
			&cfg.Assert{Cond: &cfg.BinaryExpr{Op: cfg.OpEq, X: cfg.Ref(t0), Y: cfg.IntLit(3)}, Span: diag.Span{Start: 60, End: 75}},
			&cfg.Assert{Cond: &cfg.BinaryExpr{Op: cfg.OpEq, X: cfg.Ref(a), Y: cfg.IntLit(3)}, Span: diag.Span{Start: 80, End: 92}},
			&cfg.IncIndex{Result: &b, Array: array, Index: cfg.Ref(x), Delta: 1, Pre: false},
			&cfg.LoadIndex{Result: t1, Array: array, Index: cfg.Ref(x)},
			&cfg.Assert{Cond: &cfg.BinaryExpr{Op: cfg.OpEq, X: cfg.Ref(t1), Y: cfg.IntLit(4)}, Span: diag.Span{Start: 100, End: 114}},
			&cfg.Assert{Cond: &cfg.BinaryExpr{Op: cfg.OpLt, X: cfg.Ref(b), Y: cfg.IntLit(3)}, Span: diag.Span{Start: 120, End: 133}},
		},
		Terminator: &cfg.Return{},
	}

	return &cfg.Function{
		Name:   "f",
		Params: []cfg.Local{x},
		Locals: []cfg.Local{array, a, b, t0, t1},
		Blocks: []*cfg.BasicBlock{entry},
		Entry:  entry,
	}
}

// seedSolver answers like z3 would on the seed program: only the negation of
// b < 3 is satisfiable, with the witness x = 0.
func seedSolver() solver.Solver {
	model := solver.Model{
		"x":    solver.IntValue(0),
		"rd@0": solver.IntValue(2),
		"a@0":  solver.IntValue(3),
		"rd@1": solver.IntValue(3),
		"rd@2": solver.IntValue(3),
		"rd@3": solver.IntValue(4),
	}
	return solver.Func(func(_ context.Context, constraints []smt.Term, _ time.Duration) (solver.Result, error) {
		neg := constraints[len(constraints)-1].String()
		if neg == "!(rd@2 < 3)" {
			return solver.Result{Verdict: solver.Sat, Model: model}, nil
		}
		return solver.Result{Verdict: solver.Unsat}, nil
	})
}

const seedDiagnostic = `Warning 6328: (120-133): CHC: Assertion violation happens here.
Counterexample:

a = 0
array = []
b = 0
t0 = 0
t1 = 0
x = 0

Transaction trace:
f(0)
State: a = 0, array = [0 -> 2], b = 0, t0 = 0, t1 = 0, x = 0
State: a = 3, array = [0 -> 3], b = 0, t0 = 0, t1 = 0, x = 0
State: a = 3, array = [0 -> 3], b = 0, t0 = 3, t1 = 0, x = 0
State: a = 3, array = [0 -> 4], b = 3, t0 = 3, t1 = 0, x = 0
State: a = 3, array = [0 -> 4], b = 3, t0 = 3, t1 = 4, x = 0
`

func formatReport(t *testing.T, r *Report) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, diag.NewFormatter(&b).FormatAll(r.Diagnostics))
	return b.String()
}

func TestCheckFunction_Seed(t *testing.T) {
	c := New(DefaultConfig(), seedSolver(), nil)

	report, err := c.CheckFunction(context.Background(), seedFunction())
	require.NoError(t, err)

	require.Equal(t, 3, report.Proved)
	require.Equal(t, 1, report.Refuted)
	require.Equal(t, 0, report.Unknown)
	require.Equal(t, 0, report.Unsupported)
	require.Len(t, report.Results, 4)
	require.Equal(t, Refuted, report.Results[3].Outcome)

	require.Equal(t, seedDiagnostic, formatReport(t, report))
}

func TestCheckFunction_Deterministic(t *testing.T) {
	var outputs []string
	for i := 0; i < 2; i++ {
		c := New(DefaultConfig(), seedSolver(), nil)
		report, err := c.CheckFunction(context.Background(), seedFunction())
		require.NoError(t, err)
		outputs = append(outputs, formatReport(t, report))
	}
	require.Equal(t, outputs[0], outputs[1], "diagnostic output must be byte-identical across runs")
}

func TestCheckFunction_UnknownNeverProved(t *testing.T) {
	// A solver that always times out must downgrade every condition to
	// Unknown, never silently to Proved.
	exhausted := solver.Func(func(_ context.Context, _ []smt.Term, _ time.Duration) (solver.Result, error) {
		return solver.Result{Verdict: solver.Unknown}, nil
	})
	c := New(DefaultConfig(), exhausted, nil)

	report, err := c.CheckFunction(context.Background(), seedFunction())
	require.NoError(t, err)

	require.Equal(t, 0, report.Proved)
	require.Equal(t, 4, report.Unknown)
	out := formatReport(t, report)
	require.Contains(t, out, "Warning 7812:")
	require.Contains(t, out, "CHC: Assertion violation might happen here.")
	require.NotContains(t, out, "Counterexample:")
}

func TestCheckFunction_SolverFailureIsUnknown(t *testing.T) {
	broken := solver.Func(func(_ context.Context, _ []smt.Term, _ time.Duration) (solver.Result, error) {
		return solver.Result{}, context.DeadlineExceeded
	})
	c := New(DefaultConfig(), broken, nil)

	report, err := c.CheckFunction(context.Background(), seedFunction())
	require.NoError(t, err)
	require.Equal(t, 4, report.Unknown)
}

func TestCheckFunction_CancellationKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(DefaultConfig(), seedSolver(), nil)
	report, err := c.CheckFunction(ctx, seedFunction())
	require.NoError(t, err)

	// Nothing was checked, but the run still reports every condition.
	require.Len(t, report.Results, 4)
	require.Equal(t, 4, report.Unknown)
}

func TestCheckFunction_BoundsPolicy(t *testing.T) {
	x := cfg.Local{ID: 0, Name: "x", Type: cfg.TypeInt}
	array := cfg.Local{ID: 1, Name: "array", Type: cfg.TypeIntArray}
	v := cfg.Local{ID: 2, Name: "v", Type: cfg.TypeInt}

	entry := &cfg.BasicBlock{
		Label: "entry",
		Statements: []cfg.Statement{
			&cfg.LoadIndex{Result: v, Array: array, Index: cfg.Ref(x), Span: diag.Span{Start: 10, End: 20}},
			&cfg.Assert{Cond: &cfg.BinaryExpr{Op: cfg.OpGe, X: cfg.Ref(v), Y: cfg.IntLit(0)}, Span: diag.Span{Start: 30, End: 45}},
		},
		Terminator: &cfg.Return{},
	}
	fn := &cfg.Function{
		Name:   "h",
		Params: []cfg.Local{x},
		Locals: []cfg.Local{array, v},
		Blocks: []*cfg.BasicBlock{entry},
		Entry:  entry,
	}

	// The bounds obligation is refutable with x = -1; the user assertion
	// is treated as proved.
	sol := solver.Func(func(_ context.Context, constraints []smt.Term, _ time.Duration) (solver.Result, error) {
		neg := constraints[len(constraints)-1].String()
		if strings.Contains(neg, "array.length") {
			return solver.Result{Verdict: solver.Sat, Model: solver.Model{"x": solver.IntValue(-1)}}, nil
		}
		return solver.Result{Verdict: solver.Unsat}, nil
	})

	cfgAssert := DefaultConfig()
	cfgAssert.Bounds = "assert"
	report, err := New(cfgAssert, sol, nil).CheckFunction(context.Background(), fn)
	require.NoError(t, err)
	require.Equal(t, 1, report.Refuted)

	out := formatReport(t, report)
	require.Contains(t, out, "Warning 6368: (10-20): CHC: Out of bounds access happens here.")

	// Under the default nondeterministic policy no bounds VC exists.
	report, err = New(DefaultConfig(), sol, nil).CheckFunction(context.Background(), fn)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	require.Equal(t, 0, report.Refuted)
}

func TestCheckFunction_Z3EndToEnd(t *testing.T) {
	if _, err := exec.LookPath("z3"); err != nil {
		t.Skip("z3 binary not on PATH")
	}

	data, err := os.ReadFile("testdata/seed.yaml")
	require.NoError(t, err)
	fn, err := cfg.DecodeFunction(data)
	require.NoError(t, err)

	z3, err := solver.NewZ3("")
	require.NoError(t, err)
	c := New(DefaultConfig(), z3, nil)

	report, err := c.CheckFunction(context.Background(), fn)
	require.NoError(t, err)

	require.Equal(t, 3, report.Proved)
	require.Equal(t, 1, report.Refuted)
	require.Equal(t, 0, report.Unknown)

	out := formatReport(t, report)
	require.Contains(t, out, "Warning 6328: (120-133): CHC: Assertion violation happens here.")
	require.Contains(t, out, "Counterexample:")
	require.Contains(t, out, "Transaction trace:")

	// Two real runs must produce the same bytes.
	report2, err := New(DefaultConfig(), z3, nil).CheckFunction(context.Background(), fn)
	require.NoError(t, err)
	require.Equal(t, out, formatReport(t, report2))
}

func TestCheckFunction_UnsupportedLoop(t *testing.T) {
	i := cfg.Local{ID: 0, Name: "i", Type: cfg.TypeInt}

	header := &cfg.BasicBlock{Label: "header"}
	body := &cfg.BasicBlock{
		Label:      "body",
		Statements: []cfg.Statement{&cfg.Assert{Cond: cfg.BoolLit(true), Span: diag.Span{Start: 5, End: 9}}},
		Terminator: &cfg.Goto{Target: header},
	}
	exit := &cfg.BasicBlock{Label: "exit", Terminator: &cfg.Return{}}
	header.Terminator = &cfg.Branch{
		Condition: &cfg.BinaryExpr{Op: cfg.OpLt, X: cfg.Ref(i), Y: cfg.IntLit(10)},
		True:      body,
		False:     exit,
	}
	fn := &cfg.Function{
		Name:   "loop",
		Params: []cfg.Local{i},
		Blocks: []*cfg.BasicBlock{header, body, exit},
		Entry:  header,
		Span:   diag.Span{Start: 0, End: 50},
	}

	unsat := solver.Func(func(_ context.Context, _ []smt.Term, _ time.Duration) (solver.Result, error) {
		return solver.Result{Verdict: solver.Unsat}, nil
	})

	report, err := New(DefaultConfig(), unsat, nil).CheckFunction(context.Background(), fn)
	require.NoError(t, err)

	// The loop is reported once; the assertion on the first pass through
	// the body is still verified.
	require.Equal(t, 1, report.Unsupported)
	require.Equal(t, 1, report.Proved)
	require.Contains(t, formatReport(t, report), "Warning 8182:")
}
