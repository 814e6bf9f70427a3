package encoder

import (
	"testing"

	"github.com/kimroniny/solidity/internal/cfg"
	"github.com/kimroniny/solidity/internal/diag"
)

// seedFunction builds the running example:
//
//	fn f(x: int) {
//	  array[x] = 2
//	  a = ++array[x]
//	  assert(a == 3)
//	  b = array[x]++
//	  assert(b < 3)
//	}
func seedFunction(t *testing.T) *cfg.Function {
	t.Helper()

	x := cfg.Local{ID: 0, Name: "x", Type: cfg.TypeInt}
	array := cfg.Local{ID: 1, Name: "array", Type: cfg.TypeIntArray}
	a := cfg.Local{ID: 2, Name: "a", Type: cfg.TypeInt}
	b := cfg.Local{ID: 3, Name: "b", Type: cfg.TypeInt}

	entry := &cfg.BasicBlock{
		Label: "entry",
		Statements: []cfg.Statement{
			&cfg.StoreIndex{Array: array, Index: cfg.Ref(x), Value: cfg.IntLit(2)},
			&cfg.IncIndex{Result: &a, Array: array, Index: cfg.Ref(x), Delta: 1, Pre: true},
			&cfg.Assert{Cond: &cfg.BinaryExpr{Op: cfg.OpEq, X: cfg.Ref(a), Y: cfg.IntLit(3)}, Span: diag.Span{Start: 100, End: 113}},
			&cfg.IncIndex{Result: &b, Array: array, Index: cfg.Ref(x), Delta: 1, Pre: false},
			&cfg.Assert{Cond: &cfg.BinaryExpr{Op: cfg.OpLt, X: cfg.Ref(b), Y: cfg.IntLit(3)}, Span: diag.Span{Start: 120, End: 133}},
		},
		Terminator: &cfg.Return{},
	}

	return &cfg.Function{
		Name:   "f",
		Params: []cfg.Local{x},
		Locals: []cfg.Local{array, a, b},
		Blocks: []*cfg.BasicBlock{entry},
		Entry:  entry,
	}
}

func constraintStrings(path []Transition) []string {
	var out []string
	for _, tr := range path {
		if tr.Constraint != nil {
			out = append(out, tr.Constraint.String())
		}
	}
	return out
}

func TestEncode_SeedFunction(t *testing.T) {
	res, err := Encode(seedFunction(t), Options{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(res.Findings) != 0 {
		t.Fatalf("unexpected findings: %v", res.Findings)
	}
	if len(res.VCs) != 2 {
		t.Fatalf("expected 2 verification conditions, got %d", len(res.VCs))
	}

	// Every rebinding gets a fresh version; every read a fresh scalar.
	want := []string{
		"(array@1 == store(array@0, x, 2))",
		"(rd@0 == array@1[x])",
		"(array@2 == store(array@1, x, (rd@0 + 1)))",
		"(a@0 == (rd@0 + 1))",
		"(rd@1 == array@2[x])",
		"(array@3 == store(array@2, x, (rd@1 + 1)))",
	}
	got := constraintStrings(res.VCs[1].Path)
	if len(got) != len(want) {
		t.Fatalf("transition constraints:\ngot  %v\nwant %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("constraint %d = %q, want %q", i, got[i], want[i])
		}
	}

	vc0 := res.VCs[0]
	if vc0.ID != 0 || vc0.Kind != KindAssert {
		t.Errorf("first VC = id %d kind %d", vc0.ID, vc0.Kind)
	}
	if vc0.Guard.String() != "true" {
		t.Errorf("straight-line guard = %s, want true", vc0.Guard)
	}
	if vc0.Pred.String() != "(a@0 == 3)" {
		t.Errorf("first predicate = %s", vc0.Pred)
	}
	if len(vc0.Path) != 4 {
		t.Errorf("first VC path length = %d, want 4", len(vc0.Path))
	}

	// The post-fix result is the pre-value: bound directly to the read
	// variable, with no extra constraint.
	vc1 := res.VCs[1]
	if vc1.Pred.String() != "(rd@1 < 3)" {
		t.Errorf("second predicate = %s", vc1.Pred)
	}
	if vc1.Span.Start != 120 || vc1.Span.End != 133 {
		t.Errorf("second VC span = %s", vc1.Span)
	}

	// Guard and negated predicate close the satisfiability problem.
	cs := vc1.Constraints()
	if len(cs) != len(want)+2 {
		t.Fatalf("Constraints() returned %d terms", len(cs))
	}
	if cs[len(cs)-1].String() != "!(rd@1 < 3)" {
		t.Errorf("last constraint = %s, want negated predicate", cs[len(cs)-1])
	}
}

// The compound increment must encode exactly as the explicit
// load-add-store sequence does.
func TestEncode_CompoundIncrementEquivalence(t *testing.T) {
	x := cfg.Local{ID: 0, Name: "x", Type: cfg.TypeInt}
	array := cfg.Local{ID: 1, Name: "array", Type: cfg.TypeIntArray}
	a := cfg.Local{ID: 2, Name: "a", Type: cfg.TypeInt}
	tmp := cfg.Local{ID: 3, Name: "a", Type: cfg.TypeInt}

	// A trailing trivial assertion captures the walked path in a VC.
	compound := &cfg.Function{
		Name:   "f",
		Params: []cfg.Local{x},
		Locals: []cfg.Local{array, a},
		Blocks: []*cfg.BasicBlock{{
			Label: "entry",
			Statements: []cfg.Statement{
				&cfg.IncIndex{Result: &a, Array: array, Index: cfg.Ref(x), Delta: 1, Pre: true},
				&cfg.Assert{Cond: cfg.BoolLit(true)},
			},
			Terminator: &cfg.Return{},
		}},
	}
	compound.Entry = compound.Blocks[0]

	// t = array[x]: the explicit load form of the same read.
	explicit := &cfg.Function{
		Name:   "f",
		Params: []cfg.Local{x},
		Locals: []cfg.Local{array, tmp},
		Blocks: []*cfg.BasicBlock{{
			Label: "entry",
			Statements: []cfg.Statement{
				&cfg.LoadIndex{Result: tmp, Array: array, Index: cfg.Ref(x)},
				&cfg.Assert{Cond: cfg.BoolLit(true)},
			},
			Terminator: &cfg.Return{},
		}},
	}
	explicit.Entry = explicit.Blocks[0]

	resC, err := Encode(compound, Options{})
	if err != nil {
		t.Fatalf("encode compound: %v", err)
	}

	want := []string{
		"(rd@0 == array@0[x])",
		"(array@1 == store(array@0, x, (rd@0 + 1)))",
		"(a@0 == (rd@0 + 1))",
	}
	got := constraintStrings(resC.VCs[0].Path)
	if len(got) != len(want) {
		t.Fatalf("compound constraints:\ngot  %v\nwant %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("compound constraint %d = %q, want %q", i, got[i], want[i])
		}
	}

	// The explicit load produces the same read binding.
	resE, err := Encode(explicit, Options{})
	if err != nil {
		t.Fatalf("encode explicit: %v", err)
	}
	gotE := constraintStrings(resE.VCs[0].Path)
	if len(gotE) != 1 || gotE[0] != want[0] {
		t.Errorf("explicit load constraint = %v, want %q", gotE, want[0])
	}
}

func TestEncode_BranchGuards(t *testing.T) {
	x := cfg.Local{ID: 0, Name: "x", Type: cfg.TypeInt}

	bt := &cfg.BasicBlock{
		Label:      "then",
		Statements: []cfg.Statement{&cfg.Assert{Cond: cfg.BoolLit(true)}},
		Terminator: &cfg.Return{},
	}
	bf := &cfg.BasicBlock{
		Label:      "else",
		Statements: []cfg.Statement{&cfg.Assert{Cond: cfg.BoolLit(true)}},
		Terminator: &cfg.Return{},
	}
	entry := &cfg.BasicBlock{
		Label: "entry",
		Terminator: &cfg.Branch{
			Condition: &cfg.BinaryExpr{Op: cfg.OpGt, X: cfg.Ref(x), Y: cfg.IntLit(0)},
			True:      bt,
			False:     bf,
		},
	}

	fn := &cfg.Function{
		Name:   "g",
		Params: []cfg.Local{x},
		Blocks: []*cfg.BasicBlock{entry, bt, bf},
		Entry:  entry,
	}

	res, err := Encode(fn, Options{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(res.VCs) != 2 {
		t.Fatalf("expected 2 VCs, got %d", len(res.VCs))
	}

	// True edge explored first; false edge gets the negated condition.
	if g := res.VCs[0].Guard.String(); g != "(x > 0)" {
		t.Errorf("true-path guard = %s", g)
	}
	if g := res.VCs[1].Guard.String(); g != "!(x > 0)" {
		t.Errorf("false-path guard = %s", g)
	}
}

func accessFunction() *cfg.Function {
	x := cfg.Local{ID: 0, Name: "x", Type: cfg.TypeInt}
	array := cfg.Local{ID: 1, Name: "array", Type: cfg.TypeIntArray}
	v := cfg.Local{ID: 2, Name: "v", Type: cfg.TypeInt}

	entry := &cfg.BasicBlock{
		Label: "entry",
		Statements: []cfg.Statement{
			&cfg.LoadIndex{Result: v, Array: array, Index: cfg.Ref(x), Span: diag.Span{Start: 10, End: 20}},
			&cfg.Assert{Cond: &cfg.BinaryExpr{Op: cfg.OpGe, X: cfg.Ref(v), Y: cfg.IntLit(0)}},
		},
		Terminator: &cfg.Return{},
	}
	return &cfg.Function{
		Name:   "h",
		Params: []cfg.Local{x},
		Locals: []cfg.Local{array, v},
		Blocks: []*cfg.BasicBlock{entry},
		Entry:  entry,
	}
}

func TestEncode_BoundsPolicies(t *testing.T) {
	inBounds := "((x >= 0) && (x < array.length))"

	// Default: the access is unconstrained and produces no extra VC.
	res, err := Encode(accessFunction(), Options{Bounds: BoundsNondet})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(res.VCs) != 1 || res.VCs[0].Guard.String() != "true" {
		t.Fatalf("nondet policy added constraints: %v", res.VCs)
	}

	// Assert: every access contributes a bounds obligation before the
	// user assertion.
	res, err = Encode(accessFunction(), Options{Bounds: BoundsAssert})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(res.VCs) != 2 {
		t.Fatalf("assert policy: expected 2 VCs, got %d", len(res.VCs))
	}
	if res.VCs[0].Kind != KindBounds || res.VCs[0].Pred.String() != inBounds {
		t.Errorf("bounds VC = kind %d pred %s", res.VCs[0].Kind, res.VCs[0].Pred)
	}
	if res.VCs[0].Span.Start != 10 {
		t.Errorf("bounds VC span = %s, want the access span", res.VCs[0].Span)
	}

	// Assume: in-bounds joins the path condition instead.
	res, err = Encode(accessFunction(), Options{Bounds: BoundsAssume})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(res.VCs) != 1 {
		t.Fatalf("assume policy: expected 1 VC, got %d", len(res.VCs))
	}
	if g := res.VCs[0].Guard.String(); g != inBounds {
		t.Errorf("assume policy guard = %s", g)
	}
}

func loopFunction() *cfg.Function {
	i := cfg.Local{ID: 0, Name: "i", Type: cfg.TypeInt}

	header := &cfg.BasicBlock{Label: "header"}
	body := &cfg.BasicBlock{
		Label:      "body",
		Statements: []cfg.Statement{&cfg.Assert{Cond: cfg.BoolLit(true)}},
		Terminator: &cfg.Goto{Target: header},
	}
	exit := &cfg.BasicBlock{Label: "exit", Terminator: &cfg.Return{}}
	header.Terminator = &cfg.Branch{
		Condition: &cfg.BinaryExpr{Op: cfg.OpLt, X: cfg.Ref(i), Y: cfg.IntLit(10)},
		True:      body,
		False:     exit,
	}

	return &cfg.Function{
		Name:   "loop",
		Params: []cfg.Local{i},
		Blocks: []*cfg.BasicBlock{header, body, exit},
		Entry:  header,
		Span:   diag.Span{Start: 0, End: 50},
	}
}

func TestEncode_UnrollLimit(t *testing.T) {
	// Limit 0: the body is walked once, the back edge is reported as
	// unsupported, and the rest of the function is still encoded.
	res, err := Encode(loopFunction(), Options{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(res.VCs) != 1 {
		t.Errorf("expected 1 VC at unroll limit 0, got %d", len(res.VCs))
	}
	if len(res.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(res.Findings))
	}
	f := res.Findings[0]
	if f.Code != diag.CodeUnsupportedConstruct {
		t.Errorf("finding code = %d, want %d", f.Code, diag.CodeUnsupportedConstruct)
	}
	if f.Span != res.Function.Span {
		t.Errorf("finding span = %s, want the function span", f.Span)
	}

	// Limit 1: one extra pass through the body, so the assertion inside
	// it is checked on two path prefixes.
	res, err = Encode(loopFunction(), Options{MaxUnroll: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(res.VCs) != 2 {
		t.Errorf("expected 2 VCs at unroll limit 1, got %d", len(res.VCs))
	}
	if len(res.Findings) != 1 {
		t.Errorf("limit finding not deduplicated: %d", len(res.Findings))
	}
}

func TestEncode_EntryBindings(t *testing.T) {
	res, err := Encode(seedFunction(t), Options{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if base, ok := res.Entry.BaseArrays["array"]; !ok || base != "array@0" {
		t.Errorf("entry array version = %q, want array@0", base)
	}

	xv, err := res.Entry.State.Read("x")
	if err != nil {
		t.Fatalf("read x: %v", err)
	}
	if xv.String() != "x" {
		t.Errorf("parameter bound to %s, want the unversioned name", xv)
	}

	av, err := res.Entry.State.Read("a")
	if err != nil {
		t.Fatalf("read a: %v", err)
	}
	if av.String() != "0" {
		t.Errorf("scalar local initial value = %s, want 0", av)
	}

	length, err := res.Entry.State.Length("array")
	if err != nil {
		t.Fatalf("length: %v", err)
	}
	if length.String() != "array.length" {
		t.Errorf("array length term = %s", length)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	r1, err := Encode(seedFunction(t), Options{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r2, err := Encode(seedFunction(t), Options{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(r1.VCs) != len(r2.VCs) {
		t.Fatalf("VC counts differ: %d vs %d", len(r1.VCs), len(r2.VCs))
	}
	for i := range r1.VCs {
		c1 := constraintStrings(r1.VCs[i].Path)
		c2 := constraintStrings(r2.VCs[i].Path)
		if len(c1) != len(c2) {
			t.Fatalf("VC %d path lengths differ", i)
		}
		for j := range c1 {
			if c1[j] != c2[j] {
				t.Errorf("VC %d constraint %d differs: %q vs %q", i, j, c1[j], c2[j])
			}
		}
		if r1.VCs[i].Guard.String() != r2.VCs[i].Guard.String() {
			t.Errorf("VC %d guards differ", i)
		}
	}
}
