// Package smt defines the symbolic term language the encoder produces and
// the solver boundary consumes. Terms are immutable trees; arrays are total
// functions from integer indices to integer values, never materialized.
package smt

import (
	"fmt"
	"sort"
)

// Sort is the type of a term.
type Sort int

const (
	SortInt Sort = iota
	SortBool
	// SortArray is the sort of integer-indexed integer arrays.
	SortArray
)

func (s Sort) String() string {
	switch s {
	case SortInt:
		return "Int"
	case SortBool:
		return "Bool"
	case SortArray:
		return "(Array Int Int)"
	default:
		return fmt.Sprintf("<?sort:%d>", int(s))
	}
}

// Term is a symbolic expression.
type Term interface {
	Sort() Sort
	String() string
}

// Var is a symbolic variable (a solver constant).
type Var struct {
	Name    string
	VarSort Sort
}

func (v *Var) Sort() Sort     { return v.VarSort }
func (v *Var) String() string { return v.Name }

// IntVar returns a fresh integer variable reference.
func IntVar(name string) *Var { return &Var{Name: name, VarSort: SortInt} }

// BoolVar returns a fresh boolean variable reference.
func BoolVar(name string) *Var { return &Var{Name: name, VarSort: SortBool} }

// ArrayVar returns a fresh array variable reference.
func ArrayVar(name string) *Var { return &Var{Name: name, VarSort: SortArray} }

// IntLit is an integer constant.
type IntLit struct {
	Value int64
}

func (l *IntLit) Sort() Sort     { return SortInt }
func (l *IntLit) String() string { return fmt.Sprintf("%d", l.Value) }

// Int returns an integer literal term.
func Int(v int64) *IntLit { return &IntLit{Value: v} }

// BoolLit is a boolean constant.
type BoolLit struct {
	Value bool
}

func (l *BoolLit) Sort() Sort     { return SortBool }
func (l *BoolLit) String() string { return fmt.Sprintf("%t", l.Value) }

// Bool returns a boolean literal term.
func Bool(v bool) *BoolLit { return &BoolLit{Value: v} }

// BinOp is a binary operator.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpImplies
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpImplies:
		return "=>"
	default:
		return "unknown"
	}
}

// Bin is a binary operation.
type Bin struct {
	Op BinOp
	X  Term
	Y  Term
}

func (b *Bin) Sort() Sort {
	switch b.Op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod:
		return SortInt
	default:
		return SortBool
	}
}

func (b *Bin) String() string {
	return fmt.Sprintf("(%s %s %s)", b.X, b.Op, b.Y)
}

func newBin(op BinOp, x, y Term) *Bin {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpLt, OpLe, OpGt, OpGe:
		if x.Sort() != SortInt || y.Sort() != SortInt {
			panic(fmt.Sprintf("smt: operator %s requires integer operands, got %s and %s", op, x.Sort(), y.Sort()))
		}
	case OpEq, OpNe:
		if x.Sort() != y.Sort() {
			panic(fmt.Sprintf("smt: operator %s requires same-sorted operands, got %s and %s", op, x.Sort(), y.Sort()))
		}
	case OpAnd, OpOr, OpImplies:
		if x.Sort() != SortBool || y.Sort() != SortBool {
			panic(fmt.Sprintf("smt: operator %s requires boolean operands, got %s and %s", op, x.Sort(), y.Sort()))
		}
	}
	return &Bin{Op: op, X: x, Y: y}
}

func Add(x, y Term) Term     { return newBin(OpAdd, x, y) }
func Sub(x, y Term) Term     { return newBin(OpSub, x, y) }
func Mul(x, y Term) Term     { return newBin(OpMul, x, y) }
func Div(x, y Term) Term     { return newBin(OpDiv, x, y) }
func Mod(x, y Term) Term     { return newBin(OpMod, x, y) }
func Eq(x, y Term) Term      { return newBin(OpEq, x, y) }
func Ne(x, y Term) Term      { return newBin(OpNe, x, y) }
func Lt(x, y Term) Term      { return newBin(OpLt, x, y) }
func Le(x, y Term) Term      { return newBin(OpLe, x, y) }
func Gt(x, y Term) Term      { return newBin(OpGt, x, y) }
func Ge(x, y Term) Term      { return newBin(OpGe, x, y) }
func Implies(x, y Term) Term { return newBin(OpImplies, x, y) }

// And folds the given boolean terms into a conjunction. And() is true.
func And(terms ...Term) Term {
	switch len(terms) {
	case 0:
		return Bool(true)
	case 1:
		return terms[0]
	}
	acc := terms[0]
	for _, t := range terms[1:] {
		acc = newBin(OpAnd, acc, t)
	}
	return acc
}

// Or folds the given boolean terms into a disjunction. Or() is false.
func Or(terms ...Term) Term {
	switch len(terms) {
	case 0:
		return Bool(false)
	case 1:
		return terms[0]
	}
	acc := terms[0]
	for _, t := range terms[1:] {
		acc = newBin(OpOr, acc, t)
	}
	return acc
}

// NotTerm is a boolean negation.
type NotTerm struct {
	X Term
}

func (n *NotTerm) Sort() Sort     { return SortBool }
func (n *NotTerm) String() string { return fmt.Sprintf("!%s", n.X) }

// Not negates a boolean term.
func Not(x Term) Term {
	if x.Sort() != SortBool {
		panic(fmt.Sprintf("smt: not requires a boolean operand, got %s", x.Sort()))
	}
	if n, ok := x.(*NotTerm); ok {
		return n.X
	}
	return &NotTerm{X: x}
}

// Neg is integer negation, expressed as 0 - x.
func Neg(x Term) Term { return Sub(Int(0), x) }

// Ite is if-then-else over terms of equal sort.
type Ite struct {
	Cond Term
	Then Term
	Else Term
}

func (i *Ite) Sort() Sort { return i.Then.Sort() }
func (i *Ite) String() string {
	return fmt.Sprintf("ite(%s, %s, %s)", i.Cond, i.Then, i.Else)
}

// IfThenElse builds an ite term.
func IfThenElse(cond, then, els Term) Term {
	if cond.Sort() != SortBool {
		panic("smt: ite condition must be boolean")
	}
	if then.Sort() != els.Sort() {
		panic("smt: ite branches must have the same sort")
	}
	return &Ite{Cond: cond, Then: then, Else: els}
}

// SelectTerm reads an array at an index.
type SelectTerm struct {
	Array Term
	Index Term
}

func (s *SelectTerm) Sort() Sort     { return SortInt }
func (s *SelectTerm) String() string { return fmt.Sprintf("%s[%s]", s.Array, s.Index) }

// Select builds an array read term.
func Select(array, index Term) Term {
	if array.Sort() != SortArray || index.Sort() != SortInt {
		panic("smt: select requires (array, int)")
	}
	return &SelectTerm{Array: array, Index: index}
}

// StoreTerm is a functional array update: a new array equal to Array
// everywhere except Index, which maps to Value.
type StoreTerm struct {
	Array Term
	Index Term
	Value Term
}

func (s *StoreTerm) Sort() Sort { return SortArray }
func (s *StoreTerm) String() string {
	return fmt.Sprintf("store(%s, %s, %s)", s.Array, s.Index, s.Value)
}

// Store builds a functional array update term.
func Store(array, index, value Term) Term {
	if array.Sort() != SortArray || index.Sort() != SortInt || value.Sort() != SortInt {
		panic("smt: store requires (array, int, int)")
	}
	return &StoreTerm{Array: array, Index: index, Value: value}
}

// FreeVars returns all distinct variables occurring in the given terms,
// sorted by name so callers iterate deterministically.
func FreeVars(terms ...Term) []*Var {
	seen := make(map[string]*Var)
	var walk func(t Term)
	walk = func(t Term) {
		switch v := t.(type) {
		case *Var:
			seen[v.Name] = v
		case *Bin:
			walk(v.X)
			walk(v.Y)
		case *NotTerm:
			walk(v.X)
		case *Ite:
			walk(v.Cond)
			walk(v.Then)
			walk(v.Else)
		case *SelectTerm:
			walk(v.Array)
			walk(v.Index)
		case *StoreTerm:
			walk(v.Array)
			walk(v.Index)
			walk(v.Value)
		}
	}
	for _, t := range terms {
		walk(t)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]*Var, len(names))
	for i, name := range names {
		vars[i] = seen[name]
	}
	return vars
}
