package smt

import (
	"fmt"
	"strings"
)

// SMT-LIB 2 serialization. The emitted script is plain text fed to an
// external solver process over stdin; declarations are sorted by name so the
// script bytes are stable for a given problem.

// WriteScript returns an SMT-LIB 2 script asserting all given terms,
// ending in (check-sat). Every free variable is declared as a constant.
func WriteScript(assertions []Term) string {
	var b strings.Builder
	b.WriteString("(set-logic ALL)\n")

	for _, v := range FreeVars(assertions...) {
		fmt.Fprintf(&b, "(declare-const %s %s)\n", v.Name, sortSMT(v.VarSort))
	}
	for _, a := range assertions {
		fmt.Fprintf(&b, "(assert %s)\n", TermSMT(a))
	}
	b.WriteString("(check-sat)\n")
	return b.String()
}

// ScalarVars returns the integer and boolean free variables of the given
// terms, sorted by name. These are the constants whose model values fully
// determine a counterexample (array reads are bound to scalar read
// variables by the encoder).
func ScalarVars(terms ...Term) []*Var {
	var scalars []*Var
	for _, v := range FreeVars(terms...) {
		if v.VarSort == SortInt || v.VarSort == SortBool {
			scalars = append(scalars, v)
		}
	}
	return scalars
}

func sortSMT(s Sort) string {
	switch s {
	case SortInt:
		return "Int"
	case SortBool:
		return "Bool"
	case SortArray:
		return "(Array Int Int)"
	default:
		panic(fmt.Sprintf("smt: no SMT-LIB sort for %d", int(s)))
	}
}

// TermSMT renders a term as an SMT-LIB 2 s-expression.
func TermSMT(t Term) string {
	switch v := t.(type) {
	case *Var:
		return v.Name
	case *IntLit:
		if v.Value < 0 {
			return fmt.Sprintf("(- %d)", -v.Value)
		}
		return fmt.Sprintf("%d", v.Value)
	case *BoolLit:
		if v.Value {
			return "true"
		}
		return "false"
	case *Bin:
		return binSMT(v)
	case *NotTerm:
		return fmt.Sprintf("(not %s)", TermSMT(v.X))
	case *Ite:
		return fmt.Sprintf("(ite %s %s %s)", TermSMT(v.Cond), TermSMT(v.Then), TermSMT(v.Else))
	case *SelectTerm:
		return fmt.Sprintf("(select %s %s)", TermSMT(v.Array), TermSMT(v.Index))
	case *StoreTerm:
		return fmt.Sprintf("(store %s %s %s)", TermSMT(v.Array), TermSMT(v.Index), TermSMT(v.Value))
	default:
		panic(fmt.Sprintf("smt: cannot serialize %T", t))
	}
}

func binSMT(b *Bin) string {
	x, y := TermSMT(b.X), TermSMT(b.Y)
	switch b.Op {
	case OpAdd:
		return fmt.Sprintf("(+ %s %s)", x, y)
	case OpSub:
		return fmt.Sprintf("(- %s %s)", x, y)
	case OpMul:
		return fmt.Sprintf("(* %s %s)", x, y)
	case OpDiv:
		return fmt.Sprintf("(div %s %s)", x, y)
	case OpMod:
		return fmt.Sprintf("(mod %s %s)", x, y)
	case OpEq:
		return fmt.Sprintf("(= %s %s)", x, y)
	case OpNe:
		return fmt.Sprintf("(not (= %s %s))", x, y)
	case OpLt:
		return fmt.Sprintf("(< %s %s)", x, y)
	case OpLe:
		return fmt.Sprintf("(<= %s %s)", x, y)
	case OpGt:
		return fmt.Sprintf("(> %s %s)", x, y)
	case OpGe:
		return fmt.Sprintf("(>= %s %s)", x, y)
	case OpAnd:
		return fmt.Sprintf("(and %s %s)", x, y)
	case OpOr:
		return fmt.Sprintf("(or %s %s)", x, y)
	case OpImplies:
		return fmt.Sprintf("(=> %s %s)", x, y)
	default:
		panic(fmt.Sprintf("smt: no SMT-LIB form for operator %s", b.Op))
	}
}
