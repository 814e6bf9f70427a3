// Package cex turns a satisfying solver model into a concrete execution
// trace and renders it as the counterexample block of a diagnostic.
package cex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kimroniny/solidity/internal/cfg"
	"github.com/kimroniny/solidity/internal/smt"
)

// Value is a concrete value in a trace: a scalar or a sparse array. Arrays
// display only the indices the execution actually touched; the domain is
// unbounded and never enumerated.
type Value struct {
	Sort  smt.Sort
	Int   int64
	Bool  bool
	Elems []Elem
}

// Elem is one populated index of a sparse array value.
type Elem struct {
	Index int64
	Value int64
}

// IntVal returns a concrete integer.
func IntVal(v int64) Value { return Value{Sort: smt.SortInt, Int: v} }

// BoolVal returns a concrete boolean.
func BoolVal(v bool) Value { return Value{Sort: smt.SortBool, Bool: v} }

// ArrayVal returns a sparse array value. The elements are sorted by index.
func ArrayVal(elems map[int64]int64) Value {
	out := make([]Elem, 0, len(elems))
	for i, v := range elems {
		out = append(out, Elem{Index: i, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return Value{Sort: smt.SortArray, Elems: out}
}

func (v Value) String() string {
	switch v.Sort {
	case smt.SortBool:
		return fmt.Sprintf("%t", v.Bool)
	case smt.SortArray:
		if len(v.Elems) == 0 {
			return "[]"
		}
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = fmt.Sprintf("%d -> %d", e.Index, e.Value)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%d", v.Int)
	}
}

// Arg is one concrete argument of the traced call, in parameter order.
type Arg struct {
	Name  string
	Value Value
}

// Step is one state-changing statement on the violating path, with the
// concrete state after it.
type Step struct {
	Point cfg.Point
	Desc  string
	State map[string]Value
}

// Trace is a concrete execution witness: entry values plus the chronological
// state evolution up to the violated assertion. Built once per refuted
// verification condition and discarded after rendering.
type Trace struct {
	Function string
	Args     []Arg
	Entry    map[string]Value
	Steps    []Step
}
