// Package state implements the symbolic program state: a mapping from
// variable identifiers to symbolic terms. States are immutable; every write
// returns a new state, so path-sensitive reasoning in the encoder cannot be
// corrupted by aliasing between branches.
package state

import (
	"fmt"
	"sort"

	"github.com/kimroniny/solidity/internal/smt"
)

// State is an immutable symbolic environment. Scalars map to integer or
// boolean terms; an array maps to an array-valued term (a variable or a
// store chain) plus a symbolic length. The length is an ordinary integer
// term with no implied relation to any index: the model does not assume
// in-bounds access, it only makes the bound available to policy layers.
type State struct {
	env  map[string]smt.Term
	lens map[string]smt.Term
}

// New returns an empty state.
func New() *State {
	return &State{
		env:  make(map[string]smt.Term),
		lens: make(map[string]smt.Term),
	}
}

func (s *State) clone() *State {
	next := &State{
		env:  make(map[string]smt.Term, len(s.env)+1),
		lens: make(map[string]smt.Term, len(s.lens)),
	}
	for k, v := range s.env {
		next.env[k] = v
	}
	for k, v := range s.lens {
		next.lens[k] = v
	}
	return next
}

// Read returns the term bound to a variable.
func (s *State) Read(name string) (smt.Term, error) {
	t, ok := s.env[name]
	if !ok {
		return nil, fmt.Errorf("state: unbound variable %q", name)
	}
	return t, nil
}

// Write returns a new state with name bound to term. The receiver is not
// modified.
func (s *State) Write(name string, term smt.Term) *State {
	next := s.clone()
	next.env[name] = term
	return next
}

// ArrayRead returns the term for array[index]. The index is not assumed to
// be in bounds; an out-of-range read is simply an unconstrained point of the
// array function.
func (s *State) ArrayRead(name string, index smt.Term) (smt.Term, error) {
	arr, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	if arr.Sort() != smt.SortArray {
		return nil, fmt.Errorf("state: %q is not an array", name)
	}
	return smt.Select(arr, index), nil
}

// ArrayWrite returns a new state in which the array is a functional update
// of its previous version: equal everywhere except index, which maps to
// value. For all j, reading the new array at j yields
// ite(j == index, value, old[j]) by the select-of-store axiom.
func (s *State) ArrayWrite(name string, index, value smt.Term) (*State, error) {
	arr, err := s.Read(name)
	if err != nil {
		return nil, err
	}
	if arr.Sort() != smt.SortArray {
		return nil, fmt.Errorf("state: %q is not an array", name)
	}
	return s.Write(name, smt.Store(arr, index, value)), nil
}

// WriteLength returns a new state with the array's symbolic length bound.
func (s *State) WriteLength(name string, length smt.Term) *State {
	next := s.clone()
	next.lens[name] = length
	return next
}

// Length returns the array's symbolic length term.
func (s *State) Length(name string) (smt.Term, error) {
	t, ok := s.lens[name]
	if !ok {
		return nil, fmt.Errorf("state: no length for array %q", name)
	}
	return t, nil
}

// Names returns the bound variable names in sorted order.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.env))
	for name := range s.env {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Bindings returns a copy of the environment. Callers may keep the copy; it
// never aliases the state's internal map.
func (s *State) Bindings() map[string]smt.Term {
	out := make(map[string]smt.Term, len(s.env))
	for k, v := range s.env {
		out[k] = v
	}
	return out
}
