package cex

import (
	"fmt"
	"sort"
	"strings"
)

// Render formats a trace as the counterexample block below a diagnostic
// header. The output is byte-stable: variables sorted by name, array indices
// ascending, no dependence on map iteration order.
//
//	Counterexample:
//
//	a = 0
//	array = []
//	x = 0
//
//	Transaction trace:
//	f(0)
//	State: a = 0, array = [0 -> 2], x = 0
func Render(tr *Trace) string {
	var b strings.Builder
	b.WriteString("Counterexample:\n\n")

	for _, name := range sortedNames(tr.Entry) {
		fmt.Fprintf(&b, "%s = %s\n", name, tr.Entry[name])
	}

	b.WriteString("\nTransaction trace:\n")

	args := make([]string, len(tr.Args))
	for i, a := range tr.Args {
		args[i] = a.Value.String()
	}
	fmt.Fprintf(&b, "%s(%s)\n", tr.Function, strings.Join(args, ", "))

	for _, step := range tr.Steps {
		parts := make([]string, 0, len(step.State))
		for _, name := range sortedNames(step.State) {
			parts = append(parts, fmt.Sprintf("%s = %s", name, step.State[name]))
		}
		fmt.Fprintf(&b, "State: %s\n", strings.Join(parts, ", "))
	}

	return b.String()
}

func sortedNames(m map[string]Value) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
