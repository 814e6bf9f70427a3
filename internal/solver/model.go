package solver

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kimroniny/solidity/internal/smt"
)

// Model parsing for the solver's (get-value ...) answer, a flat s-expression
// of name/value pairs such as
//
//	((x 0)
//	 (rd@0 3)
//	 (b (- 2)))
//
// The parser is tolerant: pairs whose value is not a scalar literal (array
// lambdas, uninterpreted functions) are skipped, never fatal.

// ParseValues parses a (get-value ...) answer into a model.
func ParseValues(s string) (Model, error) {
	toks := tokenize(s)
	p := &parser{toks: toks}

	if !p.eat("(") {
		return nil, fmt.Errorf("solver: model does not start with '(': %q", s)
	}

	model := make(Model)
	for !p.eat(")") {
		name, val, ok, err := p.pair()
		if err != nil {
			return nil, err
		}
		if ok {
			model[name] = val
		}
	}
	return model, nil
}

// ParseLiteral parses a single scalar literal as solvers print them:
// "3", "(- 2)", "true", "false".
func ParseLiteral(s string) (Value, bool) {
	p := &parser{toks: tokenize(s)}
	v, ok := p.value()
	if !ok || p.pos != len(p.toks) {
		return Value{}, false
	}
	return v, true
}

func tokenize(s string) []string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch r {
		case '(', ')':
			flush()
			toks = append(toks, string(r))
		case ' ', '\t', '\n', '\r':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) eat(tok string) bool {
	if p.peek() == tok {
		p.pos++
		return true
	}
	return false
}

// pair parses one (name value) entry. ok is false when the value is not a
// scalar literal; the entry is then consumed and dropped.
func (p *parser) pair() (string, Value, bool, error) {
	if !p.eat("(") {
		return "", Value{}, false, fmt.Errorf("solver: malformed model near %q", p.peek())
	}
	name := p.peek()
	if name == "" || name == "(" || name == ")" {
		return "", Value{}, false, fmt.Errorf("solver: malformed model entry near %q", name)
	}
	p.pos++

	val, ok := p.value()
	if !ok {
		p.skipBalanced()
	}
	if !p.eat(")") {
		return "", Value{}, false, fmt.Errorf("solver: unterminated model entry for %q", name)
	}
	return name, val, ok, nil
}

// value parses a scalar literal: an integer, a boolean, or (- N).
func (p *parser) value() (Value, bool) {
	tok := p.peek()
	switch tok {
	case "":
		return Value{}, false
	case "true":
		p.pos++
		return BoolValue(true), true
	case "false":
		p.pos++
		return BoolValue(false), true
	case "(":
		if p.pos+3 < len(p.toks) && p.toks[p.pos+1] == "-" && p.toks[p.pos+3] == ")" {
			if n, err := strconv.ParseInt(p.toks[p.pos+2], 10, 64); err == nil {
				p.pos += 4
				return IntValue(-n), true
			}
		}
		return Value{}, false
	case ")":
		return Value{}, false
	default:
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			p.pos++
			return IntValue(n), true
		}
		return Value{}, false
	}
}

// skipBalanced consumes one value-shaped region: either a single atom or a
// balanced parenthesized expression.
func (p *parser) skipBalanced() {
	if p.peek() != "(" {
		if p.peek() != ")" && p.peek() != "" {
			p.pos++
		}
		return
	}
	depth := 0
	for p.pos < len(p.toks) {
		switch p.toks[p.pos] {
		case "(":
			depth++
		case ")":
			depth--
		}
		p.pos++
		if depth == 0 {
			return
		}
	}
}

// Lookup resolves a variable's value, returning its zero value for the sort
// when the model has no entry. Solvers omit constants whose value is
// irrelevant to satisfiability; zero is the canonical representative.
func (m Model) Lookup(v *smt.Var) Value {
	if val, ok := m[v.Name]; ok {
		return val
	}
	if v.VarSort == smt.SortBool {
		return BoolValue(false)
	}
	return IntValue(0)
}
