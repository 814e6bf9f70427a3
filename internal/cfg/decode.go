package cfg

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kimroniny/solidity/internal/diag"
)

// The YAML fixture format lets the checker be driven without the compiler
// front-end: a function is written down as its already-lowered CFG. This is
// the same shape the front-end hands over in-process.

type yamlSpan struct {
	File   string `yaml:"file"`
	Line   int    `yaml:"line"`
	Column int    `yaml:"column"`
	Start  int    `yaml:"start"`
	End    int    `yaml:"end"`
}

func (s yamlSpan) span() diag.Span {
	return diag.Span{Filename: s.File, Line: s.Line, Column: s.Column, Start: s.Start, End: s.End}
}

type yamlVar struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type yamlBlock struct {
	Label string      `yaml:"label"`
	Stmts []yaml.Node `yaml:"stmts"`
	Term  yaml.Node   `yaml:"term"`
}

type yamlFunction struct {
	Function string      `yaml:"function"`
	Span     yamlSpan    `yaml:"span"`
	Params   []yamlVar   `yaml:"params"`
	Locals   []yamlVar   `yaml:"locals"`
	Blocks   []yamlBlock `yaml:"blocks"`
}

type yamlStmt struct {
	Op     string    `yaml:"op"`
	Dst    string    `yaml:"dst"`
	RHS    yaml.Node `yaml:"rhs"`
	Result string    `yaml:"result"`
	Array  string    `yaml:"array"`
	Index  yaml.Node `yaml:"index"`
	Value  yaml.Node `yaml:"value"`
	Delta  int64     `yaml:"delta"`
	Pre    bool      `yaml:"pre"`
	Cond   yaml.Node `yaml:"cond"`
	Span   yamlSpan  `yaml:"span"`
}

type yamlTerm struct {
	Op    string    `yaml:"op"`
	Value yaml.Node `yaml:"value"`
	Cond  yaml.Node `yaml:"cond"`
	Goto  string    `yaml:"goto"`
	True  string    `yaml:"true"`
	False string    `yaml:"false"`
}

type yamlExpr struct {
	Op string    `yaml:"op"`
	X  yaml.Node `yaml:"x"`
	Y  yaml.Node `yaml:"y"`
}

// DecodeFunction parses a YAML-encoded function CFG.
func DecodeFunction(data []byte) (*Function, error) {
	var yf yamlFunction
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return nil, fmt.Errorf("decoding function: %w", err)
	}
	if yf.Function == "" {
		return nil, fmt.Errorf("decoding function: missing function name")
	}
	if len(yf.Blocks) == 0 {
		return nil, fmt.Errorf("decoding function %q: no blocks", yf.Function)
	}

	fn := &Function{Name: yf.Function, Span: yf.Span.span()}

	id := 0
	for _, v := range yf.Params {
		t, err := parseType(v.Type)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", v.Name, err)
		}
		fn.Params = append(fn.Params, Local{ID: id, Name: v.Name, Type: t})
		id++
	}
	for _, v := range yf.Locals {
		t, err := parseType(v.Type)
		if err != nil {
			return nil, fmt.Errorf("local %q: %w", v.Name, err)
		}
		fn.Locals = append(fn.Locals, Local{ID: id, Name: v.Name, Type: t})
		id++
	}

	// First pass: create blocks so forward references resolve.
	byLabel := make(map[string]*BasicBlock, len(yf.Blocks))
	for _, yb := range yf.Blocks {
		if yb.Label == "" {
			return nil, fmt.Errorf("function %q: block with empty label", yf.Function)
		}
		if _, dup := byLabel[yb.Label]; dup {
			return nil, fmt.Errorf("function %q: duplicate block label %q", yf.Function, yb.Label)
		}
		b := &BasicBlock{Label: yb.Label}
		byLabel[yb.Label] = b
		fn.Blocks = append(fn.Blocks, b)
	}
	fn.Entry = fn.Blocks[0]

	d := &decoder{fn: fn, byLabel: byLabel}
	for i, yb := range yf.Blocks {
		b := fn.Blocks[i]
		for j := range yb.Stmts {
			stmt, err := d.statement(&yb.Stmts[j])
			if err != nil {
				return nil, fmt.Errorf("block %q, statement %d: %w", yb.Label, j, err)
			}
			b.Statements = append(b.Statements, stmt)
		}
		term, err := d.terminator(&yb.Term)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", yb.Label, err)
		}
		b.Terminator = term
	}

	return fn, nil
}

func parseType(s string) (Type, error) {
	switch s {
	case "int", "":
		return TypeInt, nil
	case "bool":
		return TypeBool, nil
	case "int[]":
		return TypeIntArray, nil
	default:
		return 0, fmt.Errorf("unknown type %q", s)
	}
}

type decoder struct {
	fn      *Function
	byLabel map[string]*BasicBlock
}

func (d *decoder) statement(n *yaml.Node) (Statement, error) {
	var ys yamlStmt
	if err := n.Decode(&ys); err != nil {
		return nil, err
	}
	span := ys.Span.span()

	switch ys.Op {
	case "assign":
		dst, err := d.local(ys.Dst)
		if err != nil {
			return nil, err
		}
		rhs, err := d.rvalue(&ys.RHS)
		if err != nil {
			return nil, err
		}
		return &Assign{Local: dst, RHS: rhs, Span: span}, nil

	case "loadindex":
		res, err := d.local(ys.Result)
		if err != nil {
			return nil, err
		}
		arr, err := d.array(ys.Array)
		if err != nil {
			return nil, err
		}
		idx, err := d.operand(&ys.Index)
		if err != nil {
			return nil, err
		}
		return &LoadIndex{Result: res, Array: arr, Index: idx, Span: span}, nil

	case "storeindex":
		arr, err := d.array(ys.Array)
		if err != nil {
			return nil, err
		}
		idx, err := d.operand(&ys.Index)
		if err != nil {
			return nil, err
		}
		val, err := d.operand(&ys.Value)
		if err != nil {
			return nil, err
		}
		return &StoreIndex{Array: arr, Index: idx, Value: val, Span: span}, nil

	case "incindex":
		arr, err := d.array(ys.Array)
		if err != nil {
			return nil, err
		}
		idx, err := d.operand(&ys.Index)
		if err != nil {
			return nil, err
		}
		delta := ys.Delta
		if delta == 0 {
			delta = 1
		}
		stmt := &IncIndex{Array: arr, Index: idx, Delta: delta, Pre: ys.Pre, Span: span}
		if ys.Result != "" {
			res, err := d.local(ys.Result)
			if err != nil {
				return nil, err
			}
			stmt.Result = &res
		}
		return stmt, nil

	case "assert":
		cond, err := d.rvalue(&ys.Cond)
		if err != nil {
			return nil, err
		}
		return &Assert{Cond: cond, Span: span}, nil

	default:
		return nil, fmt.Errorf("unknown statement op %q", ys.Op)
	}
}

func (d *decoder) terminator(n *yaml.Node) (Terminator, error) {
	if n.Kind == 0 {
		return &Return{}, nil
	}
	var yt yamlTerm
	if err := n.Decode(&yt); err != nil {
		return nil, err
	}

	switch yt.Op {
	case "return", "":
		t := &Return{}
		if yt.Value.Kind != 0 {
			v, err := d.operand(&yt.Value)
			if err != nil {
				return nil, err
			}
			t.Value = v
		}
		return t, nil

	case "goto":
		target, ok := d.byLabel[yt.Goto]
		if !ok {
			return nil, fmt.Errorf("goto to unknown block %q", yt.Goto)
		}
		return &Goto{Target: target}, nil

	case "branch":
		cond, err := d.rvalue(&yt.Cond)
		if err != nil {
			return nil, err
		}
		tb, ok := d.byLabel[yt.True]
		if !ok {
			return nil, fmt.Errorf("branch to unknown block %q", yt.True)
		}
		fb, ok := d.byLabel[yt.False]
		if !ok {
			return nil, fmt.Errorf("branch to unknown block %q", yt.False)
		}
		return &Branch{Condition: cond, True: tb, False: fb}, nil

	default:
		return nil, fmt.Errorf("unknown terminator op %q", yt.Op)
	}
}

// operand decodes a scalar node: integers and booleans become literals,
// anything else is a local reference.
func (d *decoder) operand(n *yaml.Node) (Operand, error) {
	if n == nil || n.Kind == 0 {
		return nil, fmt.Errorf("missing operand")
	}
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("operand must be a scalar, got %v", n.Kind)
	}
	switch n.Tag {
	case "!!int":
		v, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad integer literal %q: %w", n.Value, err)
		}
		return IntLit(v), nil
	case "!!bool":
		return BoolLit(n.Value == "true"), nil
	default:
		l, err := d.local(n.Value)
		if err != nil {
			return nil, err
		}
		return Ref(l), nil
	}
}

// rvalue decodes either a scalar operand or a mapping {op, x, y}.
func (d *decoder) rvalue(n *yaml.Node) (Rvalue, error) {
	if n == nil || n.Kind == 0 {
		return nil, fmt.Errorf("missing expression")
	}
	if n.Kind == yaml.ScalarNode {
		op, err := d.operand(n)
		if err != nil {
			return nil, err
		}
		return op.(Rvalue), nil
	}

	var ye yamlExpr
	if err := n.Decode(&ye); err != nil {
		return nil, err
	}
	x, err := d.operand(&ye.X)
	if err != nil {
		return nil, err
	}
	if ye.Op == "!" || ye.Op == "neg" {
		if ye.Op == "neg" {
			ye.Op = "-"
		}
		return &UnaryExpr{Op: ye.Op, X: x}, nil
	}
	y, err := d.operand(&ye.Y)
	if err != nil {
		return nil, err
	}
	switch BinOp(ye.Op) {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
		return &BinaryExpr{Op: BinOp(ye.Op), X: x, Y: y}, nil
	default:
		return nil, fmt.Errorf("unknown operator %q", ye.Op)
	}
}

func (d *decoder) local(name string) (Local, error) {
	if name == "" {
		return Local{}, fmt.Errorf("missing variable name")
	}
	l, ok := d.fn.LocalByName(name)
	if !ok {
		return Local{}, fmt.Errorf("undeclared variable %q", name)
	}
	return l, nil
}

func (d *decoder) array(name string) (Local, error) {
	l, err := d.local(name)
	if err != nil {
		return Local{}, err
	}
	if l.Type != TypeIntArray {
		return Local{}, fmt.Errorf("%q is not an array", name)
	}
	return l, nil
}
