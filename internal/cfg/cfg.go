package cfg

import (
	"fmt"

	"github.com/kimroniny/solidity/internal/diag"
)

// Type is the type of a local variable. The verification front-end has
// already type-checked the function, so the instruction set only needs the
// sorts the checker can model.
type Type int

const (
	TypeInt Type = iota
	TypeBool
	TypeIntArray
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeIntArray:
		return "int[]"
	default:
		return fmt.Sprintf("<?type:%d>", int(t))
	}
}

// Local represents a local variable or parameter.
type Local struct {
	ID   int
	Name string
	Type Type
}

// Function represents a contract function with a control-flow graph.
// The graph is immutable once built.
type Function struct {
	Name   string
	Params []Local
	Locals []Local
	Blocks []*BasicBlock
	Entry  *BasicBlock
	Span   diag.Span
}

// BasicBlock represents a basic block in the CFG.
type BasicBlock struct {
	Label      string
	Statements []Statement
	Terminator Terminator
}

// Point identifies a location in the CFG: a statement within a block, or the
// block's terminator when Index equals len(Statements). Immutable once the
// graph is built.
type Point struct {
	Block string
	Index int
}

func (p Point) String() string {
	return fmt.Sprintf("%s:%d", p.Block, p.Index)
}

// Statement represents a non-terminating operation.
type Statement interface {
	stmtNode()
	StmtSpan() diag.Span
}

// Terminator represents control flow (branch, goto, return).
type Terminator interface {
	terminatorNode()
}

// Operand represents a value used in an operation.
type Operand interface {
	operandNode()
}

// Rvalue represents a right-hand-side value. Operands are rvalues; so are
// single-level binary and unary expressions (the front-end has already
// flattened anything deeper into temporaries).
type Rvalue interface {
	rvalueNode()
}

// LocalRef represents a reference to a local variable.
type LocalRef struct {
	Local Local
}

func (*LocalRef) operandNode() {}
func (*LocalRef) rvalueNode()  {}

// Literal represents a constant value (int64 or bool).
type Literal struct {
	Value interface{}
}

func (*Literal) operandNode() {}
func (*Literal) rvalueNode()  {}

// Ref returns an operand referencing the given local.
func Ref(l Local) *LocalRef { return &LocalRef{Local: l} }

// IntLit returns an integer literal operand.
func IntLit(v int64) *Literal { return &Literal{Value: v} }

// BoolLit returns a boolean literal operand.
func BoolLit(v bool) *Literal { return &Literal{Value: v} }

// BinOp is a binary operator in a flattened expression.
type BinOp string

const (
	OpAdd BinOp = "+"
	OpSub BinOp = "-"
	OpMul BinOp = "*"
	OpDiv BinOp = "/"
	OpMod BinOp = "%"
	OpEq  BinOp = "=="
	OpNe  BinOp = "!="
	OpLt  BinOp = "<"
	OpLe  BinOp = "<="
	OpGt  BinOp = ">"
	OpGe  BinOp = ">="
	OpAnd BinOp = "&&"
	OpOr  BinOp = "||"
)

// BinaryExpr is a single-level binary expression over operands.
type BinaryExpr struct {
	Op BinOp
	X  Operand
	Y  Operand
}

func (*BinaryExpr) rvalueNode() {}

// UnaryExpr is a single-level unary expression: "-" or "!".
type UnaryExpr struct {
	Op string
	X  Operand
}

func (*UnaryExpr) rvalueNode() {}

// Assign statement: local = rvalue.
type Assign struct {
	Local Local
	RHS   Rvalue
	Span  diag.Span
}

func (*Assign) stmtNode()              {}
func (a *Assign) StmtSpan() diag.Span { return a.Span }

// LoadIndex loads an array element: result = array[index].
type LoadIndex struct {
	Result Local
	Array  Local
	Index  Operand
	Span   diag.Span
}

func (*LoadIndex) stmtNode()              {}
func (l *LoadIndex) StmtSpan() diag.Span { return l.Span }

// StoreIndex stores into an array element: array[index] = value.
type StoreIndex struct {
	Array Local
	Index Operand
	Value Operand
	Span  diag.Span
}

func (*StoreIndex) stmtNode()              {}
func (s *StoreIndex) StmtSpan() diag.Span { return s.Span }

// IncIndex is a compound increment or decrement of an array element:
// array[index]++ / ++array[index] (Delta +1) or the corresponding decrements
// (Delta -1). Result, when non-nil, receives the pre-value (post-fix form) or
// the post-value (pre-fix form, Pre true).
type IncIndex struct {
	Result *Local
	Array  Local
	Index  Operand
	Delta  int64
	Pre    bool
	Span   diag.Span
}

func (*IncIndex) stmtNode()              {}
func (i *IncIndex) StmtSpan() diag.Span { return i.Span }

// Assert is a safety assertion the checker must prove or refute.
type Assert struct {
	Cond Rvalue
	Span diag.Span
}

func (*Assert) stmtNode()              {}
func (a *Assert) StmtSpan() diag.Span { return a.Span }

// Return terminator. Value is nil for void returns.
type Return struct {
	Value Operand
}

func (*Return) terminatorNode() {}

// Goto terminator (unconditional jump).
type Goto struct {
	Target *BasicBlock
}

func (*Goto) terminatorNode() {}

// Branch terminator (conditional jump).
type Branch struct {
	Condition Rvalue
	True      *BasicBlock
	False     *BasicBlock
}

func (*Branch) terminatorNode() {}

// Successors returns the successor blocks of a terminator in deterministic
// order (true edge before false edge).
func Successors(t Terminator) []*BasicBlock {
	switch term := t.(type) {
	case *Goto:
		return []*BasicBlock{term.Target}
	case *Branch:
		return []*BasicBlock{term.True, term.False}
	case *Return, nil:
		return nil
	default:
		return nil
	}
}

// LocalByName looks up a parameter or local by name.
func (f *Function) LocalByName(name string) (Local, bool) {
	for _, p := range f.Params {
		if p.Name == name {
			return p, true
		}
	}
	for _, l := range f.Locals {
		if l.Name == name {
			return l, true
		}
	}
	return Local{}, false
}

// BlockByLabel looks up a block by label.
func (f *Function) BlockByLabel(label string) (*BasicBlock, bool) {
	for _, b := range f.Blocks {
		if b.Label == label {
			return b, true
		}
	}
	return nil, false
}
