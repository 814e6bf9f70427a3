package cfg

import (
	"fmt"
	"strings"
)

// PrettyPrint returns a human-readable string representation of a function.
func (f *Function) PrettyPrint() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("fn %s(", f.Name))
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
	}
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(") {\n")

	if len(f.Locals) > 0 {
		for _, local := range f.Locals {
			b.WriteString(fmt.Sprintf("  let %s: %s\n", localString(local), local.Type))
		}
		b.WriteString("\n")
	}

	for _, block := range f.Blocks {
		b.WriteString(block.PrettyPrint())
	}

	b.WriteString("}")
	return b.String()
}

// PrettyPrint returns a human-readable string representation of a basic block.
func (bb *BasicBlock) PrettyPrint() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s:\n", bb.Label))

	for _, stmt := range bb.Statements {
		b.WriteString("    ")
		b.WriteString(PrettyStmt(stmt))
		b.WriteString("\n")
	}

	if bb.Terminator != nil {
		b.WriteString("    ")
		b.WriteString(prettyTerminator(bb.Terminator))
		b.WriteString("\n")
	}

	return b.String()
}

// PrettyStmt renders a single statement.
func PrettyStmt(stmt Statement) string {
	switch s := stmt.(type) {
	case *Assign:
		return fmt.Sprintf("%s = %s", localString(s.Local), rvalueString(s.RHS))
	case *LoadIndex:
		return fmt.Sprintf("%s = %s[%s]", localString(s.Result), s.Array.Name, operandString(s.Index))
	case *StoreIndex:
		return fmt.Sprintf("%s[%s] = %s", s.Array.Name, operandString(s.Index), operandString(s.Value))
	case *IncIndex:
		op := "++"
		if s.Delta < 0 {
			op = "--"
		}
		elem := fmt.Sprintf("%s[%s]", s.Array.Name, operandString(s.Index))
		expr := elem + op
		if s.Pre {
			expr = op + elem
		}
		if s.Result != nil {
			return fmt.Sprintf("%s = %s", localString(*s.Result), expr)
		}
		return expr
	case *Assert:
		return fmt.Sprintf("assert(%s)", rvalueString(s.Cond))
	default:
		return fmt.Sprintf("<?stmt:%T>", stmt)
	}
}

func prettyTerminator(term Terminator) string {
	switch t := term.(type) {
	case *Return:
		if t.Value == nil {
			return "return"
		}
		return fmt.Sprintf("return %s", operandString(t.Value))
	case *Goto:
		return fmt.Sprintf("goto %s", t.Target.Label)
	case *Branch:
		return fmt.Sprintf("if %s goto %s else goto %s", rvalueString(t.Condition), t.True.Label, t.False.Label)
	default:
		return fmt.Sprintf("<?terminator:%T>", term)
	}
}

func localString(local Local) string {
	if local.Name == "" {
		return fmt.Sprintf("_%d", local.ID)
	}
	return local.Name
}

func literalString(lit *Literal) string {
	return fmt.Sprintf("%v", lit.Value)
}

func operandString(op Operand) string {
	switch o := op.(type) {
	case *LocalRef:
		return localString(o.Local)
	case *Literal:
		return literalString(o)
	default:
		return fmt.Sprintf("<?operand:%T>", op)
	}
}

func rvalueString(rv Rvalue) string {
	switch r := rv.(type) {
	case Operand:
		return operandString(r)
	case *BinaryExpr:
		return fmt.Sprintf("%s %s %s", operandString(r.X), r.Op, operandString(r.Y))
	case *UnaryExpr:
		return fmt.Sprintf("%s%s", r.Op, operandString(r.X))
	default:
		return fmt.Sprintf("<?rvalue:%T>", rv)
	}
}
