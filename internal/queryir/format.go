package queryir

import (
	"strings"

	"github.com/roach88/typewriter/internal/ir"
)

// Describe renders c for logs and CLI output, e.g.
// (age gt 15 AND NOT (name startsWith "a")). It is not a serialization.
func Describe(c Constraint) string {
	var sb strings.Builder
	describe(&sb, c)
	return sb.String()
}

func describe(sb *strings.Builder, c Constraint) {
	switch node := c.(type) {
	case nil:
		sb.WriteString("<all>")
	case *Leaf:
		sb.WriteString(node.field.Name)
		sb.WriteByte(' ')
		sb.WriteString(node.op.String())
		switch len(node.operands) {
		case 0:
		case 1:
			sb.WriteByte(' ')
			sb.WriteString(ir.Format(node.operands[0]))
		default:
			sb.WriteString(" [")
			for i, v := range node.operands {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(ir.Format(v))
			}
			sb.WriteByte(']')
		}
	case *Composite:
		if node.kind == CombineNot {
			sb.WriteString("NOT (")
			describe(sb, node.children[0])
			sb.WriteByte(')')
			return
		}
		sb.WriteByte('(')
		for i, child := range node.children {
			if i > 0 {
				sb.WriteByte(' ')
				sb.WriteString(node.kind.String())
				sb.WriteByte(' ')
			}
			describe(sb, child)
		}
		sb.WriteByte(')')
	case *invalidNode:
		sb.WriteString("<invalid: ")
		sb.WriteString(node.err.Error())
		sb.WriteByte('>')
	}
}
