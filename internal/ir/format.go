package ir

import (
	"strings"
)

// Format renders e as a single line of human-readable text, e.g.
//
//	<rx://operators/where>(<rx://observables/ticker>, (x) => (x > 5))
//
// The rendering is for logs, CLI output and diagnostics only; identity and
// equality never depend on it.
func Format(e Expr) string {
	var sb strings.Builder
	formatExpr(&sb, e)
	return sb.String()
}

func formatExpr(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Constant:
		sb.WriteString(formatValue(n.Value))
	case *FreeVariable:
		sb.WriteByte('<')
		sb.WriteString(n.Name)
		sb.WriteByte('>')
	case *Parameter:
		sb.WriteString(n.Name)
	case *Invoke:
		formatExpr(sb, n.Target)
		formatArgs(sb, n.Args)
	case *Call:
		if n.Object != nil {
			formatExpr(sb, n.Object)
		} else {
			sb.WriteString(n.Method.Declaring)
		}
		sb.WriteByte('.')
		sb.WriteString(n.Method.Name)
		formatArgs(sb, n.Args)
	case *Lambda:
		sb.WriteByte('(')
		for i, p := range n.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
		}
		sb.WriteString(") => ")
		formatExpr(sb, n.Body)
	case *New:
		sb.WriteString("new ")
		sb.WriteString(n.Constructor.Declaring)
		formatArgs(sb, n.Args)
	case *MemberAccess:
		if n.Object != nil {
			formatExpr(sb, n.Object)
		} else {
			sb.WriteString(n.Member.Declaring)
		}
		sb.WriteByte('.')
		sb.WriteString(n.Member.Name)
	case *BinaryExpr:
		sb.WriteByte('(')
		formatExpr(sb, n.Left)
		sb.WriteByte(' ')
		sb.WriteString(string(n.Op))
		sb.WriteByte(' ')
		formatExpr(sb, n.Right)
		sb.WriteByte(')')
	case *UnaryExpr:
		sb.WriteString(string(n.Op))
		formatExpr(sb, n.Operand)
	case *Default:
		sb.WriteString("default(")
		sb.WriteString(n.StaticType.String())
		sb.WriteByte(')')
	case *Capture:
		sb.WriteString("capture(")
		sb.WriteString(n.Name)
		sb.WriteByte(')')
	}
}

func formatArgs(sb *strings.Builder, args []Expr) {
	sb.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		formatExpr(sb, a)
	}
	sb.WriteByte(')')
}

// formatValue renders a constant as canonical JSON, falling back to a
// placeholder for values that cannot be encoded.
func formatValue(v Value) string {
	b, err := MarshalCanonical(OrNull(v))
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}
