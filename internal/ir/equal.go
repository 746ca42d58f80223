package ir

import (
	"fmt"
	"strconv"
)

// Equal reports whether a and b are structurally equal.
//
// Node tags, static types and children must match recursively. Free
// variables compare by (name, type). Lambda parameters compare by binding
// position, so two lambdas that differ only in parameter names or in
// parameter identity are equal. Parameters not bound by a lambda in the
// compared trees compare by (name, type).
func Equal(a, b Expr) bool {
	return Diff(a, b) == ""
}

// Diff returns a description of the first point where a and b diverge, or
// the empty string when they are structurally equal. The description starts
// with a path such as "$.args[1].body.left".
func Diff(a, b Expr) string {
	c := &comparer{left: map[*Parameter]int{}, right: map[*Parameter]int{}}
	return c.diff("$", a, b)
}

type comparer struct {
	left, right map[*Parameter]int
	next        int
}

func (c *comparer) diff(path string, a, b Expr) string {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return ""
		}
		return fmt.Sprintf("%s: %s vs %s", path, nodeTag(a), nodeTag(b))
	}
	if ta, tb := nodeTag(a), nodeTag(b); ta != tb {
		return fmt.Sprintf("%s: node %s vs %s", path, ta, tb)
	}
	if !a.Type().Equal(b.Type()) {
		return fmt.Sprintf("%s: type %s vs %s", path, a.Type(), b.Type())
	}

	switch x := a.(type) {
	case *Constant:
		y := b.(*Constant)
		if !ValueEqual(x.Value, y.Value) {
			return fmt.Sprintf("%s: constant %s vs %s", path, formatValue(x.Value), formatValue(y.Value))
		}
	case *FreeVariable:
		y := b.(*FreeVariable)
		if x.Name != y.Name {
			return fmt.Sprintf("%s: free variable %q vs %q", path, x.Name, y.Name)
		}
	case *Parameter:
		return c.diffParam(path, x, b.(*Parameter))
	case *Capture:
		y := b.(*Capture)
		if x.Name != y.Name {
			return fmt.Sprintf("%s: capture %q vs %q", path, x.Name, y.Name)
		}
	case *Default:
	case *Invoke:
		y := b.(*Invoke)
		if d := c.diff(path+".target", x.Target, y.Target); d != "" {
			return d
		}
		return c.diffList(path+".args", x.Args, y.Args)
	case *Call:
		y := b.(*Call)
		if !x.Method.Equal(y.Method) {
			return fmt.Sprintf("%s: method %s vs %s", path, x.Method, y.Method)
		}
		if d := c.diff(path+".object", x.Object, y.Object); d != "" {
			return d
		}
		return c.diffList(path+".args", x.Args, y.Args)
	case *New:
		y := b.(*New)
		if !x.Constructor.Equal(y.Constructor) {
			return fmt.Sprintf("%s: constructor %s vs %s", path, x.Constructor, y.Constructor)
		}
		return c.diffList(path+".args", x.Args, y.Args)
	case *MemberAccess:
		y := b.(*MemberAccess)
		if !x.Member.Equal(y.Member) {
			return fmt.Sprintf("%s: member %s vs %s", path, x.Member, y.Member)
		}
		return c.diff(path+".object", x.Object, y.Object)
	case *BinaryExpr:
		y := b.(*BinaryExpr)
		if x.Op != y.Op {
			return fmt.Sprintf("%s: operator %s vs %s", path, x.Op, y.Op)
		}
		if d := c.diff(path+".left", x.Left, y.Left); d != "" {
			return d
		}
		return c.diff(path+".right", x.Right, y.Right)
	case *UnaryExpr:
		y := b.(*UnaryExpr)
		if x.Op != y.Op {
			return fmt.Sprintf("%s: operator %s vs %s", path, x.Op, y.Op)
		}
		return c.diff(path+".operand", x.Operand, y.Operand)
	case *Lambda:
		return c.diffLambda(path, x, b.(*Lambda))
	default:
		return fmt.Sprintf("%s: unsupported node %T", path, a)
	}
	return ""
}

func (c *comparer) diffList(path string, a, b []Expr) string {
	if len(a) != len(b) {
		return fmt.Sprintf("%s: %d vs %d element(s)", path, len(a), len(b))
	}
	for i := range a {
		if d := c.diff(path+"["+strconv.Itoa(i)+"]", a[i], b[i]); d != "" {
			return d
		}
	}
	return ""
}

func (c *comparer) diffLambda(path string, a, b *Lambda) string {
	if len(a.Params) != len(b.Params) {
		return fmt.Sprintf("%s: lambda arity %d vs %d", path, len(a.Params), len(b.Params))
	}
	for i := range a.Params {
		if !a.Params[i].StaticType.Equal(b.Params[i].StaticType) {
			return fmt.Sprintf("%s.params[%d]: type %s vs %s", path, i, a.Params[i].StaticType, b.Params[i].StaticType)
		}
	}

	// Bind both parameter lists to the same fresh ids, restoring any outer
	// binding of the same parameter afterwards.
	type saved struct {
		p     *Parameter
		id    int
		bound bool
	}
	var restore []saved
	bind := func(m map[*Parameter]int, p *Parameter, id int) {
		old, ok := m[p]
		restore = append(restore, saved{p, old, ok})
		m[p] = id
	}
	for i := range a.Params {
		id := c.next
		c.next++
		bind(c.left, a.Params[i], id)
		bind(c.right, b.Params[i], id)
	}

	d := c.diff(path+".body", a.Body, b.Body)

	for i := len(restore) - 1; i >= 0; i-- {
		s := restore[i]
		m := c.left
		if i%2 == 1 {
			m = c.right
		}
		if s.bound {
			m[s.p] = s.id
		} else {
			delete(m, s.p)
		}
	}
	return d
}

func (c *comparer) diffParam(path string, a, b *Parameter) string {
	ia, boundA := c.left[a]
	ib, boundB := c.right[b]
	switch {
	case boundA && boundB:
		if ia != ib {
			return fmt.Sprintf("%s: parameter %s bound at a different position than %s", path, a.Name, b.Name)
		}
	case boundA != boundB:
		return fmt.Sprintf("%s: parameter %s and %s differ in binding", path, a.Name, b.Name)
	default:
		if a.Name != b.Name {
			return fmt.Sprintf("%s: unbound parameter %q vs %q", path, a.Name, b.Name)
		}
	}
	return ""
}

// nodeTag names the node variant for diagnostics and encoding.
func nodeTag(e Expr) string {
	switch e.(type) {
	case nil:
		return "<nil>"
	case *Constant:
		return "constant"
	case *FreeVariable:
		return "free"
	case *Parameter:
		return "parameter"
	case *Invoke:
		return "invoke"
	case *Call:
		return "call"
	case *Lambda:
		return "lambda"
	case *New:
		return "new"
	case *MemberAccess:
		return "member"
	case *BinaryExpr:
		return "binary"
	case *UnaryExpr:
		return "unary"
	case *Default:
		return "default"
	case *Capture:
		return "capture"
	default:
		return fmt.Sprintf("%T", e)
	}
}
