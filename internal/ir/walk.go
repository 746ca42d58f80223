package ir

// Walk visits e depth-first in pre-order. If visit returns false the
// children of that node are skipped. Nil sub-expressions are not visited.
func Walk(e Expr, visit func(Expr) bool) {
	if e == nil || !visit(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, visit)
	}
}

// CheckCaptures runs the Check of every Capture in e, then of every
// Capture inside what that capture loads. It returns the first failure.
func CheckCaptures(e Expr) error {
	var err error
	Walk(e, func(x Expr) bool {
		c, ok := x.(*Capture)
		if !ok {
			return err == nil
		}
		if err != nil {
			return false
		}
		if c.Check != nil {
			if err = c.Check(); err != nil {
				return false
			}
		}
		if c.Load != nil {
			err = CheckCaptures(c.Load())
		}
		return false
	})
	return err
}

// Children returns the direct sub-expressions of e in canonical order.
// Lambda parameters are not children; the lambda body is.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *Invoke:
		return append([]Expr{n.Target}, n.Args...)
	case *Call:
		if n.Object == nil {
			return n.Args
		}
		return append([]Expr{n.Object}, n.Args...)
	case *Lambda:
		return []Expr{n.Body}
	case *New:
		return n.Args
	case *MemberAccess:
		if n.Object == nil {
			return nil
		}
		return []Expr{n.Object}
	case *BinaryExpr:
		return []Expr{n.Left, n.Right}
	case *UnaryExpr:
		return []Expr{n.Operand}
	default:
		return nil
	}
}

// FreeParameters returns the parameters referenced in e that are not bound
// by a lambda inside e, in first-occurrence order.
func FreeParameters(e Expr) []*Parameter {
	var out []*Parameter
	seen := make(map[*Parameter]bool)
	var walk func(Expr, map[*Parameter]bool)
	walk = func(x Expr, bound map[*Parameter]bool) {
		switch n := x.(type) {
		case nil:
			return
		case *Parameter:
			if !bound[n] && !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		case *Lambda:
			inner := make(map[*Parameter]bool, len(bound)+len(n.Params))
			for p := range bound {
				inner[p] = true
			}
			for _, p := range n.Params {
				inner[p] = true
			}
			walk(n.Body, inner)
		default:
			for _, c := range Children(x) {
				walk(c, bound)
			}
		}
	}
	walk(e, map[*Parameter]bool{})
	return out
}

// Substitute replaces parameters by expressions throughout e. Parameters
// are matched by identity, so substitution cannot capture a parameter of
// an inner lambda.
func Substitute(e Expr, with map[*Parameter]Expr) Expr {
	if len(with) == 0 {
		return e
	}
	return Rewrite(e, func(x Expr) Expr {
		if p, ok := x.(*Parameter); ok {
			if r, ok := with[p]; ok {
				return r
			}
		}
		return x
	})
}

// Rewrite rebuilds e bottom-up, applying f to every node after its
// children have been rewritten. Nodes whose children are unchanged are
// passed to f as-is.
func Rewrite(e Expr, f func(Expr) Expr) Expr {
	if e == nil {
		return nil
	}
	return f(RewriteChildren(e, func(c Expr) Expr { return Rewrite(c, f) }))
}

// RewriteChildren returns e with each child replaced by r(child). It
// allocates a new node only when some child changed.
func RewriteChildren(e Expr, r func(Expr) Expr) Expr {
	switch n := e.(type) {
	case *Invoke:
		t := r(n.Target)
		args, changed := rewriteList(n.Args, r)
		if t == n.Target && !changed {
			return n
		}
		return &Invoke{Target: t, Args: args, StaticType: n.StaticType}
	case *Call:
		var obj Expr
		if n.Object != nil {
			obj = r(n.Object)
		}
		args, changed := rewriteList(n.Args, r)
		if obj == n.Object && !changed {
			return n
		}
		return &Call{Method: n.Method, Object: obj, Args: args, StaticType: n.StaticType}
	case *Lambda:
		body := r(n.Body)
		if body == n.Body {
			return n
		}
		return &Lambda{Params: n.Params, Body: body, StaticType: n.StaticType}
	case *New:
		args, changed := rewriteList(n.Args, r)
		if !changed {
			return n
		}
		return &New{Constructor: n.Constructor, Args: args, StaticType: n.StaticType}
	case *MemberAccess:
		if n.Object == nil {
			return n
		}
		obj := r(n.Object)
		if obj == n.Object {
			return n
		}
		return &MemberAccess{Object: obj, Member: n.Member, StaticType: n.StaticType}
	case *BinaryExpr:
		l, rr := r(n.Left), r(n.Right)
		if l == n.Left && rr == n.Right {
			return n
		}
		return &BinaryExpr{Op: n.Op, Left: l, Right: rr, StaticType: n.StaticType}
	case *UnaryExpr:
		x := r(n.Operand)
		if x == n.Operand {
			return n
		}
		return &UnaryExpr{Op: n.Op, Operand: x, StaticType: n.StaticType}
	default:
		return e
	}
}

func rewriteList(xs []Expr, r func(Expr) Expr) ([]Expr, bool) {
	var out []Expr
	for i, x := range xs {
		y := r(x)
		if y != x && out == nil {
			out = make([]Expr, len(xs))
			copy(out, xs[:i])
		}
		if out != nil {
			out[i] = y
		}
	}
	if out == nil {
		return xs, false
	}
	return out, true
}
