package queryir

import (
	"fmt"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/metadata"
	"github.com/roach88/rxq/internal/operation"
)

// Plan lowers a normalized metadata query expression into a Query.
//
// Shapes outside the supported subset (see the package doc) return an
// UnsupportedExpressionError naming the offending node.
func Plan(e ir.Expr) (Query, error) {
	if e == nil {
		return nil, operation.Required("expression")
	}
	p := &planner{}
	return p.query(e)
}

type planner struct{}

func unsupported(e ir.Expr, format string, args ...any) error {
	return &operation.UnsupportedExpressionError{Expr: e, Reason: fmt.Sprintf(format, args...)}
}

func (p *planner) query(e ir.Expr) (Query, error) {
	call, ok := e.(*ir.Call)
	if !ok || call.Method.Declaring != ir.NameQueryable {
		return p.rows(e)
	}
	var fn AggFunc
	switch call.Method.Name {
	case metadata.MemberCount.Name:
		fn = AggCount
	case metadata.MemberAny.Name:
		fn = AggAny
	case metadata.MemberFirst.Name:
		fn = AggFirst
	default:
		return p.rows(e)
	}
	if len(call.Args) != 1 {
		return nil, unsupported(e, "%s takes one argument, got %d", call.Method.Name, len(call.Args))
	}
	src, err := p.rows(call.Args[0])
	if err != nil {
		return nil, err
	}
	return Aggregate{Func: fn, Source: src}, nil
}

// rows lowers an expression that yields a collection: a Select or a Join.
func (p *planner) rows(e ir.Expr) (Query, error) {
	switch n := e.(type) {
	case *ir.FreeVariable:
		from, ok := Collections[ir.URI(n.Name)]
		if !ok {
			return nil, unsupported(e, "%q is not a metadata root", n.Name)
		}
		return Select{From: from, Limit: NoLimit}, nil
	case *ir.Call:
		if n.Method.Declaring != ir.NameQueryable || n.Object != nil || len(n.Args) == 0 {
			return nil, unsupported(e, "not a query operator")
		}
		switch n.Method.Name {
		case metadata.MemberWhere.Name:
			return p.where(n)
		case metadata.MemberSelect.Name:
			return p.project(n)
		case metadata.MemberTake.Name:
			return p.take(n)
		case metadata.MemberJoin.Name:
			return p.join(n)
		}
		return nil, unsupported(e, "operator %s has no relational form", n.Method.Name)
	}
	return nil, unsupported(e, "not a collection")
}

func (p *planner) where(n *ir.Call) (Query, error) {
	if len(n.Args) != 2 {
		return nil, unsupported(n, "Where takes two arguments")
	}
	src, err := p.rows(n.Args[0])
	if err != nil {
		return nil, err
	}
	sel, ok := src.(Select)
	if !ok || sel.Project != "" || sel.Limit != NoLimit {
		return nil, unsupported(n, "Where must apply to an unprojected, unlimited collection")
	}
	lam, err := lambdaOf(n.Args[1], 1)
	if err != nil {
		return nil, err
	}
	pred, err := p.predicate(lam.Body, lam.Params[0])
	if err != nil {
		return nil, err
	}
	sel.Filter = conjoin(sel.Filter, pred)
	return sel, nil
}

func (p *planner) project(n *ir.Call) (Query, error) {
	if len(n.Args) != 2 {
		return nil, unsupported(n, "Select takes two arguments")
	}
	src, err := p.rows(n.Args[0])
	if err != nil {
		return nil, err
	}
	sel, ok := src.(Select)
	if !ok || sel.Project != "" {
		return nil, unsupported(n, "Select must apply to an unprojected collection")
	}
	lam, err := lambdaOf(n.Args[1], 1)
	if err != nil {
		return nil, err
	}
	if isParam(lam.Body, lam.Params[0]) {
		return sel, nil
	}
	field, err := fieldOf(lam.Body, lam.Params[0])
	if err != nil {
		return nil, err
	}
	sel.Project = field
	return sel, nil
}

func (p *planner) take(n *ir.Call) (Query, error) {
	if len(n.Args) != 2 {
		return nil, unsupported(n, "Take takes two arguments")
	}
	c, ok := n.Args[1].(*ir.Constant)
	if !ok {
		return nil, unsupported(n.Args[1], "Take count must be a constant")
	}
	count, ok := c.Value.(ir.Int)
	if !ok || count < 0 {
		return nil, unsupported(n.Args[1], "Take count must be a non-negative int")
	}
	src, err := p.rows(n.Args[0])
	if err != nil {
		return nil, err
	}
	switch q := src.(type) {
	case Select:
		q.Limit = minLimit(q.Limit, int64(count))
		return q, nil
	case Join:
		q.Limit = minLimit(q.Limit, int64(count))
		return q, nil
	}
	return nil, unsupported(n, "Take over %T", src)
}

func minLimit(current, n int64) int64 {
	if current == NoLimit || n < current {
		return n
	}
	return current
}

func (p *planner) join(n *ir.Call) (Query, error) {
	if len(n.Args) != 5 {
		return nil, unsupported(n, "Join takes five arguments")
	}
	var sides [2]Select
	for i := range sides {
		src, err := p.rows(n.Args[i])
		if err != nil {
			return nil, err
		}
		sel, ok := src.(Select)
		if !ok || sel.Project != "" || sel.Limit != NoLimit {
			return nil, unsupported(n.Args[i], "Join inputs must be filtered collections")
		}
		sides[i] = sel
	}

	var keys [2]string
	for i := range keys {
		lam, err := lambdaOf(n.Args[2+i], 1)
		if err != nil {
			return nil, err
		}
		if keys[i], err = fieldOf(lam.Body, lam.Params[0]); err != nil {
			return nil, err
		}
	}

	result, err := lambdaOf(n.Args[4], 2)
	if err != nil {
		return nil, err
	}
	j := Join{Left: sides[0], Right: sides[1], LeftKey: keys[0], RightKey: keys[1], Limit: NoLimit}
	switch {
	case isParam(result.Body, result.Params[0]):
		j.ProjectSide = Left
	case isParam(result.Body, result.Params[1]):
		j.ProjectSide = Right
	default:
		access, ok := result.Body.(*ir.MemberAccess)
		if !ok {
			return nil, unsupported(result.Body, "join result must be an element or one of its fields")
		}
		for side, param := range result.Params {
			if isParam(access.Object, param) {
				j.ProjectSide = Side(side)
				if j.Project, err = fieldOf(access, param); err != nil {
					return nil, err
				}
				return j, nil
			}
		}
		return nil, unsupported(result.Body, "join result must read a join element")
	}
	return j, nil
}

func lambdaOf(e ir.Expr, arity int) (*ir.Lambda, error) {
	lam, ok := e.(*ir.Lambda)
	if !ok {
		return nil, unsupported(e, "expected a lambda")
	}
	if len(lam.Params) != arity {
		return nil, unsupported(e, "expected %d parameter(s), got %d", arity, len(lam.Params))
	}
	return lam, nil
}

func isParam(e ir.Expr, p *ir.Parameter) bool {
	x, ok := e.(*ir.Parameter)
	return ok && x == p
}

// fieldOf accepts param.Field for a well-known field.
func fieldOf(e ir.Expr, p *ir.Parameter) (string, error) {
	access, ok := e.(*ir.MemberAccess)
	if !ok || !isParam(access.Object, p) {
		return "", unsupported(e, "expected a field of the element")
	}
	if _, known := Fields[access.Member.Name]; !known {
		return "", unsupported(e, "unknown field %q", access.Member.Name)
	}
	return access.Member.Name, nil
}

var compareOps = map[ir.BinaryOp]CompareOp{
	ir.OpEqual:     OpEq,
	ir.OpNotEqual:  OpNe,
	ir.OpLess:      OpLt,
	ir.OpLessEq:    OpLe,
	ir.OpGreater:   OpGt,
	ir.OpGreaterEq: OpGe,
}

// flipped mirrors an operator for "literal op field".
var flipped = map[CompareOp]CompareOp{
	OpEq: OpEq, OpNe: OpNe, OpLt: OpGt, OpLe: OpGe, OpGt: OpLt, OpGe: OpLe,
}

func (p *planner) predicate(e ir.Expr, param *ir.Parameter) (Predicate, error) {
	switch n := e.(type) {
	case *ir.Constant:
		b, ok := n.Value.(ir.Bool)
		if !ok {
			return nil, unsupported(e, "predicate constant must be bool")
		}
		return Literal{Value: bool(b)}, nil
	case *ir.UnaryExpr:
		if n.Op != ir.OpNot {
			return nil, unsupported(e, "operator %s in predicate", n.Op)
		}
		inner, err := p.predicate(n.Operand, param)
		if err != nil {
			return nil, err
		}
		return Not{Predicate: inner}, nil
	case *ir.BinaryExpr:
		if n.Op.IsLogical() {
			l, err := p.predicate(n.Left, param)
			if err != nil {
				return nil, err
			}
			r, err := p.predicate(n.Right, param)
			if err != nil {
				return nil, err
			}
			if n.Op == ir.OpAnd {
				return conjoin(l, r), nil
			}
			return disjoin(l, r), nil
		}
		op, ok := compareOps[n.Op]
		if !ok {
			return nil, unsupported(e, "operator %s in predicate", n.Op)
		}
		return p.compare(n, op, param)
	}
	return nil, unsupported(e, "not a relational predicate")
}

func (p *planner) compare(n *ir.BinaryExpr, op CompareOp, param *ir.Parameter) (Predicate, error) {
	fieldSide, literalSide := n.Left, n.Right
	if _, ok := n.Left.(*ir.Constant); ok {
		fieldSide, literalSide = n.Right, n.Left
		op = flipped[op]
	}
	field, err := fieldOf(fieldSide, param)
	if err != nil {
		return nil, err
	}
	if !Fields[field] {
		return nil, unsupported(n, "field %s is not comparable", field)
	}
	c, ok := literalSide.(*ir.Constant)
	if !ok {
		return nil, unsupported(literalSide, "comparison operand must be a constant")
	}
	return Compare{Field: field, Op: op, Value: c.Value}, nil
}

// conjoin flattens nested Ands. A nil side is dropped.
func conjoin(a, b Predicate) Predicate {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	var preds []Predicate
	for _, x := range []Predicate{a, b} {
		if and, ok := x.(And); ok {
			preds = append(preds, and.Predicates...)
		} else {
			preds = append(preds, x)
		}
	}
	return And{Predicates: preds}
}

func disjoin(a, b Predicate) Predicate {
	var preds []Predicate
	for _, x := range []Predicate{a, b} {
		if or, ok := x.(Or); ok {
			preds = append(preds, or.Predicates...)
		} else {
			preds = append(preds, x)
		}
	}
	return Or{Predicates: preds}
}
