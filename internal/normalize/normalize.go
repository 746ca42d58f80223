// Package normalize rewrites proxy-composed expressions into the canonical
// form carried by operations.
//
// Rules, applied bottom-up until no rule fires:
//  1. Capture nodes are replaced by the expression their loader yields at
//     normalization time (late capture).
//  2. Calls and member accesses on bound members become invocations of, or
//     references to, a FreeVariable named by the binding URI.
//  3. An Invoke whose target is a Lambda of matching arity is beta-reduced.
//  4. A reduction is skipped when an argument mentions a parameter that no
//     enclosing lambda binds; such expressions are kept as written.
//
// Normalization never fails on well-typed input.
package normalize

import (
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/registry"
)

// Resolver resolves member bindings. *registry.Registry implements it.
type Resolver interface {
	Resolve(m ir.Member) (registry.Binding, bool)
}

// Stats counts the rewrites performed by one normalization.
type Stats struct {
	Captures      int
	Substitutions int
	Reductions    int
	Guarded       int
}

// Normalizer applies the rewrite rules. It holds no per-call state and is
// safe for concurrent use if its Resolver is.
type Normalizer struct {
	resolver Resolver
}

// New returns a Normalizer resolving bindings through r. A nil r disables
// known-resource substitution.
func New(r Resolver) *Normalizer {
	return &Normalizer{resolver: r}
}

// Normalize returns the canonical form of e.
func (n *Normalizer) Normalize(e ir.Expr) ir.Expr {
	out, _ := n.NormalizeStats(e)
	return out
}

// NormalizeStats is like Normalize and also reports rewrite counts.
func (n *Normalizer) NormalizeStats(e ir.Expr) (ir.Expr, Stats) {
	p := &pass{n: n}
	return p.normalize(e, scope{}), p.stats
}

// scope is the set of parameters bound by enclosing lambdas.
type scope map[*ir.Parameter]bool

func (s scope) with(params []*ir.Parameter) scope {
	out := make(scope, len(s)+len(params))
	for p := range s {
		out[p] = true
	}
	for _, p := range params {
		out[p] = true
	}
	return out
}

type pass struct {
	n     *Normalizer
	stats Stats
}

func (p *pass) normalize(e ir.Expr, sc scope) ir.Expr {
	switch x := e.(type) {
	case nil:
		return nil
	case *ir.Capture:
		p.stats.Captures++
		var loaded ir.Expr
		if x.Load != nil {
			loaded = x.Load()
		}
		if loaded == nil {
			return ir.Const(ir.Null{}, x.StaticType)
		}
		return p.normalize(loaded, sc)
	case *ir.Lambda:
		body := p.normalize(x.Body, sc.with(x.Params))
		if body == x.Body {
			return x
		}
		return &ir.Lambda{Params: x.Params, Body: body, StaticType: x.StaticType}
	case *ir.Call:
		return p.call(x, sc)
	case *ir.MemberAccess:
		return p.access(x, sc)
	case *ir.Invoke:
		return p.invoke(x, sc)
	default:
		// Remaining composite nodes only need their children normalized.
		return ir.RewriteChildren(e, func(c ir.Expr) ir.Expr { return p.normalize(c, sc) })
	}
}

func (p *pass) call(x *ir.Call, sc scope) ir.Expr {
	var obj ir.Expr
	if x.Object != nil {
		obj = p.normalize(x.Object, sc)
	}
	args := p.list(x.Args, sc)

	b, ok := p.resolve(x.Method)
	if !ok {
		return &ir.Call{Method: x.Method, Object: obj, Args: args, StaticType: x.StaticType}
	}
	p.stats.Substitutions++

	operands := make([]ir.Expr, 0, len(args)+1)
	if obj != nil {
		operands = append(operands, obj)
	}
	operands = append(operands, args...)
	types := make([]ir.Type, len(operands))
	for i, o := range operands {
		types[i] = o.Type()
	}
	target := ir.Free(string(b.URI), ir.FuncOf(x.StaticType, types...))
	return &ir.Invoke{Target: target, Args: operands, StaticType: x.StaticType}
}

func (p *pass) access(x *ir.MemberAccess, sc scope) ir.Expr {
	var obj ir.Expr
	if x.Object != nil {
		obj = p.normalize(x.Object, sc)
	}

	b, ok := p.resolve(x.Member)
	if !ok {
		return &ir.MemberAccess{Object: obj, Member: x.Member, StaticType: x.StaticType}
	}
	p.stats.Substitutions++

	if obj == nil {
		return ir.Free(string(b.URI), x.StaticType)
	}
	target := ir.Free(string(b.URI), ir.FuncOf(x.StaticType, obj.Type()))
	return &ir.Invoke{Target: target, Args: []ir.Expr{obj}, StaticType: x.StaticType}
}

func (p *pass) invoke(x *ir.Invoke, sc scope) ir.Expr {
	target := p.normalize(x.Target, sc)
	args := p.list(x.Args, sc)

	lam, ok := target.(*ir.Lambda)
	if !ok || len(lam.Params) != len(args) {
		return &ir.Invoke{Target: target, Args: args, StaticType: x.StaticType}
	}
	for _, a := range args {
		for _, fp := range ir.FreeParameters(a) {
			if !sc[fp] {
				p.stats.Guarded++
				return &ir.Invoke{Target: target, Args: args, StaticType: x.StaticType}
			}
		}
	}

	p.stats.Reductions++
	with := make(map[*ir.Parameter]ir.Expr, len(args))
	for i, param := range lam.Params {
		with[param] = args[i]
	}
	return p.normalize(ir.Substitute(lam.Body, with), sc)
}

func (p *pass) list(xs []ir.Expr, sc scope) []ir.Expr {
	out := make([]ir.Expr, len(xs))
	for i, x := range xs {
		out[i] = p.normalize(x, sc)
	}
	return out
}

func (p *pass) resolve(m ir.Member) (registry.Binding, bool) {
	if p.n.resolver == nil {
		return registry.Binding{}, false
	}
	return p.n.resolver.Resolve(m)
}
