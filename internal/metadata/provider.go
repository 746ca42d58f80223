package metadata

import (
	"context"

	"github.com/roach88/rxq/internal/compiler"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Provider compiles metadata queries and executes them through the
// compiler's engine.
//
// CreateQuery and Execute are thin adapters over one compile step.
type Provider struct {
	compiler *compiler.Compiler
}

// NewProvider returns a provider dispatching through c.
func NewProvider(c *compiler.Compiler) *Provider {
	return &Provider{compiler: c}
}

// Observables returns the observable definitions collection.
func (p *Provider) Observables() Queryable { return p.Root(RootObservables) }

// Observers returns the observer definitions collection.
func (p *Provider) Observers() Queryable { return p.Root(RootObservers) }

// StreamFactories returns the stream factory definitions collection.
func (p *Provider) StreamFactories() Queryable { return p.Root(RootStreamFactories) }

// SubscriptionFactories returns the subscription factory definitions collection.
func (p *Provider) SubscriptionFactories() Queryable { return p.Root(RootSubscriptionFactories) }

// Subscriptions returns the live subscriptions collection.
func (p *Provider) Subscriptions() Queryable { return p.Root(RootSubscriptions) }

// Streams returns the live streams collection.
func (p *Provider) Streams() Queryable { return p.Root(RootStreams) }

// Root returns the collection rooted at uri. The query reads the bound
// Metadata property; normalization turns it into the root's free variable.
func (p *Provider) Root(uri ir.URI) Queryable {
	r, ok := LookupRoot(uri)
	if !ok {
		return Queryable{provider: p, err: &operation.ArgumentError{Param: "root", Message: string(uri) + " is not a metadata root"}}
	}
	return Queryable{provider: p, expr: ir.Access(nil, r.Member())}
}

// CreateQuery wraps expr as a Queryable. expr must be a query over a
// metadata root whose type is a Queryable.
func (p *Provider) CreateQuery(expr ir.Expr) (Queryable, error) {
	normalized, err := p.compile(expr)
	if err != nil {
		return Queryable{}, err
	}
	if !normalized.Type().Is(ir.NameQueryable) {
		return Queryable{}, &operation.UnsupportedExpressionError{Expr: normalized, Reason: "type " + normalized.Type().String() + " is not a queryable"}
	}
	return Queryable{provider: p, expr: normalized}, nil
}

// Execute compiles expr and dispatches it as one MetadataQuery.
func (p *Provider) Execute(ctx context.Context, expr ir.Expr) (ir.Value, error) {
	normalized, err := p.compile(expr)
	if err != nil {
		return nil, err
	}
	return p.compiler.Query(ctx, normalized)
}

// compile is the single entry point behind CreateQuery and Execute.
func (p *Provider) compile(expr ir.Expr) (ir.Expr, error) {
	if expr == nil {
		return nil, operation.Required("expression")
	}
	normalized := p.compiler.Normalizer().Normalize(expr)
	if _, ok := normalized.(*ir.Constant); ok {
		return nil, &operation.UnsupportedExpressionError{Expr: normalized, Reason: "a constant is not a query"}
	}
	src := Source(normalized)
	if src == nil {
		return nil, &operation.UnsupportedExpressionError{Expr: normalized, Reason: "query has no source collection"}
	}
	if _, ok := LookupRoot(ir.URI(src.Name)); !ok {
		return nil, &operation.UnsupportedExpressionError{Expr: normalized, Reason: "source " + src.Name + " is not a metadata root"}
	}
	return normalized, nil
}

// Source follows the first operand of each query operator down to the
// collection the query reads from. It returns nil when the chain does not
// end in a free variable.
func Source(e ir.Expr) *ir.FreeVariable {
	for {
		switch n := e.(type) {
		case *ir.FreeVariable:
			return n
		case *ir.Call:
			switch {
			case n.Object != nil:
				e = n.Object
			case len(n.Args) > 0:
				e = n.Args[0]
			default:
				return nil
			}
		case *ir.Invoke:
			if len(n.Args) == 0 {
				return nil
			}
			e = n.Args[0]
		default:
			return nil
		}
	}
}

// RootsOf returns the metadata roots e reads from, in first-occurrence order.
func RootsOf(e ir.Expr) []ir.URI {
	var out []ir.URI
	seen := make(map[ir.URI]bool)
	ir.Walk(e, func(x ir.Expr) bool {
		if fv, ok := x.(*ir.FreeVariable); ok {
			uri := ir.URI(fv.Name)
			if _, isRoot := LookupRoot(uri); isRoot && !seen[uri] {
				seen[uri] = true
				out = append(out, uri)
			}
		}
		return true
	})
	return out
}
