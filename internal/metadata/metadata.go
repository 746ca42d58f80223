// Package metadata exposes the engine's definition catalog as queryable
// collections.
//
// Each definition kind lives under a well-known root URI. Queries composed
// against a root are never evaluated locally: the whole expression,
// including any call the client could not have evaluated itself, is shipped
// to the engine as one MetadataQuery operation.
package metadata

import (
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/registry"
)

// Well-known metadata roots.
const (
	RootObservables           ir.URI = "rx://metadata/observables"
	RootObservers             ir.URI = "rx://metadata/observers"
	RootStreamFactories       ir.URI = "rx://metadata/streamFactories"
	RootSubscriptionFactories ir.URI = "rx://metadata/subscriptionFactories"
	RootSubscriptions         ir.URI = "rx://metadata/subscriptions"
	RootStreams               ir.URI = "rx://metadata/streams"
)

// Root describes one metadata collection.
type Root struct {
	// Name is the Metadata property the root is bound to.
	Name string
	URI  ir.URI
	// Elem is the element type of the collection.
	Elem ir.Type
}

// Type returns Queryable<Elem>.
func (r Root) Type() ir.Type {
	return ir.QueryableOf(r.Elem)
}

// Member returns the static property the root is bound to.
func (r Root) Member() ir.Member {
	return ir.Property(declaring, r.Name, r.Type())
}

const declaring = "Metadata"

// Roots lists the six metadata collections.
var Roots = []Root{
	{Name: "Observables", URI: RootObservables, Elem: ir.Named("ObservableDefinition")},
	{Name: "Observers", URI: RootObservers, Elem: ir.Named("ObserverDefinition")},
	{Name: "StreamFactories", URI: RootStreamFactories, Elem: ir.Named("StreamFactoryDefinition")},
	{Name: "SubscriptionFactories", URI: RootSubscriptionFactories, Elem: ir.Named("SubscriptionFactoryDefinition")},
	{Name: "Subscriptions", URI: RootSubscriptions, Elem: ir.Named("SubscriptionEntity")},
	{Name: "Streams", URI: RootStreams, Elem: ir.Named("StreamEntity")},
}

// LookupRoot returns the root with the given URI.
func LookupRoot(uri ir.URI) (Root, bool) {
	for _, r := range Roots {
		if r.URI == uri {
			return r, true
		}
	}
	return Root{}, false
}

// RegisterRoots binds the Metadata properties to their root URIs.
func RegisterRoots(reg *registry.Registry) error {
	for _, r := range Roots {
		if err := reg.Register(r.Member(), r.URI, r.Type()); err != nil {
			return err
		}
	}
	return nil
}

// Definition fields. Every element type carries them.
const (
	FieldURI        = "Uri"
	FieldExpression = "Expression"
	FieldState      = "State"
)

var fieldTypes = map[string]ir.Type{
	FieldURI:        ir.TypeURI,
	FieldExpression: ir.TypeExpr,
	FieldState:      ir.TypeObject,
}

// Field reads a field of a definition element, e.g. Field(x, FieldURI).
// Fields outside the well-known set are typed object and are shipped as
// written.
func Field(x ir.Expr, name string) ir.Expr {
	t, ok := fieldTypes[name]
	if !ok {
		t = ir.TypeObject
	}
	return ir.Access(x, ir.Property(x.Type().Name, name, t))
}
