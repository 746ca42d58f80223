// Package operation defines the units of work dispatched to an engine.
//
// Operation is a sealed variant. Every variant embedding an expression holds
// it in normalized form; operations are immutable once constructed.
package operation

import (
	"github.com/roach88/rxq/internal/ir"
)

// Kind names an operation variant.
type Kind string

const (
	KindCreateSubscription          Kind = "CreateSubscription"
	KindCreateStream                Kind = "CreateStream"
	KindDefineObservable            Kind = "DefineObservable"
	KindDefineObserver              Kind = "DefineObserver"
	KindDefineStreamFactory         Kind = "DefineStreamFactory"
	KindDefineSubscriptionFactory   Kind = "DefineSubscriptionFactory"
	KindUndefineObservable          Kind = "UndefineObservable"
	KindUndefineObserver            Kind = "UndefineObserver"
	KindUndefineStreamFactory       Kind = "UndefineStreamFactory"
	KindUndefineSubscriptionFactory Kind = "UndefineSubscriptionFactory"
	KindObserverOnNext              Kind = "ObserverOnNext"
	KindObserverOnError             Kind = "ObserverOnError"
	KindObserverOnCompleted         Kind = "ObserverOnCompleted"
	KindMetadataQuery               Kind = "MetadataQuery"
	KindDeleteSubscription          Kind = "DeleteSubscription"
	KindDeleteStream                Kind = "DeleteStream"
)

// Kinds lists every variant in declaration order.
var Kinds = []Kind{
	KindCreateSubscription, KindCreateStream,
	KindDefineObservable, KindDefineObserver, KindDefineStreamFactory, KindDefineSubscriptionFactory,
	KindUndefineObservable, KindUndefineObserver, KindUndefineStreamFactory, KindUndefineSubscriptionFactory,
	KindObserverOnNext, KindObserverOnError, KindObserverOnCompleted,
	KindMetadataQuery,
	KindDeleteSubscription, KindDeleteStream,
}

// Operation is implemented by every variant in this package.
type Operation interface {
	Kind() Kind
	// Target is the acting resource. Empty for MetadataQuery.
	Target() ir.URI
	operation()
}

// Definition is the shared payload of create and define variants.
type Definition struct {
	ID    ir.URI
	Expr  ir.Expr
	State ir.Value
}

// Target implements Operation.
func (d Definition) Target() ir.URI { return d.ID }

// Reference is the shared payload of variants that only name a resource.
type Reference struct {
	ID ir.URI
}

// Target implements Operation.
func (r Reference) Target() ir.URI { return r.ID }

type (
	CreateSubscription        struct{ Definition }
	CreateStream              struct{ Definition }
	DefineObservable          struct{ Definition }
	DefineObserver            struct{ Definition }
	DefineStreamFactory       struct{ Definition }
	DefineSubscriptionFactory struct{ Definition }

	UndefineObservable          struct{ Reference }
	UndefineObserver            struct{ Reference }
	UndefineStreamFactory       struct{ Reference }
	UndefineSubscriptionFactory struct{ Reference }
	ObserverOnCompleted         struct{ Reference }
	DeleteSubscription          struct{ Reference }
	DeleteStream                struct{ Reference }
)

// ObserverOnNext delivers a value to an observer.
type ObserverOnNext struct {
	ID    ir.URI
	Value ir.Value
}

// ObserverOnError delivers a terminal error to an observer. Errors travel by
// message; the error's concrete type does not cross the engine boundary.
type ObserverOnError struct {
	ID      ir.URI
	Message string
}

// MetadataQuery asks the engine to evaluate a query rooted at one or more
// metadata roots.
type MetadataQuery struct {
	Expr ir.Expr
}

func (CreateSubscription) Kind() Kind          { return KindCreateSubscription }
func (CreateStream) Kind() Kind                { return KindCreateStream }
func (DefineObservable) Kind() Kind            { return KindDefineObservable }
func (DefineObserver) Kind() Kind              { return KindDefineObserver }
func (DefineStreamFactory) Kind() Kind         { return KindDefineStreamFactory }
func (DefineSubscriptionFactory) Kind() Kind   { return KindDefineSubscriptionFactory }
func (UndefineObservable) Kind() Kind          { return KindUndefineObservable }
func (UndefineObserver) Kind() Kind            { return KindUndefineObserver }
func (UndefineStreamFactory) Kind() Kind       { return KindUndefineStreamFactory }
func (UndefineSubscriptionFactory) Kind() Kind { return KindUndefineSubscriptionFactory }
func (ObserverOnNext) Kind() Kind              { return KindObserverOnNext }
func (ObserverOnError) Kind() Kind             { return KindObserverOnError }
func (ObserverOnCompleted) Kind() Kind         { return KindObserverOnCompleted }
func (MetadataQuery) Kind() Kind               { return KindMetadataQuery }
func (DeleteSubscription) Kind() Kind          { return KindDeleteSubscription }
func (DeleteStream) Kind() Kind                { return KindDeleteStream }

func (o ObserverOnNext) Target() ir.URI  { return o.ID }
func (o ObserverOnError) Target() ir.URI { return o.ID }
func (MetadataQuery) Target() ir.URI     { return "" }

func (CreateSubscription) operation()          {}
func (CreateStream) operation()                {}
func (DefineObservable) operation()            {}
func (DefineObserver) operation()              {}
func (DefineStreamFactory) operation()         {}
func (DefineSubscriptionFactory) operation()   {}
func (UndefineObservable) operation()          {}
func (UndefineObserver) operation()            {}
func (UndefineStreamFactory) operation()       {}
func (UndefineSubscriptionFactory) operation() {}
func (ObserverOnNext) operation()              {}
func (ObserverOnError) operation()             {}
func (ObserverOnCompleted) operation()         {}
func (MetadataQuery) operation()               {}
func (DeleteSubscription) operation()          {}
func (DeleteStream) operation()                {}

// Expression returns the expression carried by op, or nil.
func Expression(op Operation) ir.Expr {
	switch o := op.(type) {
	case MetadataQuery:
		return o.Expr
	default:
		if d, ok := definitionOf(op); ok {
			return d.Expr
		}
	}
	return nil
}

// State returns the state payload carried by op, or nil.
func State(op Operation) ir.Value {
	if d, ok := definitionOf(op); ok {
		return d.State
	}
	return nil
}

// HasDefinition reports whether kind carries (id, expression, state).
func HasDefinition(kind Kind) bool {
	switch kind {
	case KindCreateSubscription, KindCreateStream,
		KindDefineObservable, KindDefineObserver, KindDefineStreamFactory, KindDefineSubscriptionFactory:
		return true
	}
	return false
}

func definitionOf(op Operation) (Definition, bool) {
	switch o := op.(type) {
	case CreateSubscription:
		return o.Definition, true
	case CreateStream:
		return o.Definition, true
	case DefineObservable:
		return o.Definition, true
	case DefineObserver:
		return o.Definition, true
	case DefineStreamFactory:
		return o.Definition, true
	case DefineSubscriptionFactory:
		return o.Definition, true
	}
	return Definition{}, false
}

// New builds the variant named by kind from its parts. Fields a variant
// does not carry are ignored; for ObserverOnNext state is the value and for
// ObserverOnError it is the message. The result is validated.
func New(kind Kind, id ir.URI, expr ir.Expr, state ir.Value) (Operation, error) {
	d := Definition{ID: id, Expr: expr, State: state}
	r := Reference{ID: id}
	var op Operation
	switch kind {
	case KindCreateSubscription:
		op = CreateSubscription{d}
	case KindCreateStream:
		op = CreateStream{d}
	case KindDefineObservable:
		op = DefineObservable{d}
	case KindDefineObserver:
		op = DefineObserver{d}
	case KindDefineStreamFactory:
		op = DefineStreamFactory{d}
	case KindDefineSubscriptionFactory:
		op = DefineSubscriptionFactory{d}
	case KindUndefineObservable:
		op = UndefineObservable{r}
	case KindUndefineObserver:
		op = UndefineObserver{r}
	case KindUndefineStreamFactory:
		op = UndefineStreamFactory{r}
	case KindUndefineSubscriptionFactory:
		op = UndefineSubscriptionFactory{r}
	case KindObserverOnCompleted:
		op = ObserverOnCompleted{r}
	case KindDeleteSubscription:
		op = DeleteSubscription{r}
	case KindDeleteStream:
		op = DeleteStream{r}
	case KindMetadataQuery:
		op = MetadataQuery{Expr: expr}
	case KindObserverOnNext:
		op = ObserverOnNext{ID: id, Value: ir.OrNull(state)}
	case KindObserverOnError:
		msg, _ := state.(ir.String)
		op = ObserverOnError{ID: id, Message: string(msg)}
	default:
		return nil, &ArgumentError{Param: "kind", Message: "unknown operation kind " + string(kind)}
	}
	if err := Validate(op); err != nil {
		return nil, err
	}
	return op, nil
}

// Validate checks the required fields of op: every variant but
// MetadataQuery needs an ID, and expression-carrying variants need a
// capture-free expression.
func Validate(op Operation) error {
	if op == nil {
		return &ArgumentError{Param: "operation", Message: "is nil"}
	}
	if op.Kind() != KindMetadataQuery && op.Target() == "" {
		return &ArgumentError{Param: "id", Message: "is required for " + string(op.Kind())}
	}
	if HasDefinition(op.Kind()) || op.Kind() == KindMetadataQuery {
		e := Expression(op)
		if e == nil {
			return &ArgumentError{Param: "expression", Message: "is required for " + string(op.Kind())}
		}
		var capture *ir.Capture
		ir.Walk(e, func(x ir.Expr) bool {
			if c, ok := x.(*ir.Capture); ok && capture == nil {
				capture = c
			}
			return capture == nil
		})
		if capture != nil {
			return &ArgumentError{Param: "expression", Message: "contains unresolved capture " + capture.Name}
		}
	}
	return nil
}
