package reactive

import (
	"errors"
	"fmt"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

var errNotObservableProperty = errors.New("not an observable property")

// typeError reports a resource or definition of the wrong shape.
type typeError struct {
	got  ir.Type
	want string
}

func (e *typeError) Error() string {
	return fmt.Sprintf("type %s does not produce a %s", e.got, e.want)
}

// checkResource validates a parameterized resource type
// Func<params..., name<...>>.
func checkResource(uri ir.URI, t ir.Type, name string) error {
	if uri == "" {
		return operation.Required("uri")
	}
	if t.IsZero() {
		return operation.Required("type")
	}
	if !t.IsFunc() || !t.FuncResult().Is(name) {
		return &CompositionError{Op: string(uri), Err: &typeError{got: t, want: "parameterized " + name}}
	}
	return nil
}

// checkNamed validates a factory type name<...>.
func checkNamed(uri ir.URI, t ir.Type, name string) error {
	if uri == "" {
		return operation.Required("uri")
	}
	if t.IsZero() {
		return operation.Required("type")
	}
	if !t.Is(name) {
		return &CompositionError{Op: string(uri), Err: &typeError{got: t, want: name}}
	}
	return nil
}

// definitionFits reports whether an expression of type t can define a
// resource of kind want.
func definitionFits(t ir.Type, want string) bool {
	result := t
	if t.IsFunc() {
		result = t.FuncResult()
	}
	switch want {
	case ir.NameStreamFactory:
		return t.Is(ir.NameStreamFactory) || (t.IsFunc() && result.Is(ir.NameSubject))
	case ir.NameSubscriptionFactory:
		return t.Is(ir.NameSubscriptionFactory) || result.Is(ir.NameSubscription)
	default:
		return result.Is(want)
	}
}

// factoryParams returns the parameter types of a factory type and the type
// its invocation produces.
func factoryParams(t ir.Type) (params []ir.Type, produces ir.Type) {
	switch {
	case t.IsFunc():
		return t.FuncParams(), t.FuncResult()
	case t.Is(ir.NameStreamFactory) && len(t.Args) > 0:
		return t.Args[:len(t.Args)-1], ir.SubjectOf(t.Args[len(t.Args)-1])
	case t.Is(ir.NameSubscriptionFactory):
		return t.Args, ir.SubscriptionType
	}
	return nil, ir.Type{}
}

// apply builds the invocation of a factory expression, checking arity and
// argument types.
func apply(op string, factory ir.Expr, args []ir.Expr) (ir.Expr, error) {
	params, produces := factoryParams(factory.Type())
	if produces.IsZero() {
		return nil, &CompositionError{Op: op, Err: fmt.Errorf("%s is not a factory type", factory.Type())}
	}
	if len(args) != len(params) {
		return nil, &CompositionError{Op: op, Err: fmt.Errorf("expects %d argument(s), got %d", len(params), len(args))}
	}
	for i, a := range args {
		if a == nil {
			return nil, operation.Required(fmt.Sprintf("args[%d]", i))
		}
		if !params[i].Equal(a.Type()) {
			return nil, &CompositionError{Op: op, Err: fmt.Errorf("argument %d has type %s, want %s", i, a.Type(), params[i])}
		}
	}
	return &ir.Invoke{Target: factory, Args: args, StaticType: produces}, nil
}
