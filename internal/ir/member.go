package ir

import (
	"fmt"
	"strings"
)

// MemberKind distinguishes methods, properties and constructors.
type MemberKind int

const (
	// MethodMember is a method. Static methods (operators such as Where)
	// take their source as the first parameter.
	MethodMember MemberKind = iota + 1
	// PropertyMember is a property or field.
	PropertyMember
	// ConstructorMember is a constructor used by New nodes.
	ConstructorMember
)

// String returns the canonical name of the member kind.
func (k MemberKind) String() string {
	switch k {
	case MethodMember:
		return "method"
	case PropertyMember:
		return "property"
	case ConstructorMember:
		return "constructor"
	default:
		return "unknown"
	}
}

// ParseMemberKind is the inverse of MemberKind.String.
func ParseMemberKind(s string) (MemberKind, error) {
	switch s {
	case "method":
		return MethodMember, nil
	case "property":
		return PropertyMember, nil
	case "constructor":
		return ConstructorMember, nil
	default:
		return 0, fmt.Errorf("unknown member kind %q", s)
	}
}

// Member describes a client-visible method, property or constructor.
//
// Params and Result may mention type parameters; the instantiated types of
// a particular use site live on the expression node. The member identity
// used for resource resolution is Signature.
type Member struct {
	Kind      MemberKind
	Declaring string
	Name      string
	Params    []Type
	Result    Type
}

// Method builds a method member.
func Method(declaring, name string, result Type, params ...Type) Member {
	return Member{Kind: MethodMember, Declaring: declaring, Name: name, Params: params, Result: result}
}

// Property builds a property member.
func Property(declaring, name string, result Type) Member {
	return Member{Kind: PropertyMember, Declaring: declaring, Name: name, Result: result}
}

// Constructor builds a constructor member.
func Constructor(declaring string, params ...Type) Member {
	return Member{Kind: ConstructorMember, Declaring: declaring, Name: "new", Params: params, Result: Named(declaring)}
}

// Signature renders the member identity:
//
//	Observable.Where(Observable<T>, Func<T, bool>)
//	Context.Observables
//	Point.new(int, int)
func (m Member) Signature() string {
	var sb strings.Builder
	sb.WriteString(m.Declaring)
	sb.WriteByte('.')
	sb.WriteString(m.Name)
	if m.Kind == PropertyMember {
		return sb.String()
	}
	sb.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// String implements fmt.Stringer.
func (m Member) String() string {
	return m.Signature()
}

// Equal compares two members by kind, signature and result type.
func (m Member) Equal(o Member) bool {
	return m.Kind == o.Kind && m.Signature() == o.Signature() && m.Result.Equal(o.Result)
}

// Instantiate checks the use-site argument types against the member's
// parameter types and returns the instantiated result type.
func (m Member) Instantiate(args []Type) (Type, error) {
	if len(args) != len(m.Params) {
		return Type{}, fmt.Errorf("%s: expected %d argument(s), got %d", m.Signature(), len(m.Params), len(args))
	}
	bindings := make(map[string]Type)
	for i, p := range m.Params {
		if !Unify(p, args[i], bindings) {
			return Type{}, fmt.Errorf("%s: argument %d has type %s, want %s", m.Signature(), i, args[i], p)
		}
	}
	return Subst(m.Result, bindings), nil
}

// Subst replaces type parameters in t with their bindings.
func Subst(t Type, bindings map[string]Type) Type {
	if t.Param {
		if b, ok := bindings[t.Name]; ok {
			return b
		}
		return t
	}
	if len(t.Args) == 0 {
		return t
	}
	args := make([]Type, len(t.Args))
	for i, a := range t.Args {
		args[i] = Subst(a, bindings)
	}
	return Type{Name: t.Name, Args: args}
}
