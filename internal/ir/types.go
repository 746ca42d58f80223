package ir

import (
	"fmt"
	"strings"
	"unicode"
)

// Type is the static type carried by every expression node.
//
// A Type is a name plus ordered type arguments, e.g. Observable<int> or
// Func<int, bool>. Type parameters (T, R, T1) stand for any type in open
// signatures held by the resource registry; they never appear in a
// normalized expression.
type Type struct {
	Name  string
	Args  []Type
	Param bool
}

// Well-known type names.
const (
	NameFunc                = "Func"
	NameObservable          = "Observable"
	NameObserver            = "Observer"
	NameSubject             = "Subject"
	NameSubscription        = "Subscription"
	NameStreamFactory       = "StreamFactory"
	NameSubscriptionFactory = "SubscriptionFactory"
	NameQueryable           = "Queryable"
)

// Primitive types.
var (
	TypeBool     = Type{Name: "bool"}
	TypeInt      = Type{Name: "int"}
	TypeString   = Type{Name: "string"}
	TypeURI      = Type{Name: "uri"}
	TypeDuration = Type{Name: "duration"}
	TypeObject   = Type{Name: "object"}
	TypeError    = Type{Name: "error"}
	TypeUnit     = Type{Name: "unit"}
	TypeExpr     = Type{Name: "expression"}
)

// Named builds a closed or generic named type.
func Named(name string, args ...Type) Type {
	return Type{Name: name, Args: args}
}

// TypeParam builds a type parameter placeholder.
func TypeParam(name string) Type {
	return Type{Name: name, Param: true}
}

// FuncOf builds Func<params..., result>.
func FuncOf(result Type, params ...Type) Type {
	args := make([]Type, 0, len(params)+1)
	args = append(args, params...)
	args = append(args, result)
	return Type{Name: NameFunc, Args: args}
}

// ObservableOf builds Observable<elem>.
func ObservableOf(elem Type) Type { return Named(NameObservable, elem) }

// ObserverOf builds Observer<elem>.
func ObserverOf(elem Type) Type { return Named(NameObserver, elem) }

// SubjectOf builds Subject<elem>.
func SubjectOf(elem Type) Type { return Named(NameSubject, elem) }

// QueryableOf builds Queryable<elem>.
func QueryableOf(elem Type) Type { return Named(NameQueryable, elem) }

// SubscriptionType is the type of a subscription handle.
var SubscriptionType = Named(NameSubscription)

// StreamFactoryOf builds StreamFactory<params..., elem>.
func StreamFactoryOf(elem Type, params ...Type) Type {
	return Named(NameStreamFactory, append(append([]Type{}, params...), elem)...)
}

// SubscriptionFactoryOf builds SubscriptionFactory<params...>.
func SubscriptionFactoryOf(params ...Type) Type {
	return Named(NameSubscriptionFactory, params...)
}

// IsZero reports whether t is the zero Type.
func (t Type) IsZero() bool {
	return t.Name == "" && len(t.Args) == 0 && !t.Param
}

// Is reports whether t is named name (ignoring arguments).
func (t Type) Is(name string) bool {
	return !t.Param && t.Name == name
}

// IsFunc reports whether t is a Func type.
func (t Type) IsFunc() bool {
	return t.Is(NameFunc) && len(t.Args) > 0
}

// FuncParams returns the parameter types of a Func type.
func (t Type) FuncParams() []Type {
	if !t.IsFunc() {
		return nil
	}
	return t.Args[:len(t.Args)-1]
}

// FuncResult returns the result type of a Func type.
func (t Type) FuncResult() Type {
	if !t.IsFunc() {
		return Type{}
	}
	return t.Args[len(t.Args)-1]
}

// Elem returns the single type argument of Observable, Observer, Subject or
// Queryable, and the element of a StreamFactory.
func (t Type) Elem() Type {
	switch {
	case t.Is(NameStreamFactory) && len(t.Args) > 0:
		return t.Args[len(t.Args)-1]
	case len(t.Args) == 1:
		return t.Args[0]
	}
	return Type{}
}

// Equal reports structural type equality.
func (t Type) Equal(u Type) bool {
	if t.Name != u.Name || t.Param != u.Param || len(t.Args) != len(u.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(u.Args[i]) {
			return false
		}
	}
	return true
}

// IsOpen reports whether t mentions a type parameter.
func (t Type) IsOpen() bool {
	if t.Param {
		return true
	}
	for _, a := range t.Args {
		if a.IsOpen() {
			return true
		}
	}
	return false
}

// String renders t in the textual form accepted by ParseType.
func (t Type) String() string {
	if len(t.Args) == 0 {
		return t.Name
	}
	var sb strings.Builder
	sb.WriteString(t.Name)
	sb.WriteByte('<')
	for i, a := range t.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte('>')
	return sb.String()
}

// Unify matches the open type t against the closed type u, extending
// bindings. It returns false if the shapes differ or a type parameter would
// be bound to two different types.
func Unify(t, u Type, bindings map[string]Type) bool {
	if t.Param {
		if prev, ok := bindings[t.Name]; ok {
			return prev.Equal(u)
		}
		bindings[t.Name] = u
		return true
	}
	if t.Name != u.Name || u.Param || len(t.Args) != len(u.Args) {
		return false
	}
	for i := range t.Args {
		if !Unify(t.Args[i], u.Args[i], bindings) {
			return false
		}
	}
	return true
}

// ParseType parses the textual form produced by Type.String.
// Identifiers of a single upper-case letter optionally followed by digits
// (T, R, T1) are type parameters.
func ParseType(s string) (Type, error) {
	p := &typeParser{src: s}
	t, err := p.parse()
	if err != nil {
		return Type{}, fmt.Errorf("parse type %q: %w", s, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Type{}, fmt.Errorf("parse type %q: unexpected %q at %d", s, p.src[p.pos:], p.pos)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
// Use only for static tables and tests.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) parse() (Type, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' && c != '.' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return Type{}, fmt.Errorf("expected type name at %d", start)
	}
	name := p.src[start:p.pos]

	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '<' {
		if isTypeParamName(name) {
			return TypeParam(name), nil
		}
		return Type{Name: name}, nil
	}
	p.pos++ // '<'

	var args []Type
	for {
		arg, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		args = append(args, arg)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return Type{}, fmt.Errorf("unterminated type argument list")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return Type{Name: name, Args: args}, nil
		default:
			return Type{}, fmt.Errorf("unexpected %q at %d", p.src[p.pos], p.pos)
		}
	}
}

func isTypeParamName(name string) bool {
	if name == "" || name[0] < 'A' || name[0] > 'Z' {
		return false
	}
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
