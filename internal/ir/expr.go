package ir

import (
	"fmt"
	"time"
)

// URI names a remote resource instance or a well-known root.
type URI string

// String implements fmt.Stringer.
func (u URI) String() string { return string(u) }

// Expr is a sealed interface implemented by every IR node.
// Every node carries its static type.
type Expr interface {
	Type() Type
	exprNode()
}

// Constant is a literal value.
type Constant struct {
	Value      Value
	StaticType Type
}

// FreeVariable references a remote resource by name (usually a URI).
// Equality is by (Name, StaticType), never by node identity.
type FreeVariable struct {
	Name       string
	StaticType Type
}

// Parameter is a lambda parameter. A Parameter is bound by identity to the
// Lambda that lists it; equality across trees is positional.
type Parameter struct {
	Name       string
	StaticType Type
}

// Invoke applies a delegate-typed target to arguments.
type Invoke struct {
	Target     Expr
	Args       []Expr
	StaticType Type
}

// Call is a method call. Object is nil for static methods.
type Call struct {
	Method     Member
	Object     Expr
	Args       []Expr
	StaticType Type
}

// Lambda is a function literal.
type Lambda struct {
	Params     []*Parameter
	Body       Expr
	StaticType Type
}

// New constructs a value through a constructor member.
type New struct {
	Constructor Member
	Args        []Expr
	StaticType  Type
}

// MemberAccess reads a property. Object is nil for static properties.
type MemberAccess struct {
	Object     Expr
	Member     Member
	StaticType Type
}

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	Op         BinaryOp
	Left       Expr
	Right      Expr
	StaticType Type
}

// UnaryExpr applies a unary operator.
type UnaryExpr struct {
	Op         UnaryOp
	Operand    Expr
	StaticType Type
}

// Default is the zero value of its type.
type Default struct {
	StaticType Type
}

// Capture references a client-side variable closed over by a query.
// Load is evaluated when the query is normalized, which happens each time a
// terminal action runs. A normalized expression never contains a Capture.
//
// Check, when set, runs before Load each time the capture is about to be
// loaded. A non-nil error stops compilation of the enclosing operation.
type Capture struct {
	Name       string
	StaticType Type
	Load       func() Expr
	Check      func() error
}

func (e *Constant) Type() Type     { return e.StaticType }
func (e *FreeVariable) Type() Type { return e.StaticType }
func (e *Parameter) Type() Type    { return e.StaticType }
func (e *Invoke) Type() Type       { return e.StaticType }
func (e *Call) Type() Type         { return e.StaticType }
func (e *Lambda) Type() Type       { return e.StaticType }
func (e *New) Type() Type          { return e.StaticType }
func (e *MemberAccess) Type() Type { return e.StaticType }
func (e *BinaryExpr) Type() Type   { return e.StaticType }
func (e *UnaryExpr) Type() Type    { return e.StaticType }
func (e *Default) Type() Type      { return e.StaticType }
func (e *Capture) Type() Type      { return e.StaticType }

func (*Constant) exprNode()     {}
func (*FreeVariable) exprNode() {}
func (*Parameter) exprNode()    {}
func (*Invoke) exprNode()       {}
func (*Call) exprNode()         {}
func (*Lambda) exprNode()       {}
func (*New) exprNode()          {}
func (*MemberAccess) exprNode() {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*Default) exprNode()      {}
func (*Capture) exprNode()      {}

// BinaryOp enumerates binary operators.
type BinaryOp string

const (
	OpAdd       BinaryOp = "+"
	OpSubtract  BinaryOp = "-"
	OpMultiply  BinaryOp = "*"
	OpDivide    BinaryOp = "/"
	OpModulo    BinaryOp = "%"
	OpEqual     BinaryOp = "=="
	OpNotEqual  BinaryOp = "!="
	OpLess      BinaryOp = "<"
	OpLessEq    BinaryOp = "<="
	OpGreater   BinaryOp = ">"
	OpGreaterEq BinaryOp = ">="
	OpAnd       BinaryOp = "&&"
	OpOr        BinaryOp = "||"
)

// UnaryOp enumerates unary operators.
type UnaryOp string

const (
	OpNot    UnaryOp = "!"
	OpNegate UnaryOp = "-"
)

// IsComparison reports whether op yields bool from two operands of one type.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLess, OpLessEq, OpGreater, OpGreaterEq:
		return true
	}
	return false
}

// IsLogical reports whether op combines two bool operands.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// ---- constructors ----

// Const builds a Constant.
func Const(v Value, t Type) *Constant {
	return &Constant{Value: OrNull(v), StaticType: t}
}

// IntConst builds an int constant.
func IntConst(n int64) *Constant { return Const(Int(n), TypeInt) }

// StringConst builds a string constant.
func StringConst(s string) *Constant { return Const(String(s), TypeString) }

// BoolConst builds a bool constant.
func BoolConst(b bool) *Constant { return Const(Bool(b), TypeBool) }

// URIConst builds a uri constant.
func URIConst(u URI) *Constant { return Const(String(u), TypeURI) }

// DurationConst builds a duration constant (nanoseconds).
func DurationConst(d time.Duration) *Constant { return Const(Int(d.Nanoseconds()), TypeDuration) }

// Free builds a FreeVariable.
func Free(name string, t Type) *FreeVariable {
	return &FreeVariable{Name: name, StaticType: t}
}

// Param builds a fresh Parameter.
func Param(name string, t Type) *Parameter {
	return &Parameter{Name: name, StaticType: t}
}

// LambdaOf builds a Lambda with its Func type derived from params and body.
func LambdaOf(body Expr, params ...*Parameter) *Lambda {
	pts := make([]Type, len(params))
	for i, p := range params {
		pts[i] = p.StaticType
	}
	return &Lambda{Params: params, Body: body, StaticType: FuncOf(body.Type(), pts...)}
}

// Lambda1 builds a one-parameter lambda from a Go function that produces the
// body from the parameter expression.
func Lambda1(name string, t Type, body func(x Expr) Expr) *Lambda {
	p := Param(name, t)
	return LambdaOf(body(p), p)
}

// Lambda2 builds a two-parameter lambda.
func Lambda2(n1 string, t1 Type, n2 string, t2 Type, body func(x, y Expr) Expr) *Lambda {
	p1, p2 := Param(n1, t1), Param(n2, t2)
	return LambdaOf(body(p1, p2), p1, p2)
}

// InvokeOf builds an Invoke node. The target must have a Func type whose
// parameters accept the argument types.
func InvokeOf(target Expr, args ...Expr) (*Invoke, error) {
	ft := target.Type()
	if !ft.IsFunc() {
		return nil, fmt.Errorf("invoke: target of type %s is not a function", ft)
	}
	params := ft.FuncParams()
	if len(params) != len(args) {
		return nil, fmt.Errorf("invoke: %s expects %d argument(s), got %d", ft, len(params), len(args))
	}
	for i, a := range args {
		if !params[i].Equal(a.Type()) {
			return nil, fmt.Errorf("invoke: argument %d has type %s, want %s", i, a.Type(), params[i])
		}
	}
	return &Invoke{Target: target, Args: args, StaticType: ft.FuncResult()}, nil
}

// CallOf builds a Call node, instantiating the method's result type from the
// argument types. For instance methods the object is not part of Params.
func CallOf(m Member, object Expr, args ...Expr) (*Call, error) {
	if m.Kind != MethodMember {
		return nil, fmt.Errorf("call: %s is a %s, not a method", m.Signature(), m.Kind)
	}
	types := make([]Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	rt, err := m.Instantiate(types)
	if err != nil {
		return nil, err
	}
	return &Call{Method: m, Object: object, Args: args, StaticType: rt}, nil
}

// Access builds a MemberAccess on a property.
func Access(object Expr, m Member) *MemberAccess {
	return &MemberAccess{Object: object, Member: m, StaticType: m.Result}
}

// NewOf builds a New node.
func NewOf(ctor Member, args ...Expr) (*New, error) {
	if ctor.Kind != ConstructorMember {
		return nil, fmt.Errorf("new: %s is not a constructor", ctor.Signature())
	}
	types := make([]Type, len(args))
	for i, a := range args {
		types[i] = a.Type()
	}
	rt, err := ctor.Instantiate(types)
	if err != nil {
		return nil, err
	}
	return &New{Constructor: ctor, Args: args, StaticType: rt}, nil
}

// Binary builds a BinaryExpr with operator typing rules: comparisons yield
// bool over equal operand types, logical operators need bool operands,
// arithmetic keeps the operand type.
func Binary(op BinaryOp, l, r Expr) (*BinaryExpr, error) {
	lt, rt := l.Type(), r.Type()
	if !lt.Equal(rt) {
		return nil, fmt.Errorf("binary %s: operand types %s and %s differ", op, lt, rt)
	}
	switch {
	case op.IsComparison():
		return &BinaryExpr{Op: op, Left: l, Right: r, StaticType: TypeBool}, nil
	case op.IsLogical():
		if !lt.Equal(TypeBool) {
			return nil, fmt.Errorf("binary %s: operands must be bool, got %s", op, lt)
		}
		return &BinaryExpr{Op: op, Left: l, Right: r, StaticType: TypeBool}, nil
	default:
		if !lt.Equal(TypeInt) && !lt.Equal(TypeDuration) && !(op == OpAdd && lt.Equal(TypeString)) {
			return nil, fmt.Errorf("binary %s: unsupported operand type %s", op, lt)
		}
		return &BinaryExpr{Op: op, Left: l, Right: r, StaticType: lt}, nil
	}
}

// Unary builds a UnaryExpr.
func Unary(op UnaryOp, x Expr) (*UnaryExpr, error) {
	t := x.Type()
	switch op {
	case OpNot:
		if !t.Equal(TypeBool) {
			return nil, fmt.Errorf("unary !: operand must be bool, got %s", t)
		}
	case OpNegate:
		if !t.Equal(TypeInt) && !t.Equal(TypeDuration) {
			return nil, fmt.Errorf("unary -: unsupported operand type %s", t)
		}
	default:
		return nil, fmt.Errorf("unknown unary operator %q", op)
	}
	return &UnaryExpr{Op: op, Operand: x, StaticType: t}, nil
}

// MustBinary is like Binary but panics on a typing error.
// Intended for predicate bodies built in tests and static tables.
func MustBinary(op BinaryOp, l, r Expr) *BinaryExpr {
	b, err := Binary(op, l, r)
	if err != nil {
		panic(err)
	}
	return b
}

// DefaultOf builds a Default node.
func DefaultOf(t Type) *Default { return &Default{StaticType: t} }

// CaptureValue builds a Capture whose load yields a constant of type t.
func CaptureValue(name string, t Type, load func() Value) *Capture {
	return &Capture{Name: name, StaticType: t, Load: func() Expr { return Const(load(), t) }}
}

// CaptureExpr builds a Capture whose load yields an arbitrary expression,
// e.g. the expression of a proxy held in a client variable.
func CaptureExpr(name string, t Type, load func() Expr) *Capture {
	return &Capture{Name: name, StaticType: t, Load: load}
}
