package queryir

import (
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/metadata"
)

// Query is a sealed plan node.
//
// Query types:
//   - Select: rows of one collection, filtered, projected and limited
//   - Join: inner equi-join of two Selects
//   - Aggregate: Count, Any or First over a Select or Join
type Query interface {
	queryNode()
}

// Predicate is a sealed row filter.
//
// Predicate types:
//   - Compare: field <op> literal
//   - And, Or: n-ary conjunction and disjunction
//   - Not: negation
//   - Literal: constant true or false
type Predicate interface {
	predicateNode()
}

// NoLimit marks a Select or Join without a Take.
const NoLimit int64 = -1

// Select reads definitions from one collection.
//
// Semantics:
//
//	SELECT <project> FROM <from> WHERE <filter> ORDER BY uri LIMIT <limit>
//
// An empty Project returns each definition as an object with the Uri,
// Expression and State fields.
type Select struct {
	From    string    // collection name, e.g. "observables"
	Filter  Predicate // nil = no filter
	Project string    // field name, "" = whole definition
	Limit   int64     // NoLimit or a non-negative row count
}

func (Select) queryNode() {}

// Side names one input of a Join.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Join pairs rows of Left and Right whose key fields are equal.
//
// Semantics:
//
//	SELECT <project> FROM <left> JOIN <right> ON left.<leftKey> = right.<rightKey>
//
// Left and Right must not project or limit; the join does both.
type Join struct {
	Left        Select
	Right       Select
	LeftKey     string
	RightKey    string
	ProjectSide Side
	Project     string // field of ProjectSide, "" = whole definition
	Limit       int64
}

func (Join) queryNode() {}

// AggFunc names a scalar reduction.
type AggFunc string

const (
	AggCount AggFunc = "count"
	AggAny   AggFunc = "any"
	AggFirst AggFunc = "first"
)

// Aggregate reduces Source to one value: an int for Count, a bool for Any,
// the first row for First.
type Aggregate struct {
	Func   AggFunc
	Source Query // Select or Join
}

func (Aggregate) queryNode() {}

// CompareOp is a comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Compare tests a field against a literal.
type Compare struct {
	Field string
	Op    CompareOp
	Value ir.Value
}

func (Compare) predicateNode() {}

// And holds when every predicate holds. Empty is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or holds when any predicate holds. Empty is false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Literal is a constant predicate.
type Literal struct {
	Value bool
}

func (Literal) predicateNode() {}

// Collections maps metadata root names to plan collection names.
var Collections = map[ir.URI]string{
	metadata.RootObservables:           "observables",
	metadata.RootObservers:             "observers",
	metadata.RootStreamFactories:       "stream_factories",
	metadata.RootSubscriptionFactories: "subscription_factories",
	metadata.RootSubscriptions:         "subscriptions",
	metadata.RootStreams:               "streams",
}

// Fields lists the definition fields a plan can reference, and whether
// they can be compared against literals.
var Fields = map[string]bool{
	metadata.FieldURI:        true,
	metadata.FieldExpression: false,
	metadata.FieldState:      false,
}
