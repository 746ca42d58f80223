package queryir

import (
	"errors"
	"fmt"
)

// Validate checks a plan against the collection and field tables. Plans
// built by Plan always validate; hand-built plans may not.
//
// All problems are reported together. Validate is a pure function.
func Validate(q Query) error {
	v := &validator{}
	v.validateQuery(q)
	return errors.Join(v.problems...)
}

// validator accumulates problems during traversal.
type validator struct {
	problems []error
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Errorf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case Join:
		v.validateJoin(query)
	case Aggregate:
		switch query.Func {
		case AggCount, AggAny, AggFirst:
		default:
			v.addProblem("unknown aggregate %q", query.Func)
		}
		if _, nested := query.Source.(Aggregate); nested {
			v.addProblem("aggregate over aggregate")
			return
		}
		v.validateQuery(query.Source)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	if !knownCollection(sel.From) {
		v.addProblem("unknown collection %q", sel.From)
	}
	if sel.Project != "" {
		v.validateField(sel.Project)
	}
	v.validateLimit(sel.Limit)
	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}
}

func (v *validator) validateJoin(j Join) {
	for _, side := range []Select{j.Left, j.Right} {
		if side.Project != "" || side.Limit != NoLimit {
			v.addProblem("join input %q must not project or limit", side.From)
		}
		v.validateSelect(side)
	}
	v.validateField(j.LeftKey)
	v.validateField(j.RightKey)
	if j.Project != "" {
		v.validateField(j.Project)
	}
	v.validateLimit(j.Limit)
}

func (v *validator) validateLimit(n int64) {
	if n < NoLimit {
		v.addProblem("invalid limit %d", n)
	}
}

func (v *validator) validateField(name string) {
	if _, ok := Fields[name]; !ok {
		v.addProblem("unknown field %q", name)
	}
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case Compare:
		orderable, ok := Fields[pred.Field]
		switch {
		case !ok:
			v.addProblem("unknown field %q", pred.Field)
		case !orderable:
			v.addProblem("field %q is not comparable", pred.Field)
		}
		if _, ok := flipped[pred.Op]; !ok {
			v.addProblem("unknown operator %q", pred.Op)
		}
		if pred.Value == nil {
			v.addProblem("comparison on %q has no value", pred.Field)
		}
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Not:
		v.validatePredicate(pred.Predicate)
	case Literal:
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func knownCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}
