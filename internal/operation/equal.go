package operation

import (
	"fmt"

	"github.com/roach88/rxq/internal/ir"
)

// Equal reports whether a and b are the same operation: same kind, same
// identifier, equal state or value by content, and structurally equal
// expressions.
func Equal(a, b Operation) bool {
	return Diff(a, b) == ""
}

// Diff describes the first difference between a and b, or returns "".
func Diff(a, b Operation) string {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return ""
		}
		return fmt.Sprintf("operation: %v vs %v", kindOf(a), kindOf(b))
	}
	if a.Kind() != b.Kind() {
		return fmt.Sprintf("kind: %s vs %s", a.Kind(), b.Kind())
	}
	if a.Target() != b.Target() {
		return fmt.Sprintf("id: %s vs %s", a.Target(), b.Target())
	}
	if !ir.ValueEqual(State(a), State(b)) {
		return fmt.Sprintf("state: %s vs %s", formatValue(State(a)), formatValue(State(b)))
	}
	switch x := a.(type) {
	case ObserverOnNext:
		y := b.(ObserverOnNext)
		if !ir.ValueEqual(x.Value, y.Value) {
			return fmt.Sprintf("value: %s vs %s", formatValue(x.Value), formatValue(y.Value))
		}
	case ObserverOnError:
		y := b.(ObserverOnError)
		if x.Message != y.Message {
			return fmt.Sprintf("error: %q vs %q", x.Message, y.Message)
		}
	}
	if d := ir.Diff(Expression(a), Expression(b)); d != "" {
		return "expr" + d[1:]
	}
	return ""
}

func kindOf(op Operation) string {
	if op == nil {
		return "<nil>"
	}
	return string(op.Kind())
}

func formatValue(v ir.Value) string {
	b, err := ir.MarshalCanonical(ir.OrNull(v))
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

// Format renders op on one line for logs and diagnostics.
func Format(op Operation) string {
	if op == nil {
		return "<nil>"
	}
	s := string(op.Kind())
	if id := op.Target(); id != "" {
		s += " " + string(id)
	}
	if e := Expression(op); e != nil {
		s += " " + ir.Format(e)
	}
	switch o := op.(type) {
	case ObserverOnNext:
		s += " " + formatValue(o.Value)
	case ObserverOnError:
		s += fmt.Sprintf(" %q", o.Message)
	}
	if st := State(op); !ir.IsNull(st) {
		s += " state=" + formatValue(st)
	}
	return s
}
