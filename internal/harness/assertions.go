package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/rxq/internal/operation"
)

// MismatchError reports the first operation that diverged from the
// expected sequence.
//
// Expected is nil when more operations were dispatched than expected, and
// Actual is nil when fewer were.
type MismatchError struct {
	Index    int
	Expected operation.Operation
	Actual   operation.Operation

	// Diff names the first differing field, e.g. "expr.args[1].body: ...".
	Diff string

	// Detail is a cmp diff of the two encoded operations.
	Detail string

	// Remaining counts the expectations left undispatched.
	Remaining int
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	var buf strings.Builder
	switch {
	case e.Expected == nil:
		fmt.Fprintf(&buf, "operation %d: too many operations: unexpected %s", e.Index, operation.Format(e.Actual))
	case e.Actual == nil:
		fmt.Fprintf(&buf, "operation %d: too few operations: %d expected operation(s) not dispatched, next %s",
			e.Index, e.Remaining, operation.Format(e.Expected))
	default:
		fmt.Fprintf(&buf, "operation %d: mismatch at %s\n", e.Index, e.Diff)
		fmt.Fprintf(&buf, "  expected: %s\n", operation.Format(e.Expected))
		fmt.Fprintf(&buf, "  actual:   %s", operation.Format(e.Actual))
		if e.Detail != "" {
			fmt.Fprintf(&buf, "\n(-expected +actual):\n%s", e.Detail)
		}
	}
	return buf.String()
}

// IsMismatch reports whether err is or wraps a MismatchError.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// encodedDiff compares the canonical encodings of a and b. Operations that
// cannot be encoded yield no detail.
func encodedDiff(a, b operation.Operation) string {
	ea, err := operation.Encode(a)
	if err != nil {
		return ""
	}
	eb, err := operation.Encode(b)
	if err != nil {
		return ""
	}
	return cmp.Diff(ea, eb)
}

// Assertion checks a property of a dispatched sequence.
type Assertion struct {
	// Type is one of AssertContains, AssertOrder, AssertCount.
	Type string `yaml:"type"`

	// Kind is the operation kind (contains, count).
	Kind string `yaml:"kind,omitempty"`

	// ID optionally narrows contains to one target.
	ID string `yaml:"id,omitempty"`

	// Kinds is the expected relative order (order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of occurrences (count).
	Count int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertContains = "contains"
	AssertOrder    = "order"
	AssertCount    = "count"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Ops      []operation.Operation
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "\ndispatched:\n")
	for i, op := range e.Ops {
		fmt.Fprintf(&buf, "  [%d] %s\n", i, operation.Format(op))
	}
	return buf.String()
}

// Check evaluates a against ops.
func Check(ops []operation.Operation, a Assertion) error {
	switch a.Type {
	case AssertContains:
		return checkContains(ops, a)
	case AssertOrder:
		return checkOrder(ops, a)
	case AssertCount:
		return checkCount(ops, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func matches(op operation.Operation, kind, id string) bool {
	return string(op.Kind()) == kind && (id == "" || string(op.Target()) == id)
}

func checkContains(ops []operation.Operation, a Assertion) error {
	for _, op := range ops {
		if matches(op, a.Kind, a.ID) {
			return nil
		}
	}
	want := a.Kind
	if a.ID != "" {
		want += " " + a.ID
	}
	return &AssertionError{
		Type:     AssertContains,
		Expected: want,
		Actual:   "not dispatched",
		Ops:      ops,
	}
}

func checkOrder(ops []operation.Operation, a Assertion) error {
	pos := 0
	for _, op := range ops {
		if pos < len(a.Kinds) && string(op.Kind()) == a.Kinds[pos] {
			pos++
		}
	}
	if pos == len(a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOrder,
		Expected: strings.Join(a.Kinds, " -> "),
		Actual:   fmt.Sprintf("matched %d of %d, missing %s", pos, len(a.Kinds), a.Kinds[pos]),
		Ops:      ops,
	}
}

func checkCount(ops []operation.Operation, a Assertion) error {
	n := 0
	for _, op := range ops {
		if matches(op, a.Kind, a.ID) {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Expected: fmt.Sprintf("%s x%d", a.Kind, a.Count),
		Actual:   fmt.Sprintf("%s x%d", a.Kind, n),
		Ops:      ops,
	}
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for contains", index)
		}
	case AssertOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for order", index)
		}
	case AssertCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
