package harness

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// SequentialAssertionProvider is an engine that asserts the operations it
// receives against a queue of expectations, in order.
//
// It is not safe for concurrent use; the compiler dispatches from the
// goroutine running the terminal action.
type SequentialAssertionProvider struct {
	t        TB
	expected []Expectation
	next     int
	failure  *MismatchError
	closed   bool
	logger   *slog.Logger
}

// New returns a provider expecting ops in order. Leftover expectations
// fail t when the test finishes.
func New(t TB, ops ...operation.Operation) *SequentialAssertionProvider {
	return NewWithExpectations(t, Expect(ops...)...)
}

// NewWithExpectations is like New with explicit replies.
func NewWithExpectations(t TB, expected ...Expectation) *SequentialAssertionProvider {
	p := &SequentialAssertionProvider{
		t:        t,
		expected: expected,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// WithLogger sets a logger that receives every comparison.
func (p *SequentialAssertionProvider) WithLogger(l *slog.Logger) *SequentialAssertionProvider {
	if l != nil {
		p.logger = l
	}
	return p
}

// Dispatch implements engine.Engine.
func (p *SequentialAssertionProvider) Dispatch(ctx context.Context, op operation.Operation) (ir.Value, error) {
	p.t.Helper()
	if p.failure != nil {
		return nil, p.failure
	}

	idx := p.next
	if idx >= len(p.expected) {
		return nil, p.fail(&MismatchError{Index: idx, Actual: op})
	}
	exp := p.expected[idx]
	if d := operation.Diff(exp.Op, op); d != "" {
		return nil, p.fail(&MismatchError{
			Index:    idx,
			Expected: exp.Op,
			Actual:   op,
			Diff:     d,
			Detail:   encodedDiff(exp.Op, op),
		})
	}

	p.next++
	p.logger.Debug("operation matched", "index", idx, "kind", op.Kind(), "id", op.Target())
	if exp.Err != nil {
		return nil, exp.Err
	}
	return exp.Result, nil
}

func (p *SequentialAssertionProvider) fail(err *MismatchError) error {
	p.t.Helper()
	p.failure = err
	p.t.Errorf("%v", err)
	return err
}

// Close reports expectations that were never dispatched. It is called
// automatically at the end of the test and is safe to call more than once.
func (p *SequentialAssertionProvider) Close() error {
	if p.closed {
		return p.Err()
	}
	p.closed = true
	if p.failure != nil || p.next >= len(p.expected) {
		return p.Err()
	}
	p.t.Helper()
	return p.fail(&MismatchError{
		Index:     p.next,
		Expected:  p.expected[p.next].Op,
		Remaining: len(p.expected) - p.next,
	})
}

// Err returns the first failure, or nil.
func (p *SequentialAssertionProvider) Err() error {
	if p.failure == nil {
		return nil
	}
	return p.failure
}

// Dispatched returns the number of matched operations.
func (p *SequentialAssertionProvider) Dispatched() int { return p.next }

// Remaining returns the number of expectations not yet dispatched.
func (p *SequentialAssertionProvider) Remaining() int { return len(p.expected) - p.next }
