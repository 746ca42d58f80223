package harness

import (
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// TB is the subset of testing.TB the harness reports through.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	Cleanup(func())
}

// Expectation is one queued operation and the reply the provider returns
// when it matches.
type Expectation struct {
	Op operation.Operation

	// Result is returned to the caller, e.g. the rows of a MetadataQuery.
	Result ir.Value

	// Err is returned instead of Result, to exercise engine failures.
	Err error
}

// Expect wraps ops as expectations with no reply.
func Expect(ops ...operation.Operation) []Expectation {
	out := make([]Expectation, len(ops))
	for i, op := range ops {
		out[i] = Expectation{Op: op}
	}
	return out
}
