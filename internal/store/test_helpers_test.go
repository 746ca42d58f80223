package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var intObservable = ir.ObservableOf(ir.TypeInt)

func ticker() ir.Expr {
	return ir.Free("rx://observables/ticker", intObservable)
}

// newOp builds a validated operation.
func newOp(t *testing.T, kind operation.Kind, id ir.URI, expr ir.Expr, state ir.Value) operation.Operation {
	t.Helper()
	op, err := operation.New(kind, id, expr, state)
	require.NoError(t, err)
	return op
}

func defineObservable(t *testing.T, id ir.URI, state ir.Value) operation.Operation {
	return newOp(t, operation.KindDefineObservable, id, ticker(), state)
}

func createSubscription(t *testing.T, id ir.URI) operation.Operation {
	return newOp(t, operation.KindCreateSubscription, id, ticker(), nil)
}

func onNext(id ir.URI, v int64) operation.Operation {
	return operation.ObserverOnNext{ID: id, Value: ir.Int(v)}
}
