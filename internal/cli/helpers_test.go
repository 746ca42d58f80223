package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
	"github.com/roach88/rxq/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tickerExpr() ir.Expr {
	return ir.Free("rx://observables/ticker", ir.ObservableOf(ir.TypeInt))
}

func mustOp(t *testing.T, kind operation.Kind, id ir.URI, expr ir.Expr) operation.Operation {
	t.Helper()
	op, err := operation.New(kind, id, expr, nil)
	require.NoError(t, err)
	return op
}

// seedJournal writes a journal with a definition, a subscription, a
// notification and the subscription's disposal, at seqs 1..4.
func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rxq.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	d, err := engine.NewDispatcher(st)
	require.NoError(t, err)
	for _, op := range []operation.Operation{
		mustOp(t, operation.KindDefineObservable, "rx://observables/evens", tickerExpr()),
		mustOp(t, operation.KindCreateSubscription, "rx://subscriptions/s1", tickerExpr()),
		operation.ObserverOnNext{ID: "rx://observers/o", Value: ir.Int(2)},
		mustOp(t, operation.KindDeleteSubscription, "rx://subscriptions/s1", nil),
	} {
		_, err := d.Dispatch(context.Background(), op)
		require.NoError(t, err)
	}
	return path
}
