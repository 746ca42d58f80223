package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/metadata"
	"github.com/roach88/rxq/internal/operation"
	"github.com/roach88/rxq/internal/queryir"
)

// Sentinel errors for errors.Is matching.
var (
	// ErrConflict: a different operation is already journaled at this seq.
	ErrConflict = errors.New("conflicting operation at seq")
	// ErrExists: a create or define names a URI that is already live.
	ErrExists = errors.New("resource already exists")
	// ErrNotFound: a delete or undefine names a URI that is not live.
	ErrNotFound = errors.New("resource not found")
)

// rootOf maps catalog-changing kinds to the metadata collection they touch.
var rootOf = map[operation.Kind]ir.URI{
	operation.KindDefineObservable:            metadata.RootObservables,
	operation.KindUndefineObservable:          metadata.RootObservables,
	operation.KindDefineObserver:              metadata.RootObservers,
	operation.KindUndefineObserver:            metadata.RootObservers,
	operation.KindDefineStreamFactory:         metadata.RootStreamFactories,
	operation.KindUndefineStreamFactory:       metadata.RootStreamFactories,
	operation.KindDefineSubscriptionFactory:   metadata.RootSubscriptionFactories,
	operation.KindUndefineSubscriptionFactory: metadata.RootSubscriptionFactories,
	operation.KindCreateSubscription:          metadata.RootSubscriptions,
	operation.KindDeleteSubscription:          metadata.RootSubscriptions,
	operation.KindCreateStream:                metadata.RootStreams,
	operation.KindDeleteStream:                metadata.RootStreams,
}

// CollectionOf returns the resources collection a kind writes, if any.
func CollectionOf(kind operation.Kind) (string, bool) {
	root, ok := rootOf[kind]
	if !ok {
		return "", false
	}
	return queryir.Collections[root], true
}

// Dispatch implements engine.Engine.
//
// Metadata queries are answered from the catalog. Every other operation is
// appended at the dispatcher's seq (engine.SeqFrom); without one the store
// assigns the next seq after its last entry.
func (s *Store) Dispatch(ctx context.Context, op operation.Operation) (ir.Value, error) {
	if q, ok := op.(operation.MetadataQuery); ok {
		return s.Query(ctx, q.Expr)
	}
	seq, _ := engine.SeqFrom(ctx)
	if _, err := s.Append(ctx, seq, op); err != nil {
		return nil, err
	}
	return ir.Null{}, nil
}

// Append journals op at seq and applies it to the catalog atomically.
// seq <= 0 means "next after the last entry". Returns the seq used.
//
// Uses ON CONFLICT(seq) DO NOTHING for idempotency: the same operation at
// the same seq is accepted once and ignored afterwards.
func (s *Store) Append(ctx context.Context, seq int64, op operation.Operation) (int64, error) {
	if op == nil {
		return 0, operation.Required("operation")
	}
	if op.Kind() == operation.KindMetadataQuery {
		return 0, fmt.Errorf("append: metadata queries are not journaled")
	}
	body, err := operation.Marshal(op)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}
	opID, err := operation.ID(op)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if seq <= 0 {
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM operations`).Scan(&seq); err != nil {
			return 0, fmt.Errorf("append: next seq: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO operations
		(seq, op_id, kind, target, body, ir_version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		seq,
		opID,
		string(op.Kind()),
		string(op.Target()),
		string(body),
		ir.IRVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("append: insert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("append: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Redelivery: accept only the operation already journaled here.
		var existing string
		if err := tx.QueryRowContext(ctx, `SELECT op_id FROM operations WHERE seq = ?`, seq).Scan(&existing); err != nil {
			return 0, fmt.Errorf("append: select existing: %w", err)
		}
		if existing != opID {
			return 0, fmt.Errorf("%w %d: journaled %s, got %s", ErrConflict, seq, existing[:12], opID[:12])
		}
		return seq, nil
	}

	if err := applyToCatalog(ctx, tx, seq, op); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append: commit: %w", err)
	}
	return seq, nil
}

// applyToCatalog creates or removes the resource row op names.
// Observer notifications leave the catalog untouched.
func applyToCatalog(ctx context.Context, tx *sql.Tx, seq int64, op operation.Operation) error {
	collection, ok := CollectionOf(op.Kind())
	if !ok {
		return nil
	}
	uri := string(op.Target())

	if !operation.HasDefinition(op.Kind()) {
		result, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE uri = ? AND collection = ?`, uri, collection)
		if err != nil {
			return fmt.Errorf("apply %s: %w", op.Kind(), err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("apply %s: rows affected: %w", op.Kind(), err)
		}
		if n == 0 {
			return fmt.Errorf("%s: %w: %s in %s", op.Kind(), ErrNotFound, uri, collection)
		}
		return nil
	}

	exprJSON, err := marshalExpr(operation.Expression(op))
	if err != nil {
		return fmt.Errorf("apply %s: %w", op.Kind(), err)
	}
	stateJSON, err := marshalState(operation.State(op))
	if err != nil {
		return fmt.Errorf("apply %s: %w", op.Kind(), err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO resources
		(uri, collection, expr, state, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO NOTHING
	`, uri, collection, exprJSON, stateJSON, seq)
	if err != nil {
		return fmt.Errorf("apply %s: %w", op.Kind(), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply %s: rows affected: %w", op.Kind(), err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w: %s", op.Kind(), ErrExists, uri)
	}
	return nil
}
