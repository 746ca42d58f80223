package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Resource is one live row of the catalog.
type Resource struct {
	URI        ir.URI
	Collection string
	Expr       ir.Expr
	State      ir.Value
	Seq        int64
}

// ReadJournal returns journal entries with seq > afterSeq, ordered by seq.
//
// Returns an empty slice (not nil) when there are none.
func (s *Store) ReadJournal(ctx context.Context, afterSeq int64) ([]engine.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, body, ir_version
		FROM operations
		WHERE seq > ?
		ORDER BY seq ASC
	`, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []engine.JournalEntry{}
	for rows.Next() {
		var (
			e    engine.JournalEntry
			body string
		)
		if err := rows.Scan(&e.Seq, &body, &e.IRVersion); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if e.Op, err = operation.Unmarshal([]byte(body)); err != nil {
			return nil, fmt.Errorf("decode journal entry %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// LastSeq returns the highest journaled seq, 0 for an empty journal.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM operations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

// CountByKind returns the number of journaled operations per kind.
func (s *Store) CountByKind(ctx context.Context) (map[operation.Kind]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM operations GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count by kind: %w", err)
	}
	defer rows.Close()

	out := make(map[operation.Kind]int64)
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		out[operation.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kind counts: %w", err)
	}
	return out, nil
}

// ReadResource returns the live resource at uri.
// Returns an error wrapping ErrNotFound if there is none.
func (s *Store) ReadResource(ctx context.Context, uri ir.URI) (Resource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uri, collection, expr, state, seq
		FROM resources
		WHERE uri = ?
	`, string(uri))
	r, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Resource{}, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	return r, err
}

// Resources returns the live resources of a collection, ordered by URI.
func (s *Store) Resources(ctx context.Context, collection string) ([]Resource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uri, collection, expr, state, seq
		FROM resources
		WHERE collection = ?
		ORDER BY uri ASC COLLATE BINARY
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	out := []Resource{}
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(sc scanner) (Resource, error) {
	var (
		r     Resource
		uri   string
		expr  string
		state sql.NullString
	)
	if err := sc.Scan(&uri, &r.Collection, &expr, &state, &r.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Resource{}, err
		}
		return Resource{}, fmt.Errorf("scan resource: %w", err)
	}
	r.URI = ir.URI(uri)

	e, err := ir.UnmarshalExpr([]byte(expr))
	if err != nil {
		return Resource{}, fmt.Errorf("decode resource %s: %w", uri, err)
	}
	r.Expr = e
	if r.State, err = unmarshalJSON(state); err != nil {
		return Resource{}, fmt.Errorf("decode resource %s: %w", uri, err)
	}
	return r, nil
}
