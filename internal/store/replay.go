package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rxq/internal/engine"
)

// ReplayOptions selects which part of the journal to replay.
type ReplayOptions struct {
	// AfterSeq skips entries with seq <= AfterSeq.
	AfterSeq int64
	// Constraint is a semver constraint on the journaled IR version.
	// Entries that do not satisfy it are skipped. Empty replays everything.
	Constraint string
	Logger     *slog.Logger
}

// Replay re-dispatches journaled operations, in seq order, to target. Each
// operation carries its original seq (engine.SeqFrom), so replaying into
// another Store reproduces the journal and replaying twice is a no-op.
func (s *Store) Replay(ctx context.Context, target engine.Engine, opts ReplayOptions) (engine.ReplayResult, error) {
	if target == nil {
		return engine.ReplayResult{}, fmt.Errorf("replay: target engine is nil")
	}
	entries, err := s.ReadJournal(ctx, opts.AfterSeq)
	if err != nil {
		return engine.ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	res, err := engine.Replay(ctx, entries, target, opts.Constraint, opts.Logger)
	if res.LastSeq == 0 {
		res.LastSeq = opts.AfterSeq
	}
	return res, err
}
