package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rxq/internal/operation"
)

// JournalEntry is one operation recorded by a journaling engine.
type JournalEntry struct {
	Seq       int64
	IRVersion string
	Op        operation.Operation
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Replayed int
	Skipped  int
	LastSeq  int64
}

// Replay dispatches entries, in seq order as given, to target.
//
// Entries whose IR version does not satisfy constraint are skipped and
// logged; an empty constraint replays everything. The first engine failure
// stops the replay and is returned together with the partial result.
func Replay(ctx context.Context, entries []JournalEntry, target Engine, constraint string, logger *slog.Logger) (ReplayResult, error) {
	var res ReplayResult
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if e.Seq <= res.LastSeq {
			return res, fmt.Errorf("replay: journal out of order at seq %d (after %d)", e.Seq, res.LastSeq)
		}
		res.LastSeq = e.Seq
		if err := CheckVersion(e.IRVersion, constraint); err != nil {
			logger.Warn("skipping journal entry", "seq", e.Seq, "ir_version", e.IRVersion, "error", err)
			res.Skipped++
			continue
		}
		if _, err := target.Dispatch(WithSeq(ctx, e.Seq), e.Op); err != nil {
			return res, fmt.Errorf("replay seq %d (%s): %w", e.Seq, e.Op.Kind(), err)
		}
		res.Replayed++
	}
	return res, nil
}
