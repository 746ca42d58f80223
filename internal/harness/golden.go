package harness

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rxq/internal/engine"
	"github.com/roach88/rxq/internal/ir"
	"github.com/roach88/rxq/internal/operation"
)

// Recorder is an engine that keeps every dispatched operation. It is safe
// for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	ops  []operation.Operation
	seqs []int64

	// Reply, when set, computes the result of each dispatch.
	Reply func(operation.Operation) (ir.Value, error)
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Dispatch implements engine.Engine.
func (r *Recorder) Dispatch(ctx context.Context, op operation.Operation) (ir.Value, error) {
	seq, _ := engine.SeqFrom(ctx)
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.seqs = append(r.seqs, seq)
	reply := r.Reply
	r.mu.Unlock()
	if reply != nil {
		return reply(op)
	}
	return nil, nil
}

// Operations returns a copy of the recorded operations.
func (r *Recorder) Operations() []operation.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]operation.Operation(nil), r.ops...)
}

// Seqs returns the dispatcher sequence numbers, 0 when dispatched directly.
func (r *Recorder) Seqs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.seqs...)
}

// Kinds returns the kinds of the recorded operations.
func (r *Recorder) Kinds() []operation.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]operation.Kind, len(r.ops))
	for i, op := range r.ops {
		out[i] = op.Kind()
	}
	return out
}

// Reset drops everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
	r.seqs = nil
}

// Snapshot renders ops as canonical JSON, one operation per line.
func Snapshot(ops []operation.Operation) ([]byte, error) {
	lines := make([]string, len(ops))
	for i, op := range ops {
		b, err := operation.Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		lines[i] = string(b)
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

// AssertGolden compares the snapshot of ops with
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func AssertGolden(t *testing.T, name string, ops []operation.Operation) {
	t.Helper()

	data, err := Snapshot(ops)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
