package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rxq/internal/store"
)

func replayJSON(t *testing.T, args ...string) ReplayReport {
	t.Helper()
	out, err := execute(t, append([]string{"replay", "--format", "json"}, args...)...)
	require.NoError(t, err)
	var resp struct {
		Data ReplayReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestReplay_IntoSecondJournal(t *testing.T) {
	src := seedJournal(t)
	dst := filepath.Join(t.TempDir(), "copy.db")

	r := replayJSON(t, "--db", src, "--into", dst)
	assert.Equal(t, 4, r.Replayed)
	assert.Equal(t, int64(4), r.LastSeq)
	assert.Equal(t, dst, r.Target)
	assert.Nil(t, r.Metrics)

	// Same seqs and operations: a second replay is accepted unchanged.
	r = replayJSON(t, "--db", src, "--into", dst)
	assert.Equal(t, 4, r.Replayed)

	st, err := store.Open(dst)
	require.NoError(t, err)
	defer st.Close()
	entries, err := st.ReadJournal(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestReplay_AfterConstraintAndMetrics(t *testing.T) {
	src := seedJournal(t)
	dst := filepath.Join(t.TempDir(), "copy.db")
	cfg := filepath.Join(t.TempDir(), "rxq.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("metrics:\n  enabled: true\n"), 0o644))

	replayJSON(t, "--db", src, "--into", dst)
	r := replayJSON(t, "--config", cfg, "--db", src, "--into", dst, "--after", "2")
	assert.Equal(t, 2, r.Replayed)
	require.Len(t, r.Metrics, 2)
	assert.Equal(t, "DeleteSubscription", r.Metrics[0].Kind)
	assert.Equal(t, "ObserverOnNext", r.Metrics[1].Kind)

	r = replayJSON(t, "--db", src, "--into", filepath.Join(t.TempDir(), "none.db"), "--constraint", ">= 2.0")
	assert.Equal(t, 0, r.Replayed)
	assert.Equal(t, 4, r.Skipped)
}

func TestReplay_TargetRejects(t *testing.T) {
	src := seedJournal(t)
	dst := filepath.Join(t.TempDir(), "copy.db")

	// Starting after the create leaves the delete without a subscription.
	out, err := execute(t, "replay", "--db", src, "--into", dst, "--after", "3")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestReplay_RequiresDB(t *testing.T) {
	_, err := execute(t, "replay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
