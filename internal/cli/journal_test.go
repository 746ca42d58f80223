package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journalJSON(t *testing.T, args ...string) JournalReport {
	t.Helper()
	out, err := execute(t, append([]string{"journal", "--format", "json"}, args...)...)
	require.NoError(t, err)
	var resp struct {
		Data JournalReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestJournal_ListsEntriesAndCounts(t *testing.T) {
	db := seedJournal(t)

	r := journalJSON(t, "--db", db)
	assert.Equal(t, int64(4), r.LastSeq)
	require.Len(t, r.Entries, 4)
	assert.Equal(t, "DefineObservable", r.Entries[0].Kind)
	assert.Equal(t, "rx://observables/evens", r.Entries[0].Target)
	assert.Equal(t, "1.0.0", r.Entries[0].IRVersion)
	assert.NotEmpty(t, r.Entries[0].OpID)
	assert.Equal(t, int64(1), r.Counts["DeleteSubscription"])
	assert.Nil(t, r.Resources)
}

func TestJournal_Filters(t *testing.T) {
	db := seedJournal(t)

	r := journalJSON(t, "--db", db, "--after", "1", "--limit", "2")
	require.Len(t, r.Entries, 2)
	assert.Equal(t, []int64{2, 3}, []int64{r.Entries[0].Seq, r.Entries[1].Seq})

	r = journalJSON(t, "--db", db, "--kind", "ObserverOnNext")
	require.Len(t, r.Entries, 1)
	assert.Equal(t, "rx://observers/o", r.Entries[0].Target)
}

func TestJournal_Collection(t *testing.T) {
	db := seedJournal(t)

	r := journalJSON(t, "--db", db, "--collection", "observables")
	require.Len(t, r.Resources, 1)
	assert.Equal(t, "rx://observables/evens", r.Resources[0].URI)

	// The subscription was disposed at seq 4.
	r = journalJSON(t, "--db", db, "--collection", "subscriptions")
	assert.Empty(t, r.Resources)
}

func TestJournal_Text(t *testing.T) {
	db := seedJournal(t)

	out, err := execute(t, "journal", "--db", db, "--collection", "observables")
	require.NoError(t, err)
	assert.Contains(t, out, "last seq 4")
	assert.Contains(t, out, "CreateSubscription")
	assert.Contains(t, out, "Live observables: 1")
}

func TestJournal_RejectsUnknownKindAndCollection(t *testing.T) {
	db := seedJournal(t)

	_, err := execute(t, "journal", "--db", db, "--kind", "Explode")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "journal", "--db", db, "--collection", "widgets")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
