package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tickerCatalog = `
package ops

binding: where: {
	member:    "method"
	declaring: "Observable"
	name:      "Where"
	params: ["Observable<T>", "Func<T, bool>"]
	result: "Observable<T>"
	uri:    "rx://operators/where"
}

binding: ticker: {
	member:    "property"
	declaring: "Context"
	name:      "Ticker"
	result:    "Observable<int>"
	uri:       "rx://observables/ticker"
}

resource: ticker: {
	kind: "observable"
	uri:  "rx://observables/ticker"
	type: "Observable<int>"
}
`

func writeCatalog(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ops.cue"), []byte(src), 0o644))
	return dir
}

func TestCatalog_Valid(t *testing.T) {
	dir := writeCatalog(t, tickerCatalog)

	out, err := execute(t, "catalog", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "2 binding(s), 1 resource(s)")
	assert.Contains(t, out, "rx://observables/ticker")
}

func TestCatalog_JSONWithoutBuiltins(t *testing.T) {
	dir := writeCatalog(t, tickerCatalog)

	out, err := execute(t, "catalog", dir, "--no-builtins", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CatalogReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Registered)
	require.Len(t, resp.Data.Bindings, 2)
	assert.Equal(t, "ticker", resp.Data.Bindings[0].Name)
	assert.Equal(t, "Observable<int>", resp.Data.Bindings[0].Type)
	assert.Equal(t, "where", resp.Data.Bindings[1].Name)
}

func TestCatalog_ConflictWithBuiltins(t *testing.T) {
	dir := writeCatalog(t, `
package ops

binding: filter: {
	member:    "method"
	declaring: "Observable"
	name:      "Where"
	params: ["Observable<T>", "Func<T, bool>"]
	result: "Observable<T>"
	uri:    "rx://operators/filter"
}
`)
	out, err := execute(t, "catalog", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")

	// Without builtins the same catalog registers cleanly.
	_, err = execute(t, "catalog", dir, "--no-builtins")
	assert.NoError(t, err)
}

func TestCatalog_ValidationErrors(t *testing.T) {
	dir := writeCatalog(t, `
package ops

resource: bad: {
	kind: "gizmo"
	uri:  "not a uri"
	type: "Observable<int>"
}
`)
	out, err := execute(t, "catalog", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCatalog, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "2 validation error(s)")
}

func TestCatalog_MissingDir(t *testing.T) {
	_, err := execute(t, "catalog", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestWatchCatalog_DebouncesChanges(t *testing.T) {
	dir := writeCatalog(t, tickerCatalog)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- watchCatalog(ctx, dir, 50*time.Millisecond, discardLogger(), func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.cue"), []byte("package ops\n"), 0o644))
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.Empty(t, changed, "burst should collapse into one notification")
}
