package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subscriptionScenario = `name: ticker_subscription
description: "create then delete"
operations:
  - kind: CreateSubscription
    id: rx://subscriptions/s1
    expr:
      node: free
      name: rx://observables/ticker
      type: Observable<int>
  - kind: DeleteSubscription
    id: rx://subscriptions/s1
assertions:
  - type: order
    kinds: [CreateSubscription, DeleteSubscription]
`

const notificationScenario = `name: notifications
operations:
  - kind: ObserverOnNext
    id: rx://observers/o
    value: 1
assertions:
  - type: count
    kind: ObserverOnNext
    count: 3
`

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestTestCommand_PassAndGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "01_sub.yaml", subscriptionScenario)

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS ticker_subscription")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	_, err = execute(t, "test", dir, "--update")
	require.NoError(t, err)
	golden := filepath.Join(dir, "01_sub.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), "CreateSubscription")

	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("stale\n"), 0o644))
	out, err = execute(t, "test", dir)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "snapshot differs from 01_sub.golden")
}

func TestTestCommand_FailingAssertion(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "01_sub.yaml", subscriptionScenario)
	writeScenario(t, dir, "02_notify.yml", notificationScenario)

	out, err := execute(t, "test", dir, "--format", "json")
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 2)
	assert.False(t, resp.Data.Scenarios[1].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[1].Errors)
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "01_sub.yaml", subscriptionScenario)
	writeScenario(t, dir, "02_notify.yml", notificationScenario)

	out, err := execute(t, "test", dir, "--filter", "01_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")

	out, err = execute(t, "test", dir, "--filter", "zz*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFiles_Sorted(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yml", "")
	writeScenario(t, dir, "a.yaml", "")
	writeScenario(t, dir, "notes.txt", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)
}
