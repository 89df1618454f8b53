package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cycle/internal/store"
	"github.com/roach88/cycle/internal/trace"
)

// recordRun runs a scenario into dbPath and returns its loop ID.
func recordRun(t *testing.T, scenarioPath, dbPath string) string {
	t.Helper()
	out, _, err := execute(NewRunCommand(&RootOptions{Format: "json"}), scenarioPath, "--db", dbPath)
	require.NoError(t, err)

	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data.LoopID
}

func TestTraceCommandRequiresDB(t *testing.T) {
	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

func TestTraceCommandMissingDatabase(t *testing.T) {
	_, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
}

func TestTraceCommandEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cycle.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No loops recorded.")
}

func TestTraceCommandListsLoops(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cycle.db")
	first := recordRun(t, writeScenario(t, dir, "greet.yaml", appendScenario), dbPath)
	second := recordRun(t, writeScenario(t, dir, "counter.yaml", counterScenario), dbPath)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, first)
	assert.Contains(t, out, second)
	assert.Contains(t, out, "disposed")

	out, _, err = execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.NoError(t, err)
	var resp struct {
		Data LoopList `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Loops, 2)

	// UUIDv7 IDs sort by creation time.
	assert.Equal(t, first, resp.Data.Loops[0].ID)
	assert.Equal(t, second, resp.Data.Loops[1].ID)
}

func TestTraceCommandShowsLoop(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cycle.db")
	id := recordRun(t, writeScenario(t, dir, "counter.yaml", counterScenario), dbPath)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--loop", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Loop "+id+" (disposed)")
	assert.Contains(t, out, `start: model="1" effects=[]`)
	assert.Contains(t, out, `#1 event="dec" model="0" effects=[]`)
	assert.Contains(t, out, `#2 event="dec" unchanged effects=["underflow"]`)
	assert.Contains(t, out, "Models (2):")
	assert.Contains(t, out, "Fingerprint: ")
}

func TestTraceCommandShowsLoopJSON(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cycle.db")
	id := recordRun(t, writeScenario(t, dir, "greet.yaml", appendScenario), dbPath)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--loop", id)
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, trace.StatusDisposed, resp.Data.Loop.Status)
	require.Len(t, resp.Data.Transitions, 2)
	assert.True(t, resp.Data.Transitions[1].Changed)

	models := make([]string, len(resp.Data.Models))
	for i, raw := range resp.Data.Models {
		require.NoError(t, json.Unmarshal(raw, &models[i]))
	}
	assert.Equal(t, []string{"a", "a1", "a12"}, models)

	want, err := trace.Fingerprint(resp.Data.Transitions)
	require.NoError(t, err)
	assert.Equal(t, want, resp.Data.Fingerprint)
}

func TestTraceCommandUnknownLoop(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cycle.db")
	recordRun(t, writeScenario(t, dir, "greet.yaml", appendScenario), dbPath)

	out, _, err := execute(NewTraceCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--loop", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLoopNotFound, resp.Error.Code)
}
