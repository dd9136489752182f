package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seamlang/seam/internal/store"
)

func newReplayCmd(buf *bytes.Buffer, format string) *cobra.Command {
	rootOpts := &RootOptions{Format: format}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd
}

func TestReplayMatchingRun(t *testing.T) {
	dbPath := seedDatabase(t, "run-replay")

	buf := &bytes.Buffer{}
	cmd := newReplayCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/pipeline.cue", "--db", dbPath, "--run", "run-replay"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ run-replay: 9 event(s) reproduced")
	assert.Contains(t, output, "Verified 1 run(s)")
}

func TestReplayAllStoredRuns(t *testing.T) {
	dbPath := seedDatabase(t, "run-first")

	// Store a second run in the same database.
	buf := &bytes.Buffer{}
	cmd := newRunCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/pipeline.cue", "--db", dbPath, "--token", "run-second"})
	require.NoError(t, cmd.Execute())

	buf = &bytes.Buffer{}
	cmd = newReplayCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/pipeline.cue", "--db", dbPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "✓ run-first")
	assert.Contains(t, output, "✓ run-second")
	assert.Contains(t, output, "Verified 2 run(s)")
}

func TestReplayDetectsTampering(t *testing.T) {
	dbPath := seedDatabase(t, "run-tampered")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().Exec(
		`UPDATE trace_events SET func = 'evil() -> Str' WHERE run_token = ? AND seq = 4`,
		"run-tampered")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	cmd := newReplayCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/pipeline.cue", "--db", dbPath, "--run", "run-tampered"})

	err = cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "✗ run-tampered: trace diverged")
	assert.Contains(t, output, "1 of 1 run(s) diverged")
}

func TestReplayRefusesChangedProgram(t *testing.T) {
	dbPath := seedDatabase(t, "run-changed")

	buf := &bytes.Buffer{}
	cmd := newReplayCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/add.cue", "--db", dbPath, "--run", "run-changed"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "does not match stored")
}

func TestReplayUnknownRun(t *testing.T) {
	dbPath := seedDatabase(t, "run-known")

	buf := &bytes.Buffer{}
	cmd := newReplayCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/pipeline.cue", "--db", dbPath, "--run", "run-ghost"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E006]")
}

func TestReplayJSONOutput(t *testing.T) {
	dbPath := seedDatabase(t, "run-json-replay")

	buf := &bytes.Buffer{}
	cmd := newReplayCmd(buf, "json")
	cmd.SetArgs([]string{"testdata/pipeline.cue", "--db", dbPath})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string          `json:"status"`
		Data   []ReplayOutcome `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "run-json-replay", resp.Data[0].Token)
	assert.True(t, resp.Data[0].Match)
	assert.Equal(t, 9, resp.Data[0].Events)
}
