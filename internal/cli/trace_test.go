package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seamlang/seam/internal/ir"
	"github.com/seamlang/seam/internal/tracefilter"
)

// seedDatabase runs the pipeline module once and persists the trace.
func seedDatabase(t *testing.T, token string) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "seam.db")

	buf := &bytes.Buffer{}
	cmd := newRunCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/pipeline.cue", "--db", dbPath, "--token", token})
	require.NoError(t, cmd.Execute())

	return dbPath
}

func newTraceCmd(buf *bytes.Buffer, format string) *cobra.Command {
	rootOpts := &RootOptions{Format: format}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd
}

func TestTraceRequiresDatabaseFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newTraceCmd(buf, "text")
	cmd.SetArgs([]string{"--run", "run-x"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestTraceListsRunsWithoutToken(t *testing.T) {
	dbPath := seedDatabase(t, "run-list")

	buf := &bytes.Buffer{}
	cmd := newTraceCmd(buf, "text")
	cmd.SetArgs([]string{"--db", dbPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "1 run(s):")
	assert.Contains(t, output, "run-list")
	assert.Contains(t, output, "pipeline.main")
}

func TestTraceFullTimeline(t *testing.T) {
	dbPath := seedDatabase(t, "run-full")

	buf := &bytes.Buffer{}
	cmd := newTraceCmd(buf, "text")
	cmd.SetArgs([]string{"--db", dbPath, "--run", "run-full"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Run run-full: 9 event(s)")
	assert.Contains(t, output, "HANDOFF_OUT")
	assert.Contains(t, output, "HANDOFF_BACK")
	assert.Contains(t, output, "(ctx-main -> ctx-io)")
}

func TestTraceKindFilter(t *testing.T) {
	dbPath := seedDatabase(t, "run-kind")

	buf := &bytes.Buffer{}
	cmd := newTraceCmd(buf, "json")
	cmd.SetArgs([]string{"--db", dbPath, "--run", "run-kind", "--kind", "RESUME"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string      `json:"status"`
		Data   TraceOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Events, 3)
	for _, ev := range resp.Data.Events {
		assert.Equal(t, ir.TraceResume, ev.Kind)
	}
}

func TestTraceRejectsUnknownKind(t *testing.T) {
	dbPath := seedDatabase(t, "run-bad-kind")

	buf := &bytes.Buffer{}
	cmd := newTraceCmd(buf, "text")
	cmd.SetArgs([]string{"--db", dbPath, "--run", "run-bad-kind", "--kind", "TELEPORT"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), `unknown event kind "TELEPORT"`)
}

func TestTraceCombinedFilters(t *testing.T) {
	dbPath := seedDatabase(t, "run-combined")

	buf := &bytes.Buffer{}
	cmd := newTraceCmd(buf, "json")
	cmd.SetArgs([]string{
		"--db", dbPath, "--run", "run-combined",
		"--context", "ctx-io", "--kind", "RESUME",
	})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Data TraceOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Events, 1)
	assert.Equal(t, "ctx-io", resp.Data.Events[0].To)
}

func TestTraceSeqWindow(t *testing.T) {
	dbPath := seedDatabase(t, "run-window")

	buf := &bytes.Buffer{}
	cmd := newTraceCmd(buf, "json")
	cmd.SetArgs([]string{"--db", dbPath, "--run", "run-window", "--since", "3", "--until", "5"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Data TraceOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Data.Events, 3)
	assert.Equal(t, int64(3), resp.Data.Events[0].Seq)
	assert.Equal(t, int64(5), resp.Data.Events[2].Seq)
}

func TestTraceNoMatches(t *testing.T) {
	dbPath := seedDatabase(t, "run-empty")

	buf := &bytes.Buffer{}
	cmd := newTraceCmd(buf, "text")
	cmd.SetArgs([]string{"--db", dbPath, "--run", "run-empty", "--kind", "CANCEL"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No events for run run-empty match the filter")
}

func TestBuildFilter(t *testing.T) {
	f, err := buildFilter(&TraceOptions{})
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = buildFilter(&TraceOptions{Kind: "CALL"})
	require.NoError(t, err)
	assert.Equal(t, tracefilter.KindIs{Kind: ir.TraceCall}, f)

	f, err = buildFilter(&TraceOptions{Kind: "CALL", Since: 2, Until: 8})
	require.NoError(t, err)
	and, ok := f.(tracefilter.And)
	require.True(t, ok)
	assert.Len(t, and.Filters, 3)
}

func TestFormatTraceEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	formatTraceEvent(buf, ir.TraceEvent{
		Seq: 4, Kind: ir.TraceHandoffOut,
		Func: "fetch(url: Str) async -> Str",
		From: "ctx-main", To: "ctx-io",
	})
	assert.Equal(t, "  [4] HANDOFF_OUT fetch(url: Str) async -> Str (ctx-main -> ctx-io)\n", buf.String())

	buf.Reset()
	formatTraceEvent(buf, ir.TraceEvent{Seq: 2, Kind: ir.TraceResume, Func: "main() async -> Str", To: "ctx-main"})
	assert.Equal(t, "  [2] RESUME main() async -> Str (-> ctx-main)\n", buf.String())
}
