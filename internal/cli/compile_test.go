package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCompileCmd(buf *bytes.Buffer, format string) *cobra.Command {
	rootOpts := &RootOptions{Format: format}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd
}

func TestCompileValidModule(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newCompileCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/pipeline.cue"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, `✓ Compiled module "pipeline": 2 function(s), 0 prop(s)`)
	assert.Contains(t, output, "fetch(url: Str) async -> Str")
	assert.Contains(t, output, "main() async -> Str")
	assert.Contains(t, output, "Program hash: ")
}

func TestCompileJSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newCompileCmd(buf, "json")
	cmd.SetArgs([]string{"testdata/add.cue"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "add", resp.Data.Module)
	assert.Equal(t, []string{"add(a: Int, b: Int) -> Int"}, resp.Data.Funcs)
	assert.NotEmpty(t, resp.Data.ProgramHash)
}

func TestCompileMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newCompileCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/does_not_exist.cue"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E003]")
}

func TestCompileInvalidLiteral(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := newCompileCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/broken.cue"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E105]")
}

func TestCompileWritesIRFile(t *testing.T) {
	tmpDir := t.TempDir()
	outFile := filepath.Join(tmpDir, "add.ir.json")

	buf := &bytes.Buffer{}
	cmd := newCompileCmd(buf, "text")
	cmd.SetArgs([]string{"testdata/add.cue", "-o", outFile})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Wrote IR to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var ir map[string]any
	require.NoError(t, json.Unmarshal(data, &ir))
	assert.Equal(t, "add", ir["module"])
}

func TestCompileVerboseLogsToStderr(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json", Verbose: true}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"testdata/add.cue"})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "stdout must stay valid JSON")
	assert.Contains(t, errOut.String(), "Compiled func: add(a: Int, b: Int) -> Int")
}
