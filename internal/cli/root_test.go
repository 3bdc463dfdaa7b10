package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// mustRunCLI is runCLI that fails the test on error.
func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, out)
	return out
}

// decodeResponse parses JSON command output, re-decoding Data into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, data))
	}
	return resp
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "app.db")
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "sqlundo", cmd.Use)
	assert.Contains(t, cmd.Long, "compensating statements")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"}, {"track"}, {"untrack"}, {"exec"},
		{"group", "new"}, {"group", "flatten"}, {"group", "decrement"},
		{"undo"}, {"redo"}, {"discard-redo"}, {"stats"}, {"log"},
		{"migrate"}, {"test"}, {"serve"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "--db", tempDB(t), "--format", "xml", "stats")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestMissingConfig(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "none.yaml"), "stats")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUnopenableDatabase(t *testing.T) {
	_, err := runCLI(t, "--db", filepath.Join(t.TempDir(), "missing", "dir", "app.db"), "stats")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}
