package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlundo/internal/history"
)

// setupTrackedDB creates a database with a tracked table
// t(id INTEGER PRIMARY KEY, name TEXT) and returns its path.
func setupTrackedDB(t *testing.T) string {
	t.Helper()
	db := tempDB(t)
	mustRunCLI(t, "--db", db, "exec", "CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)")
	mustRunCLI(t, "--db", db, "track", "t")
	return db
}

func TestInit(t *testing.T) {
	db := tempDB(t)

	out := mustRunCLI(t, "--db", db, "init")
	assert.Equal(t, "Initialized history in "+db+" (group limit 500)\n", out)

	out = mustRunCLI(t, "--db", db, "init", "--group-limit", "0")
	assert.Contains(t, out, "(group limit unbounded)")

	var stats history.Stats
	resp := decodeResponse(t, mustRunCLI(t, "--db", db, "--format", "json", "init", "--group-limit", "25"), &stats)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(25), stats.GroupLimit)
}

func TestTrack(t *testing.T) {
	db := tempDB(t)
	mustRunCLI(t, "--db", db, "exec", "CREATE TABLE a (x)", "CREATE TABLE b (y)")

	out := mustRunCLI(t, "--db", db, "track", "a", "b")
	assert.Equal(t, "Tracking a, b\n", out)

	out = mustRunCLI(t, "--db", db, "untrack", "b")
	assert.Equal(t, "No longer tracking b\n", out)

	var stats StatsResult
	decodeResponse(t, mustRunCLI(t, "--db", db, "--format", "json", "stats"), &stats)
	require.Len(t, stats.Tracked, 1)
	assert.Equal(t, "a", stats.Tracked[0].Name)
	assert.True(t, stats.Tracked[0].Installed)
	assert.Equal(t, 1, stats.SchemaVersion)
}

func TestTrack_InvalidTable(t *testing.T) {
	db := tempDB(t)

	out, err := runCLI(t, "--db", db, "--format", "json", "track", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidTable, resp.Error.Code)
}

func TestExec(t *testing.T) {
	db := setupTrackedDB(t)

	out := mustRunCLI(t, "--db", db, "exec", "--new-group", "INSERT INTO t VALUES (1, 'a')", "INSERT INTO t VALUES (2, 'b')")
	assert.Equal(t, "Executed 2 statement(s) in undo group 1\n", out)

	var result ExecResult
	decodeResponse(t, mustRunCLI(t, "--db", db, "--format", "json", "exec", "UPDATE t SET name = 'c' WHERE id = 2"), &result)
	assert.Equal(t, ExecResult{Group: 1, Statements: 1}, result)
}

func TestExec_FailureIsAtomic(t *testing.T) {
	db := setupTrackedDB(t)

	_, err := runCLI(t, "--db", db, "exec", "--new-group", "INSERT INTO t VALUES (1, 'a')", "INSERT INTO nope VALUES (1)")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var entries []history.Entry
	decodeResponse(t, mustRunCLI(t, "--db", db, "--format", "json", "log"), &entries)
	assert.Empty(t, entries)
}

func TestUndoRedo(t *testing.T) {
	db := setupTrackedDB(t)
	mustRunCLI(t, "--db", db, "exec", "--new-group", "INSERT INTO t VALUES (1, 'a')")
	mustRunCLI(t, "--db", db, "exec", "--new-group", "UPDATE t SET name = 'b' WHERE id = 1")

	out := mustRunCLI(t, "--db", db, "undo")
	assert.Equal(t, "Undid group 2: 1 statement(s) on t\n", out)

	var entries []history.Entry
	decodeResponse(t, mustRunCLI(t, "--db", db, "--format", "json", "log", "redo"), &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, `UPDATE "t" SET "id"=1,"name"='b' WHERE rowid=1`, entries[0].SQL)

	var result history.Result
	resp := decodeResponse(t, mustRunCLI(t, "--db", db, "--format", "json", "redo"), &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Success)
	assert.Equal(t, history.DirectionRedo, result.Direction)
	assert.Equal(t, []string{"t"}, result.Tables)

	out = mustRunCLI(t, "--db", db, "--verbose", "undo")
	assert.Contains(t, out, "Undid group")
	assert.Contains(t, out, `  UPDATE "t" SET "id"=1,"name"='a' WHERE rowid=1`)

	mustRunCLI(t, "--db", db, "undo")
	out = mustRunCLI(t, "--db", db, "undo")
	assert.Equal(t, "Nothing to undo.\n", out)
}

func TestDiscardRedo(t *testing.T) {
	db := setupTrackedDB(t)
	mustRunCLI(t, "--db", db, "exec", "--new-group", "INSERT INTO t VALUES (1, 'a')")
	mustRunCLI(t, "--db", db, "undo")

	out := mustRunCLI(t, "--db", db, "discard-redo")
	assert.Equal(t, "Discarded newest redo group; active redo group is 1\n", out)

	out = mustRunCLI(t, "--db", db, "redo")
	assert.Equal(t, "Nothing to redo.\n", out)
}

func TestGroupCommands(t *testing.T) {
	db := setupTrackedDB(t)

	out := mustRunCLI(t, "--db", db, "group", "new")
	assert.Equal(t, "Opened undo group 1\n", out)

	for i := 1; i <= 3; i++ {
		mustRunCLI(t, "--db", db, "exec", "--new-group", "INSERT INTO t (name) VALUES ('x')")
	}

	out = mustRunCLI(t, "--db", db, "group", "decrement")
	assert.Equal(t, "Active undo group is 2\n", out)

	out = mustRunCLI(t, "--db", db, "group", "flatten", "1")
	assert.Equal(t, "Flattened undo groups into 1\n", out)

	var stats StatsResult
	decodeResponse(t, mustRunCLI(t, "--db", db, "--format", "json", "stats"), &stats)
	assert.Equal(t, 1, stats.UndoGroups)

	_, err := runCLI(t, "--db", db, "group", "flatten", "one")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStats_Text(t *testing.T) {
	db := setupTrackedDB(t)
	mustRunCLI(t, "--db", db, "exec", "--new-group", "INSERT INTO t VALUES (1, 'a')")

	out := mustRunCLI(t, "--db", db, "stats")
	assert.Regexp(t, `undo\W+1\W+1\W`, out, "undo row: one group, active 1")
	assert.Regexp(t, `redo\W+0\W+0\W`, out)
	assert.Contains(t, out, "Group limit: 500")
	assert.Contains(t, out, "History size:")
	assert.Contains(t, out, "Schema version: 1")
	assert.Regexp(t, `t\W+undo\W+installed`, out)

	out = mustRunCLI(t, "--db", tempDB(t), "stats")
	assert.Contains(t, out, "No tracked tables.")
}

func TestLog(t *testing.T) {
	db := setupTrackedDB(t)

	out := mustRunCLI(t, "--db", db, "log")
	assert.Equal(t, "The undo log is empty.\n", out)

	mustRunCLI(t, "--db", db, "exec", "INSERT INTO t VALUES (7, 'a')")
	out = mustRunCLI(t, "--db", db, "log", "undo")
	assert.Regexp(t, `1\W+0\W+t\W+DELETE FROM "t" WHERE rowid=7`, out, "sequence, group, table, sql")

	_, err := runCLI(t, "--db", db, "log", "sideways")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
