package history

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlundo/internal/metrics"
	"github.com/roach88/sqlundo/internal/store"
)

func TestUndoRedo_RenameScenario(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)

	g1, err := e.NewUndoGroup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), g1)
	mustExec(t, st, `INSERT INTO t (id, name) VALUES (1, 'a')`)

	g2, err := e.NewUndoGroup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), g2)
	mustExec(t, st, `UPDATE t SET name = 'b' WHERE id = 1`)

	assert.Equal(t, [][]string{
		{"1", "t", `DELETE FROM "t" WHERE rowid=1`},
		{"2", "t", `UPDATE "t" SET "id"=1,"name"='a' WHERE rowid=1`},
	}, queryRows(t, st, `SELECT history_group, table_name, sql FROM history_undo ORDER BY sequence`))

	result, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, DirectionUndo, result.Direction)
	assert.Equal(t, int64(2), result.Group)
	assert.Equal(t, []string{"t"}, result.Tables)
	assert.Equal(t, []string{`UPDATE "t" SET "id"=1,"name"='a' WHERE rowid=1`}, result.Statements)
	assert.Nil(t, result.Error)

	assert.Equal(t, [][]string{{"1", "a"}}, queryRows(t, st, `SELECT id, name FROM t`))
	assert.Equal(t, []string{`UPDATE "t" SET "id"=1,"name"='b' WHERE rowid=1`}, logStatements(t, e, LogRedo))
	assert.Equal(t, []string{`DELETE FROM "t" WHERE rowid=1`}, logStatements(t, e, LogUndo))

	result, err = e.Redo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, [][]string{{"1", "b"}}, queryRows(t, st, `SELECT id, name FROM t`))
	assert.Empty(t, logStatements(t, e, LogRedo))
	assert.Equal(t, []string{
		`DELETE FROM "t" WHERE rowid=1`,
		`UPDATE "t" SET "id"=1,"name"='a' WHERE rowid=1`,
	}, logStatements(t, e, LogUndo))

	tracked, err := e.TrackedTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeUndo, tracked[0].Mode)
}

func TestUndo_RestoresPriorRowSetInReverseOrder(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)

	snapshot := func() [][]string {
		return queryRows(t, st, `SELECT id, name FROM t ORDER BY id`)
	}
	var states [][][]string

	step := func(queries ...string) {
		states = append(states, snapshot())
		_, err := e.NewUndoGroup(ctx)
		require.NoError(t, err)
		for _, q := range queries {
			mustExec(t, st, q)
		}
	}

	step(`INSERT INTO t VALUES (1, 'a')`, `INSERT INTO t VALUES (2, 'b')`, `INSERT INTO t VALUES (3, 'c')`)
	step(`UPDATE t SET name = 'B' WHERE id = 2`, `DELETE FROM t WHERE id = 3`)
	step(`UPDATE t SET id = 10 WHERE id = 1`)
	step(`DELETE FROM t`)
	final := snapshot()

	for i := len(states) - 1; i >= 0; i-- {
		result, err := e.Undo(ctx)
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, states[i], snapshot(), "after undoing step %d", i)
	}

	result, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Noop())

	for i := 1; i < len(states); i++ {
		_, err := e.Redo(ctx)
		require.NoError(t, err)
		assert.Equal(t, states[i], snapshot(), "after redoing to step %d", i)
	}
	_, err = e.Redo(ctx)
	require.NoError(t, err)
	assert.Equal(t, final, snapshot())
}

func TestRedo_InvalidatedByNewChange(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)

	mustExec(t, st, `INSERT INTO t VALUES (1, 'a')`)
	_, err := e.NewUndoGroup(ctx)
	require.NoError(t, err)
	mustExec(t, st, `INSERT INTO t VALUES (2, 'b')`)

	_, err = e.Undo(ctx)
	require.NoError(t, err)
	require.Len(t, logStatements(t, e, LogRedo), 1)

	mustExec(t, st, `INSERT INTO t VALUES (3, 'c')`)
	assert.Empty(t, logStatements(t, e, LogRedo))

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.CurrentRedoGroup)

	result, err := e.Redo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Noop())
	assert.Equal(t, [][]string{{"1"}, {"3"}}, queryRows(t, st, `SELECT id FROM t ORDER BY id`))
}

func TestRedo_KeepsOlderRedoGroups(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)

	for _, name := range []string{"a", "b", "c"} {
		_, err := e.NewUndoGroup(ctx)
		require.NoError(t, err)
		mustExec(t, st, `INSERT INTO t (name) VALUES (?)`, name)
	}
	for i := 0; i < 3; i++ {
		_, err := e.Undo(ctx)
		require.NoError(t, err)
	}
	require.Len(t, logStatements(t, e, LogRedo), 3)

	_, err := e.Redo(ctx)
	require.NoError(t, err)
	assert.Len(t, logStatements(t, e, LogRedo), 2)

	_, err = e.Redo(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, queryRows(t, st, `SELECT name FROM t ORDER BY id`))
}

func TestUndo_EmptyLogIsNoop(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)

	before, err := e.Stats(ctx)
	require.NoError(t, err)

	noops := testutil.ToFloat64(metrics.ReplaysTotal.WithLabelValues("undo", metrics.ReplayOutcomeNoop))

	result, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Noop())
	assert.Empty(t, result.Tables)
	assert.Empty(t, result.Statements)

	result, err = e.Redo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Noop())

	after, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, noops+1, testutil.ToFloat64(metrics.ReplaysTotal.WithLabelValues("undo", metrics.ReplayOutcomeNoop)))
}

func TestUndo_FailingStatementLeavesGroupIntact(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)

	mustExec(t, st, `INSERT INTO t VALUES (1, 'a')`)
	mustExec(t, st, `INSERT INTO t VALUES (2, 'b')`)
	// Recorded last, so replayed first.
	mustExec(t, st, `INSERT INTO history_undo (history_group, table_name, sql) VALUES (0, 't', 'DELETE FROM no_such_table')`)

	undoBefore := queryRows(t, st, `SELECT * FROM history_undo ORDER BY sequence`)
	failures := testutil.ToFloat64(metrics.ReplaysTotal.WithLabelValues("undo", metrics.ReplayOutcomeFailed))

	result, err := e.Undo(ctx)
	require.Error(t, err)
	assert.True(t, IsReplayError(err))
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, "compensating statement failed", result.Error.Message)
	assert.Equal(t, "statement: DELETE FROM no_such_table", result.Error.Detail)
	assert.Empty(t, result.Statements)

	assert.Equal(t, [][]string{{"1", "a"}, {"2", "b"}}, queryRows(t, st, `SELECT id, name FROM t ORDER BY id`))
	assert.Equal(t, undoBefore, queryRows(t, st, `SELECT * FROM history_undo ORDER BY sequence`))
	assert.Empty(t, logStatements(t, e, LogRedo))

	tracked, err := e.TrackedTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, ModeUndo, tracked[0].Mode)

	fk, err := st.ForeignKeysEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, fk, "foreign keys must be re-enabled after a failed replay")

	assert.Equal(t, failures+1, testutil.ToFloat64(metrics.ReplaysTotal.WithLabelValues("undo", metrics.ReplayOutcomeFailed)))

	// Removing the poisoned entry makes the same group replayable.
	mustExec(t, st, `DELETE FROM history_undo WHERE sql = 'DELETE FROM no_such_table'`)
	result, err = e.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, queryRows(t, st, `SELECT id FROM t`))
}

func TestUndo_FailureAfterAppliedStatementsRollsBack(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)

	group, err := e.NewUndoGroup(ctx)
	require.NoError(t, err)
	// Recorded first, so replayed last: both row deletions run before it fails.
	mustExec(t, st, `INSERT INTO history_undo (history_group, table_name, sql) VALUES (?, 't', 'DELETE FROM no_such_table')`, group)
	mustExec(t, st, `INSERT INTO t VALUES (1, 'a')`)
	mustExec(t, st, `INSERT INTO t VALUES (2, 'b')`)

	undoBefore := queryRows(t, st, `SELECT * FROM history_undo ORDER BY sequence`)
	require.Len(t, undoBefore, 3)
	statsBefore, err := e.Stats(ctx)
	require.NoError(t, err)

	result, err := e.Undo(ctx)
	require.Error(t, err)
	assert.True(t, IsReplayError(err))
	assert.False(t, result.Success)
	assert.Equal(t, group, result.Group)
	require.NotNil(t, result.Error)
	assert.Equal(t, "statement: DELETE FROM no_such_table", result.Error.Detail)

	assert.Equal(t, [][]string{{"1", "a"}, {"2", "b"}}, queryRows(t, st, `SELECT id, name FROM t ORDER BY id`))
	assert.Equal(t, undoBefore, queryRows(t, st, `SELECT * FROM history_undo ORDER BY sequence`))
	assert.Empty(t, logStatements(t, e, LogRedo))

	statsAfter, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, statsBefore, statsAfter)
}

func TestUndo_MissingStatsIsConfigError(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)
	mustExec(t, st, `INSERT INTO t VALUES (1, 'a')`)
	mustExec(t, st, `DELETE FROM history_stats`)

	result, err := e.Undo(ctx)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.False(t, IsReplayError(err))
	assert.False(t, result.Success)
	assert.Equal(t, [][]string{{"1", "a"}}, queryRows(t, st, `SELECT id, name FROM t`))
	assert.Equal(t, 1, countRows(t, st, `SELECT COUNT(*) FROM history_undo`))

	_, err = e.NewUndoGroup(ctx)
	assert.True(t, IsConfigError(err))
}

func TestUndo_ForeignKeysRelaxedDuringReplay(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	mustExec(t, st, `CREATE TABLE parent (id INTEGER PRIMARY KEY, name TEXT)`)
	mustExec(t, st, `CREATE TABLE child (id INTEGER PRIMARY KEY, parent_id INTEGER NOT NULL REFERENCES parent(id) ON DELETE CASCADE)`)
	require.NoError(t, e.Install(ctx, "parent", "child"))

	mustExec(t, st, `INSERT INTO parent VALUES (1, 'p')`)
	mustExec(t, st, `INSERT INTO child VALUES (1, 1)`)

	_, err := e.NewUndoGroup(ctx)
	require.NoError(t, err)
	// The cascade records the child after the parent, so undo re-inserts
	// the child while its parent is still missing.
	mustExec(t, st, `DELETE FROM parent`)
	require.Empty(t, queryRows(t, st, `SELECT id FROM child`))

	result, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.ElementsMatch(t, []string{"parent", "child"}, result.Tables)
	assert.Equal(t, [][]string{{"1", "1"}}, queryRows(t, st, `SELECT id, parent_id FROM child`))

	fk, err := st.ForeignKeysEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, fk)

	_, err = e.Redo(ctx)
	require.NoError(t, err)
	assert.Empty(t, queryRows(t, st, `SELECT id FROM parent`))
	assert.Empty(t, queryRows(t, st, `SELECT id FROM child`))
}

func TestUndo_HiddenRowIDTable(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	mustExec(t, st, `CREATE TABLE tags (label TEXT NOT NULL)`)
	require.NoError(t, e.Install(ctx, "tags"))

	mustExec(t, st, `INSERT INTO tags (label) VALUES ('x'), ('y')`)
	before := queryRows(t, st, `SELECT rowid, label FROM tags ORDER BY rowid`)

	_, err := e.NewUndoGroup(ctx)
	require.NoError(t, err)
	mustExec(t, st, `DELETE FROM tags WHERE label = 'x'`)
	mustExec(t, st, `UPDATE tags SET label = 'z'`)

	_, err = e.Undo(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, queryRows(t, st, `SELECT rowid, label FROM tags ORDER BY rowid`))
}

func TestUndo_UntrackedTableStillReplayed(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)
	mustExec(t, st, `INSERT INTO t VALUES (1, 'a')`)

	require.NoError(t, e.Uninstall(ctx, "t"))

	result, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, queryRows(t, st, `SELECT id FROM t`))
	assert.Empty(t, logStatements(t, e, LogRedo))
}

func TestDo_RecordsOneGroupOrNothing(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)

	group, err := e.Do(ctx, func(ctx context.Context, q store.Querier) error {
		if _, err := q.ExecContext(ctx, `INSERT INTO t VALUES (1, 'a')`); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `INSERT INTO t VALUES (2, 'b')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), group)
	assert.Equal(t, 2, countRows(t, st, `SELECT COUNT(*) FROM history_undo WHERE history_group = 1`))

	_, err = e.Do(ctx, func(ctx context.Context, q store.Querier) error {
		if _, err := q.ExecContext(ctx, `INSERT INTO t VALUES (3, 'c')`); err != nil {
			return err
		}
		_, err := q.ExecContext(ctx, `INSERT INTO t VALUES (1, 'dup')`)
		return err
	})
	require.Error(t, err)
	assert.Equal(t, 2, countRows(t, st, `SELECT COUNT(*) FROM t`))
	assert.Equal(t, 2, countRows(t, st, `SELECT COUNT(*) FROM history_undo`))

	result, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Statements, 2)
	assert.Equal(t, 0, countRows(t, st, `SELECT COUNT(*) FROM t`))
}

func TestExecStatements(t *testing.T) {
	e, st := setupTestEngine(t)
	ctx := context.Background()
	createNamesTable(t, e, st)

	group, err := e.ExecStatements(ctx, true, `INSERT INTO t VALUES (1, 'a')`, `INSERT INTO t VALUES (2, 'b')`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), group)

	// Without a new group the statements join group 1.
	group, err = e.ExecStatements(ctx, false, `UPDATE t SET name = 'z' WHERE id = 2`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), group)
	assert.Equal(t, 3, countRows(t, st, `SELECT COUNT(*) FROM history_undo WHERE history_group = 1`))

	_, err = e.ExecStatements(ctx, false, `INSERT INTO t VALUES (3, 'c')`, `INSERT INTO nope VALUES (1)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statements[1]")
	assert.Equal(t, 2, countRows(t, st, `SELECT COUNT(*) FROM t`))
	assert.Equal(t, 3, countRows(t, st, `SELECT COUNT(*) FROM history_undo`))

	result, err := e.Undo(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Statements, 3)
	assert.Equal(t, 0, countRows(t, st, `SELECT COUNT(*) FROM t`))
}
