package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlundo/internal/store"
	"github.com/roach88/sqlundo/internal/testutil"
)

// setupTestEngine opens a fresh store in a temp dir and returns an engine
// over it with logging discarded.
func setupTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st := testutil.OpenStore(t)
	return New(st, WithLogger(testutil.DiscardLogger())), st
}

func mustExec(t *testing.T, st *store.Store, query string, args ...any) {
	t.Helper()
	testutil.MustExec(t, st.DB(), query, args...)
}

// queryRows returns every row of query as strings; NULL renders as "NULL".
func queryRows(t *testing.T, st *store.Store, query string, args ...any) [][]string {
	t.Helper()
	return testutil.QueryRows(t, st.DB(), query, args...)
}

func countRows(t *testing.T, st *store.Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, st.DB().QueryRow(query, args...).Scan(&n))
	return n
}

// createNamesTable creates and tracks t(id INTEGER PRIMARY KEY, name TEXT).
func createNamesTable(t *testing.T, e *Engine, st *store.Store) {
	t.Helper()
	mustExec(t, st, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, e.Install(context.Background(), "t"))
}

func logStatements(t *testing.T, e *Engine, log Log) []string {
	t.Helper()
	entries, err := e.Entries(context.Background(), log)
	require.NoError(t, err)
	stmts := make([]string, len(entries))
	for i, entry := range entries {
		stmts[i] = entry.SQL
	}
	return stmts
}
