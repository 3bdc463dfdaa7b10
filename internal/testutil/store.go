package testutil

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlundo/internal/store"
)

// OpenStore opens a fresh store in t's temp dir and closes it on cleanup.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MustExec runs query and fails the test on error.
func MustExec(t *testing.T, q store.Querier, query string, args ...any) {
	t.Helper()
	_, err := q.ExecContext(context.Background(), query, args...)
	require.NoError(t, err, "exec %s", query)
}

// QueryRows returns every row of query rendered with FormatValue.
func QueryRows(t *testing.T, q store.Querier, query string, args ...any) [][]string {
	t.Helper()

	rows, err := q.QueryContext(context.Background(), query, args...)
	require.NoError(t, err)
	defer rows.Close()

	out, err := ScanRows(rows)
	require.NoError(t, err)
	return out
}

// ScanRows drains rows, rendering each value with FormatValue.
func ScanRows(rows *sql.Rows) ([][]string, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := [][]string{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = FormatValue(v)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// FormatValue renders a SQLite or YAML value as text so the two can be
// compared: NULL for nil, decimal integers, shortest-form floats and 1/0
// for booleans.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return "?"
	}
}
