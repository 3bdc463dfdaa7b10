package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/sqlundo/internal/store"
)

// maxGroup returns the largest group id in log. ok is false when the log is
// empty; group 0 is a real group and is reported with ok set.
func maxGroup(ctx context.Context, q store.Querier, log Log) (group int64, ok bool, err error) {
	var top sql.NullInt64
	query := fmt.Sprintf(`SELECT MAX("history_group") FROM %s`, log.table())
	if err := q.QueryRowContext(ctx, query).Scan(&top); err != nil {
		return 0, false, fmt.Errorf("max %s group: %w", log, err)
	}
	return top.Int64, top.Valid, nil
}

// groupBelow returns the largest group id strictly below group.
func groupBelow(ctx context.Context, q store.Querier, log Log, group int64) (int64, bool, error) {
	var below sql.NullInt64
	query := fmt.Sprintf(`SELECT MAX("history_group") FROM %s WHERE "history_group" < ?`, log.table())
	if err := q.QueryRowContext(ctx, query, group).Scan(&below); err != nil {
		return 0, false, fmt.Errorf("previous %s group: %w", log, err)
	}
	return below.Int64, below.Valid, nil
}

// distinctGroups returns the group ids present in log, oldest first.
func distinctGroups(ctx context.Context, q store.Querier, log Log) ([]int64, error) {
	query := fmt.Sprintf(`SELECT DISTINCT "history_group" FROM %s ORDER BY "history_group"`, log.table())
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s groups: %w", log, err)
	}
	defer rows.Close()

	var groups []int64
	for rows.Next() {
		var g int64
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan %s group: %w", log, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s groups: %w", log, err)
	}
	return groups, nil
}

// groupEntries returns the entries of one group in replay order: newest
// sequence first.
func groupEntries(ctx context.Context, q store.Querier, log Log, group int64) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT "sequence", "history_group", "table_name", "sql" FROM %s
		WHERE "history_group" = ?
		ORDER BY "sequence" DESC
	`, log.table())
	rows, err := q.QueryContext(ctx, query, group)
	if err != nil {
		return nil, fmt.Errorf("load %s group %d: %w", log, group, err)
	}
	return scanEntries(rows)
}

// listEntries returns every entry of log in recording order.
func listEntries(ctx context.Context, q store.Querier, log Log) ([]Entry, error) {
	query := fmt.Sprintf(`
		SELECT "sequence", "history_group", "table_name", "sql" FROM %s
		ORDER BY "sequence"
	`, log.table())
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", log, err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Sequence, &e.Group, &e.Table, &e.SQL); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func deleteGroup(ctx context.Context, q store.Querier, log Log, group int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE "history_group" = ?`, log.table())
	if _, err := q.ExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("delete %s group %d: %w", log, group, err)
	}
	return nil
}

// touchedTables returns the distinct tables named by entries, in first-seen order.
func touchedTables(entries []Entry) []string {
	seen := make(map[string]bool, len(entries))
	tables := []string{}
	for _, e := range entries {
		if !seen[e.Table] {
			seen[e.Table] = true
			tables = append(tables, e.Table)
		}
	}
	return tables
}
