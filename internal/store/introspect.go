package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrTableNotFound is returned when introspecting a table that does not exist.
var ErrTableNotFound = errors.New("table not found")

// Column describes one column of an application table as reported by
// pragma_table_info.
type Column struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey int // 1-based position in the primary key, 0 if not part of it
}

// TableInfo is the shape of a table needed to generate row reversers.
type TableInfo struct {
	Name         string
	Columns      []Column
	WithoutRowID bool

	// RowIDAlias is the INTEGER PRIMARY KEY column aliasing rowid, or empty
	// when the table keeps a hidden rowid.
	RowIDAlias string
}

// ColumnNames returns the column names in declaration order.
func (t TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// DescribeTable reads the current column list of table.
// Returns ErrTableNotFound (wrapped) if no such table exists in the main schema.
func DescribeTable(ctx context.Context, q Querier, table string) (TableInfo, error) {
	info := TableInfo{Name: table}

	var kind string
	var wr int
	err := q.QueryRowContext(ctx, `
		SELECT type, wr FROM pragma_table_list
		WHERE schema = 'main' AND name = ?
	`, table).Scan(&kind, &wr)
	if errors.Is(err, sql.ErrNoRows) {
		return info, fmt.Errorf("describe %q: %w", table, ErrTableNotFound)
	}
	if err != nil {
		return info, fmt.Errorf("describe %q: %w", table, err)
	}
	if kind != "table" {
		return info, fmt.Errorf("describe %q: %w (found %s)", table, ErrTableNotFound, kind)
	}
	info.WithoutRowID = wr == 1

	info.Columns, err = TableColumns(ctx, q, table)
	if err != nil {
		return info, err
	}

	var pk []Column
	for _, c := range info.Columns {
		if c.PrimaryKey > 0 {
			pk = append(pk, c)
		}
	}
	if !info.WithoutRowID && len(pk) == 1 && strings.EqualFold(pk[0].Type, "INTEGER") {
		info.RowIDAlias = pk[0].Name
	}

	return info, nil
}

// TableColumns returns the columns of table in declaration order.
func TableColumns(ctx context.Context, q Querier, table string) ([]Column, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, type, "notnull", pk FROM pragma_table_info(?)
		ORDER BY cid
	`, table)
	if err != nil {
		return nil, fmt.Errorf("table columns %q: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var c Column
		var notNull int
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &c.PrimaryKey); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.NotNull = notNull == 1
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table columns %q: %w", table, ErrTableNotFound)
	}

	return columns, nil
}

// TableExists reports whether a table named table exists in the main schema.
func TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?
	`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("table exists %q: %w", table, err)
	}
	return count > 0, nil
}
