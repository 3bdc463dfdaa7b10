package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Allowed column types. BOOLEAN is stored as INTEGER affinity by SQLite.
var columnTypes = map[string]bool{
	"INTEGER": true,
	"REAL":    true,
	"TEXT":    true,
	"BLOB":    true,
	"BOOLEAN": true,
}

// Allowed ON DELETE actions.
var onDeleteActions = map[string]bool{
	"CASCADE":   true,
	"SET NULL":  true,
	"RESTRICT":  true,
	"NO ACTION": true,
}

// Table is a compiled table definition.
type Table struct {
	Name        string
	History     bool
	Columns     []Column
	Constraints []string
}

// Column is one column of a table.
type Column struct {
	Name          string
	Type          string
	PrimaryKey    bool
	AutoIncrement bool
	NotNull       bool
	Unique        bool
	Default       *Default
	References    *Reference
}

// Default is a column default: either a literal value or a raw SQL expression.
type Default struct {
	Value any    // string, int64, float64 or bool
	Expr  string // e.g. CURRENT_TIMESTAMP; wins over Value when set
}

// SQL renders the default as it appears after DEFAULT.
func (d Default) SQL() string {
	if d.Expr != "" {
		return d.Expr
	}
	switch v := d.Value.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case nil:
		return "NULL"
	default:
		return fmt.Sprint(v)
	}
}

// Reference is a foreign key.
type Reference struct {
	Table    string
	Column   string
	OnDelete string
}

// Migration is one numbered schema version.
type Migration struct {
	Version     int
	Description string
	Tables      []Table

	// Seed statements run after the tables are created, before history is
	// installed, so seeded rows are not undoable.
	Seed []string
}

// HistoryTables returns the names of tables declared with history: true.
func (m Migration) HistoryTables() []string {
	var names []string
	for _, t := range m.Tables {
		if t.History {
			names = append(names, t.Name)
		}
	}
	return names
}

// TableNames returns the names of every table in the migration.
func (m Migration) TableNames() []string {
	names := make([]string, len(m.Tables))
	for i, t := range m.Tables {
		names[i] = t.Name
	}
	return names
}
