package schema

import (
	"strings"
)

// Timestamp columns added to every table unless declared explicitly.
var timestampColumns = []string{"created_at", "updated_at"}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ColumnSQL renders a column clause: name, type, then PRIMARY KEY,
// AUTOINCREMENT, NOT NULL, UNIQUE, DEFAULT and REFERENCES in that order.
func ColumnSQL(c Column) string {
	parts := []string{quoteIdent(c.Name), c.Type}

	if c.PrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.AutoIncrement {
		parts = append(parts, "AUTOINCREMENT")
	}
	if c.NotNull {
		parts = append(parts, "NOT NULL")
	}
	if c.Unique {
		parts = append(parts, "UNIQUE")
	}

	switch {
	case c.Default != nil:
		parts = append(parts, "DEFAULT "+c.Default.SQL())
	case isTimestampColumn(c.Name):
		parts = append(parts, "DEFAULT CURRENT_TIMESTAMP")
	}

	if c.References != nil {
		parts = append(parts, "REFERENCES "+quoteIdent(c.References.Table)+"("+quoteIdent(c.References.Column)+")")
		if c.References.OnDelete != "" {
			parts = append(parts, "ON DELETE "+c.References.OnDelete)
		}
	}

	return strings.Join(parts, " ")
}

// CreateTableSQL renders the CREATE TABLE IF NOT EXISTS statement for t,
// appending created_at and updated_at when t does not declare them.
func CreateTableSQL(t Table) string {
	cols := append([]Column(nil), t.Columns...)
	for _, name := range timestampColumns {
		if !hasColumn(t, name) {
			cols = append(cols, Column{Name: name, Type: "TEXT"})
		}
	}

	clauses := make([]string, 0, len(cols)+len(t.Constraints))
	for _, c := range cols {
		clauses = append(clauses, ColumnSQL(c))
	}
	clauses = append(clauses, t.Constraints...)

	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(t.Name) + " (\n  " +
		strings.Join(clauses, ",\n  ") + "\n);"
}

func hasColumn(t Table, name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

func isTimestampColumn(name string) bool {
	for _, ts := range timestampColumns {
		if name == ts {
			return true
		}
	}
	return false
}
