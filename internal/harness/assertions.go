package harness

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/sqlundo/internal/history"
	"github.com/roach88/sqlundo/internal/testutil"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Subject  string // Table or log the assertion inspected
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s %s\n", e.Type, e.Subject)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides database access for state assertions.
type AssertionContext struct {
	History *history.Engine
	Ctx     context.Context
}

// EvaluateAssertions evaluates all assertions against the final state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.History == nil {
			err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
		} else {
			switch assertion.Type {
			case AssertTableRows:
				err = assertTableRows(actx, assertion)
			case AssertLogGroups:
				err = assertLogGroups(actx, assertion)
			case AssertLogEntries:
				err = assertLogEntries(actx, assertion)
			case AssertTrackedMode:
				err = assertTrackedMode(actx, assertion)
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertTableRows compares the table's rows, in rowid order, against the
// expected rows. Values are compared by their text rendering, so YAML 1
// matches INTEGER 1 and YAML null matches NULL.
func assertTableRows(actx *AssertionContext, a Assertion) error {
	if !validIdentifier.MatchString(a.Table) {
		return fmt.Errorf("table_rows: invalid table name %q", a.Table)
	}
	cols := "*"
	if len(a.Columns) > 0 {
		for _, c := range a.Columns {
			if !validIdentifier.MatchString(c) {
				return fmt.Errorf("table_rows: invalid column name %q", c)
			}
		}
		cols = `"` + strings.Join(a.Columns, `", "`) + `"`
	}

	query := fmt.Sprintf(`SELECT %s FROM "%s" ORDER BY rowid`, cols, a.Table)
	rows, err := actx.History.Store().Query(actx.Ctx, query)
	if err != nil {
		return fmt.Errorf("table_rows: query %s: %w", a.Table, err)
	}
	defer rows.Close()

	actual, err := testutil.ScanRows(rows)
	if err != nil {
		return fmt.Errorf("table_rows: scan %s: %w", a.Table, err)
	}

	expected := make([][]string, len(a.Rows))
	for i, row := range a.Rows {
		expected[i] = make([]string, len(row))
		for j, v := range row {
			expected[i][j] = testutil.FormatValue(v)
		}
	}

	if formatRows(expected) != formatRows(actual) {
		return &AssertionError{
			Type:     AssertTableRows,
			Subject:  a.Table,
			Expected: formatRows(expected),
			Actual:   formatRows(actual),
		}
	}
	return nil
}

func formatRows(rows [][]string) string {
	parts := make([]string, len(rows))
	for i, row := range rows {
		parts[i] = "(" + strings.Join(row, ", ") + ")"
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func assertLogGroups(actx *AssertionContext, a Assertion) error {
	log, err := history.ParseLog(a.Log)
	if err != nil {
		return fmt.Errorf("log_groups: %w", err)
	}
	groups, err := actx.History.Groups(actx.Ctx, log)
	if err != nil {
		return fmt.Errorf("log_groups: %w", err)
	}

	if len(groups) != *a.Count {
		return &AssertionError{
			Type:     AssertLogGroups,
			Subject:  a.Log,
			Expected: fmt.Sprintf("%d groups", *a.Count),
			Actual:   fmt.Sprintf("%d groups", len(groups)),
		}
	}
	return nil
}

func assertLogEntries(actx *AssertionContext, a Assertion) error {
	log, err := history.ParseLog(a.Log)
	if err != nil {
		return fmt.Errorf("log_entries: %w", err)
	}
	entries, err := actx.History.Entries(actx.Ctx, log)
	if err != nil {
		return fmt.Errorf("log_entries: %w", err)
	}

	actual := make([]string, len(entries))
	for i, e := range entries {
		actual[i] = e.SQL
	}

	want := strings.Join(a.Entries, "\n    ")
	got := strings.Join(actual, "\n    ")
	if want != got {
		return &AssertionError{
			Type:     AssertLogEntries,
			Subject:  a.Log,
			Expected: fmt.Sprintf("%d entries\n    %s", len(a.Entries), want),
			Actual:   fmt.Sprintf("%d entries\n    %s", len(actual), got),
		}
	}
	return nil
}

func assertTrackedMode(actx *AssertionContext, a Assertion) error {
	tracked, err := actx.History.TrackedTables(actx.Ctx)
	if err != nil {
		return fmt.Errorf("tracked_mode: %w", err)
	}

	actual := "untracked"
	for _, t := range tracked {
		if t.Name == a.Table {
			actual = string(t.Mode)
			if !t.Installed {
				actual += " (triggers missing)"
			}
			break
		}
	}

	if actual != a.Mode {
		return &AssertionError{
			Type:     AssertTrackedMode,
			Subject:  a.Table,
			Expected: a.Mode,
			Actual:   actual,
		}
	}
	return nil
}
