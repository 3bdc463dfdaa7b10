package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError reports an invalid table or migration definition.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileMigration parses a migration value: optional version and
// description, a table struct and an optional seed list.
func CompileMigration(v cue.Value) (*Migration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Migration{}

	if versionVal := v.LookupPath(cue.ParsePath("version")); versionVal.Exists() {
		version, err := versionVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Version = int(version)
	}

	var err error
	if m.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}

	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if tablesVal.Exists() {
		iter, err := tablesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			table, err := CompileTable(iter.Value())
			if err != nil {
				return nil, err
			}
			m.Tables = append(m.Tables, *table)
		}
	}

	seedVal := v.LookupPath(cue.ParsePath("seed"))
	if seedVal.Exists() {
		iter, err := seedVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			stmt, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			m.Seed = append(m.Seed, stmt)
		}
	}

	if len(m.Tables) == 0 && len(m.Seed) == 0 {
		return nil, &CompileError{
			Field:   "table",
			Message: "migration declares no tables and no seed statements",
			Pos:     v.Pos(),
		}
	}

	return m, nil
}

// CompileTable parses a CUE value into a Table. The table name is the
// value's label, e.g. table.marchers compiles to a table named marchers.
func CompileTable(v cue.Value) (*Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	t := &Table{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		t.Name = unquoteLabel(labels[len(labels)-1].String())
	}
	if t.Name == "" {
		return nil, &CompileError{Field: "table", Message: "table name is required", Pos: v.Pos()}
	}

	var err error
	if t.History, err = optionalBool(v, "history"); err != nil {
		return nil, err
	}

	columnsVal := v.LookupPath(cue.ParsePath("columns"))
	if !columnsVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("table.%s.columns", t.Name),
			Message: "columns are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := columnsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	seen := make(map[string]bool)
	autoIncrements := 0
	for iter.Next() {
		col, err := compileColumn(t.Name, iter.Value())
		if err != nil {
			return nil, err
		}
		if seen[col.Name] {
			return nil, &CompileError{
				Field:   fmt.Sprintf("table.%s.columns", t.Name),
				Message: fmt.Sprintf("duplicate column %q", col.Name),
				Pos:     iter.Value().Pos(),
			}
		}
		seen[col.Name] = true
		if col.AutoIncrement {
			autoIncrements++
		}
		t.Columns = append(t.Columns, col)
	}

	if len(t.Columns) == 0 {
		return nil, &CompileError{
			Field:   fmt.Sprintf("table.%s.columns", t.Name),
			Message: "at least one column is required",
			Pos:     columnsVal.Pos(),
		}
	}
	if autoIncrements > 1 {
		return nil, &CompileError{
			Field:   fmt.Sprintf("table.%s.columns", t.Name),
			Message: "at most one column may be auto_increment",
			Pos:     columnsVal.Pos(),
		}
	}

	constraintsVal := v.LookupPath(cue.ParsePath("constraints"))
	if constraintsVal.Exists() {
		citer, err := constraintsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for citer.Next() {
			c, err := citer.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			t.Constraints = append(t.Constraints, c)
		}
	}

	return t, nil
}

func compileColumn(table string, v cue.Value) (Column, error) {
	var c Column
	field := fmt.Sprintf("table.%s.columns", table)

	name, err := optionalString(v, "name")
	if err != nil {
		return c, err
	}
	if name == "" {
		return c, &CompileError{Field: field, Message: "column name is required", Pos: v.Pos()}
	}
	c.Name = name
	field = fmt.Sprintf("%s.%s", field, name)

	typ, err := optionalString(v, "type")
	if err != nil {
		return c, err
	}
	c.Type = strings.ToUpper(typ)
	if !columnTypes[c.Type] {
		return c, &CompileError{
			Field:   field + ".type",
			Message: fmt.Sprintf("invalid type %q: must be INTEGER, REAL, TEXT, BLOB or BOOLEAN", typ),
			Pos:     v.LookupPath(cue.ParsePath("type")).Pos(),
		}
	}

	for _, flag := range []struct {
		name string
		dst  *bool
	}{
		{"primary_key", &c.PrimaryKey},
		{"auto_increment", &c.AutoIncrement},
		{"not_null", &c.NotNull},
		{"unique", &c.Unique},
	} {
		if *flag.dst, err = optionalBool(v, flag.name); err != nil {
			return c, err
		}
	}

	if c.AutoIncrement && (!c.PrimaryKey || c.Type != "INTEGER") {
		return c, &CompileError{
			Field:   field + ".auto_increment",
			Message: "auto_increment requires an INTEGER primary_key",
			Pos:     v.LookupPath(cue.ParsePath("auto_increment")).Pos(),
		}
	}

	if c.Default, err = compileDefault(v); err != nil {
		return c, err
	}

	refVal := v.LookupPath(cue.ParsePath("references"))
	if refVal.Exists() {
		ref := &Reference{}
		if ref.Table, err = optionalString(refVal, "table"); err != nil {
			return c, err
		}
		if ref.Column, err = optionalString(refVal, "column"); err != nil {
			return c, err
		}
		if ref.Table == "" || ref.Column == "" {
			return c, &CompileError{
				Field:   field + ".references",
				Message: "references requires table and column",
				Pos:     refVal.Pos(),
			}
		}
		onDelete, err := optionalString(refVal, "on_delete")
		if err != nil {
			return c, err
		}
		ref.OnDelete = strings.ToUpper(onDelete)
		if ref.OnDelete != "" && !onDeleteActions[ref.OnDelete] {
			return c, &CompileError{
				Field:   field + ".references.on_delete",
				Message: fmt.Sprintf("invalid on_delete %q: must be CASCADE, SET NULL, RESTRICT or NO ACTION", onDelete),
				Pos:     refVal.LookupPath(cue.ParsePath("on_delete")).Pos(),
			}
		}
		c.References = ref
	}

	return c, nil
}

func compileDefault(v cue.Value) (*Default, error) {
	expr, err := optionalString(v, "default_expr")
	if err != nil {
		return nil, err
	}
	if expr != "" {
		return &Default{Expr: expr}, nil
	}

	dv := v.LookupPath(cue.ParsePath("default"))
	if !dv.Exists() {
		return nil, nil
	}

	switch dv.IncompleteKind() {
	case cue.StringKind:
		s, err := dv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &Default{Value: s}, nil
	case cue.IntKind:
		n, err := dv.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &Default{Value: n}, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := dv.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &Default{Value: f}, nil
	case cue.BoolKind:
		b, err := dv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return &Default{Value: b}, nil
	case cue.NullKind:
		return &Default{}, nil
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: "default must be a string, number, bool or null",
			Pos:     dv.Pos(),
		}
	}
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// unquoteLabel strips the quotes CUE keeps on labels that are not valid
// identifiers, e.g. "line-items".
func unquoteLabel(label string) string {
	if len(label) >= 2 && label[0] == '"' && label[len(label)-1] == '"' {
		return label[1 : len(label)-1]
	}
	return label
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
