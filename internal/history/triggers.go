package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/sqlundo/internal/store"
)

// Trigger name suffixes. Each tracked table carries exactly these three.
const (
	insertSuffix = "_it"
	updateSuffix = "_ut"
	deleteSuffix = "_dt"
)

// reservedTables are the engine's own bookkeeping tables.
var reservedTables = map[string]bool{
	"history_undo":      true,
	"history_redo":      true,
	"history_stats":     true,
	"history_tracked":   true,
	"schema_migrations": true,
}

func triggerNames(table string) []string {
	return []string{table + insertSuffix, table + updateSuffix, table + deleteSuffix}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// buildTriggers renders the three CREATE TRIGGER statements that record
// reversers for every row change on info into the log selected by mode.
//
// The reverser text is assembled inside SQLite: literal fragments are
// concatenated with quote(OLD.col) so values round-trip exactly. Tables
// without an INTEGER PRIMARY KEY also restore their hidden rowid.
func buildTriggers(info store.TableInfo, mode Mode) []string {
	table := quoteIdent(info.Name)
	names := triggerNames(info.Name)

	return []string{
		fmt.Sprintf("CREATE TRIGGER %s AFTER INSERT ON %s BEGIN\n%sEND",
			quoteIdent(names[0]), table, recordStatement(info, mode, insertReverser(info))),
		fmt.Sprintf("CREATE TRIGGER %s AFTER UPDATE ON %s BEGIN\n%sEND",
			quoteIdent(names[1]), table, recordStatement(info, mode, updateReverser(info))),
		fmt.Sprintf("CREATE TRIGGER %s BEFORE DELETE ON %s BEGIN\n%sEND",
			quoteIdent(names[2]), table, recordStatement(info, mode, deleteReverser(info))),
	}
}

func recordStatement(info store.TableInfo, mode Mode, reverser string) string {
	log := mode.Log()

	var b strings.Builder
	fmt.Fprintf(&b, "  INSERT INTO %s (\"history_group\", \"table_name\", \"sql\")\n", log.table())
	fmt.Fprintf(&b, "    VALUES ((SELECT %s FROM history_stats), %s, %s);\n",
		log.groupColumn(), quoteLiteral(info.Name), reverser)
	if mode.clearsRedo() {
		b.WriteString("  DELETE FROM history_redo;\n")
		b.WriteString("  UPDATE history_stats SET cur_redo_group = 0;\n")
	}
	return b.String()
}

// restoredColumns lists the column expressions a reverser must restore.
// The hidden rowid comes first when no column aliases it.
func restoredColumns(info store.TableInfo) []string {
	var cols []string
	if info.RowIDAlias == "" {
		cols = append(cols, "rowid")
	}
	for _, name := range info.ColumnNames() {
		cols = append(cols, quoteIdent(name))
	}
	return cols
}

// DELETE FROM "t" WHERE rowid=<new rowid>
func insertReverser(info store.TableInfo) string {
	return quoteLiteral("DELETE FROM "+quoteIdent(info.Name)+" WHERE rowid=") + "||NEW.rowid"
}

// UPDATE "t" SET "a"=<old a>,... WHERE rowid=<new rowid>
//
// The row is located by its post-update rowid so updates that change an
// INTEGER PRIMARY KEY are still reversible.
func updateReverser(info store.TableInfo) string {
	parts := []string{quoteLiteral("UPDATE " + quoteIdent(info.Name) + " SET ")}
	for i, col := range restoredColumns(info) {
		sep := ","
		if i == 0 {
			sep = ""
		}
		parts = append(parts, quoteLiteral(sep+col+"="), "quote(OLD."+col+")")
	}
	parts = append(parts, quoteLiteral(" WHERE rowid="), "NEW.rowid")
	return strings.Join(parts, "||")
}

// INSERT INTO "t" ("a",...) VALUES (<old a>,...)
func deleteReverser(info store.TableInfo) string {
	cols := restoredColumns(info)
	parts := []string{quoteLiteral("INSERT INTO " + quoteIdent(info.Name) + " (" + strings.Join(cols, ",") + ") VALUES (")}
	for i, col := range cols {
		if i > 0 {
			parts = append(parts, quoteLiteral(","))
		}
		parts = append(parts, "quote(OLD."+col+")")
	}
	parts = append(parts, quoteLiteral(")"))
	return strings.Join(parts, "||")
}

func dropTriggers(ctx context.Context, q store.Querier, table string) error {
	for _, name := range triggerNames(table) {
		if _, err := q.ExecContext(ctx, "DROP TRIGGER IF EXISTS "+quoteIdent(name)); err != nil {
			return fmt.Errorf("drop trigger %s: %w", name, err)
		}
	}
	return nil
}

// describeTrackable loads table's shape and rejects tables that cannot carry
// history triggers.
func describeTrackable(ctx context.Context, q store.Querier, table string) (store.TableInfo, error) {
	if reservedTables[table] {
		return store.TableInfo{}, newInvalidTableError(table, "history bookkeeping tables cannot be tracked", nil)
	}
	info, err := store.DescribeTable(ctx, q, table)
	if errors.Is(err, store.ErrTableNotFound) {
		return info, newInvalidTableError(table, "no such table", err)
	}
	if err != nil {
		return info, err
	}
	if info.WithoutRowID {
		return info, newInvalidTableError(table, "WITHOUT ROWID tables cannot be tracked", nil)
	}
	return info, nil
}

// registerTable adds table to the registry in undo mode unless it is
// already there, and returns its current mode.
func registerTable(ctx context.Context, q store.Querier, table string) (Mode, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO history_tracked (table_name, mode) VALUES (?, 'undo')
		ON CONFLICT(table_name) DO NOTHING
	`, table); err != nil {
		return "", fmt.Errorf("register %q: %w", table, err)
	}
	return trackedMode(ctx, q, table)
}

func trackedMode(ctx context.Context, q store.Querier, table string) (Mode, error) {
	var mode string
	if err := q.QueryRowContext(ctx, `
		SELECT mode FROM history_tracked WHERE table_name = ?
	`, table).Scan(&mode); err != nil {
		return "", fmt.Errorf("read mode of %q: %w", table, err)
	}
	return Mode(mode), nil
}

// installTriggers (re)creates table's triggers from its current columns and
// its registered mode. Replacing is idempotent.
func installTriggers(ctx context.Context, q store.Querier, table string) error {
	info, err := describeTrackable(ctx, q, table)
	if err != nil {
		return err
	}
	mode, err := registerTable(ctx, q, table)
	if err != nil {
		return err
	}
	if err := dropTriggers(ctx, q, table); err != nil {
		return err
	}
	for _, stmt := range buildTriggers(info, mode) {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create triggers on %q: %w", table, err)
		}
	}
	return nil
}

func uninstallTriggers(ctx context.Context, q store.Querier, table string) error {
	if err := dropTriggers(ctx, q, table); err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM history_tracked WHERE table_name = ?", table); err != nil {
		return fmt.Errorf("unregister %q: %w", table, err)
	}
	return nil
}

// setMode retargets tracked tables to mode and reinstalls their triggers.
// Tables missing from the registry are returned in skipped and left alone.
func setMode(ctx context.Context, q store.Querier, tables []string, mode Mode) (skipped []string, err error) {
	if !mode.valid() {
		return nil, fmt.Errorf("invalid recording mode %q", mode)
	}
	for _, table := range tables {
		res, err := q.ExecContext(ctx, "UPDATE history_tracked SET mode = ? WHERE table_name = ?", string(mode), table)
		if err != nil {
			return skipped, fmt.Errorf("set mode of %q: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return skipped, fmt.Errorf("set mode of %q: %w", table, err)
		}
		if n == 0 {
			skipped = append(skipped, table)
			continue
		}
		if err := installTriggers(ctx, q, table); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

func trackedTables(ctx context.Context, q store.Querier) ([]TrackedTable, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT t.table_name, t.mode,
		       (SELECT COUNT(*) FROM sqlite_master m
		        WHERE m.type = 'trigger' AND m.name IN (t.table_name || '_it', t.table_name || '_ut', t.table_name || '_dt'))
		FROM history_tracked t
		ORDER BY t.table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tracked tables: %w", err)
	}
	defer rows.Close()

	tables := []TrackedTable{}
	for rows.Next() {
		var t TrackedTable
		var mode string
		var triggers int
		if err := rows.Scan(&t.Name, &mode, &triggers); err != nil {
			return nil, fmt.Errorf("scan tracked table: %w", err)
		}
		t.Mode = Mode(mode)
		t.Installed = triggers == 3
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked tables: %w", err)
	}
	return tables, nil
}
