// Package harness runs history scenarios written in YAML.
//
// # Scenario Format
//
//	name: rename_round_trip
//	description: "Undo restores a rename; redo reapplies it"
//	setup:
//	  sql:
//	    - CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT)
//	  track: [t]
//	  group_limit: 500
//	steps:
//	  - new_group: true
//	  - exec: INSERT INTO t VALUES (1, 'a')
//	  - new_group: true
//	  - exec: UPDATE t SET name = 'b' WHERE id = 1
//	  - undo: true
//	    expect: success
//	  - redo: true
//	assertions:
//	  - type: table_rows
//	    table: t
//	    columns: [id, name]
//	    rows: [[1, b]]
//	  - type: log_groups
//	    log: redo
//	    count: 0
//
// Each step sets exactly one action: exec, new_group, undo, redo, flatten,
// decrement, discard_redo or set_limit. The optional expect is one of
// success, noop or failure; a step without expect must not fail.
//
// # Assertion Types
//
//   - table_rows: the table holds exactly these rows, in rowid order
//   - log_groups: the undo or redo log holds count distinct groups
//   - log_entries: the log holds exactly these statements, in recording order
//   - tracked_mode: the table is tracked with this recording mode
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory store and numbers its trace events from 1,
// so identical scenarios produce byte-identical traces for golden comparison.
package harness
