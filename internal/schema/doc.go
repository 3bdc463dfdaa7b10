// Package schema compiles CUE table definitions into SQLite DDL.
//
// A migration directory holds one numbered sub-directory per version, each
// containing CUE files that declare the tables created by that version:
//
//	version:     1
//	description: "Initial schema"
//
//	table: marchers: {
//		history: true
//		columns: [
//			{name: "id", type: "INTEGER", primary_key: true, auto_increment: true},
//			{name: "drill_prefix", type: "TEXT", not_null: true},
//			{name: "drill_order", type: "INTEGER", not_null: true},
//		]
//		constraints: ["UNIQUE (\"drill_prefix\", \"drill_order\")"]
//	}
//
//	seed: ["INSERT INTO marchers (drill_prefix, drill_order) VALUES ('T', 1)"]
//
// Tables marked history: true are tracked by the history engine once the
// migration has been applied.
package schema
