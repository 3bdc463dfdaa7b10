// Package store provides the SQLite database shared by application tables
// and the history engine that tracks them.
//
// Open applies the history schema on top of whatever the file already
// contains:
//   - history_undo / history_redo: compensating statements, grouped
//   - history_stats: singleton row of active group counters and retention
//   - history_tracked: recording mode of every tracked table
//   - schema_migrations: versions applied by the migration runner
//
// # Critical Patterns
//
// Single connection: the pool is capped at one connection. PRAGMA
// foreign_keys is per-connection and is ignored inside a transaction, so
// replay pins the connection with WithForeignKeysDisabled before it begins.
//
// Querier: helpers take a Querier so the same code runs against *sql.DB,
// a pinned *sql.Conn or an open *sql.Tx.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: Enforced except during replay
//   - user_version: history schema version; newer files are refused
package store
