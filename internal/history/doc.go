// Package history implements row-level undo and redo for SQLite tables.
//
// Every tracked table carries three generated triggers (<table>_it,
// <table>_ut, <table>_dt). On each row change they store a literal SQL
// statement that reverses the change into one of two logs:
//
//	history_undo  statements that undo recorded changes
//	history_redo  statements that redo undone changes
//
// Entries are batched into groups. A group is the unit of one undo or redo
// step; callers open a new group with NewUndoGroup at each user-visible
// action boundary, or use Do to run a function as a single step.
//
// Replay (Undo, Redo) runs inside one transaction with foreign keys
// disabled. Before executing a group the touched tables are switched to
// record into the opposite log, so undoing a group produces the redo group
// that reverses it and vice versa. Afterwards every table is returned to
// undo mode.
//
// Recording modes:
//
//	undo             record into history_undo and clear history_redo
//	undo_suppressed  record into history_undo, keep history_redo (during redo)
//	redo             record into history_redo (during undo)
//
// Each log keeps at most group_limit groups; the oldest are discarded when a
// new group is opened.
package history
