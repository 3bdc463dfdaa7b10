package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sqlundo/internal/store"
)

// loadStats reads the history_stats singleton. A missing row is a
// configuration error: nothing may be mutated without it.
func loadStats(ctx context.Context, q store.Querier) (Stats, error) {
	var s Stats
	err := q.QueryRowContext(ctx, `
		SELECT cur_undo_group, cur_redo_group, group_limit
		FROM history_stats WHERE id = 1
	`).Scan(&s.CurrentUndoGroup, &s.CurrentRedoGroup, &s.GroupLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return s, &Error{Code: ErrCodeStatsUnavailable, Message: "history_stats row is missing"}
	}
	if err != nil {
		return s, &Error{Code: ErrCodeStatsUnavailable, Message: "cannot read history_stats", Err: err}
	}
	return s, nil
}

func setActiveGroup(ctx context.Context, q store.Querier, log Log, group int64) error {
	query := fmt.Sprintf("UPDATE history_stats SET %s = ? WHERE id = 1", log.groupColumn())
	if _, err := q.ExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("set %s active group: %w", log, err)
	}
	return nil
}

// refreshActiveGroup sets the log's counter to one past its largest group,
// or 1 when the log is empty.
func refreshActiveGroup(ctx context.Context, q store.Querier, log Log) error {
	top, ok, err := maxGroup(ctx, q, log)
	if err != nil {
		return err
	}
	next := int64(1)
	if ok {
		next = top + 1
	}
	return setActiveGroup(ctx, q, log, next)
}

func refreshActiveGroups(ctx context.Context, q store.Querier) error {
	if err := refreshActiveGroup(ctx, q, LogUndo); err != nil {
		return err
	}
	return refreshActiveGroup(ctx, q, LogRedo)
}
