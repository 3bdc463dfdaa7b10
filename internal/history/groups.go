package history

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/roach88/sqlundo/internal/metrics"
	"github.com/roach88/sqlundo/internal/store"
)

// NewUndoGroup opens a fresh undo group: mutations recorded from now on form
// a new undo step. Returns the new group id.
//
// When the group limit is positive, the oldest groups are discarded so that
// at most limit groups remain, counting the one just opened.
func (e *Engine) NewUndoGroup(ctx context.Context) (int64, error) {
	var group, trimmed int64
	err := e.store.InTx(ctx, func(tx *sql.Tx) error {
		var err error
		group, trimmed, err = e.newGroup(ctx, tx, LogUndo)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("new undo group: %w", err)
	}
	recordTrimmed(LogUndo, trimmed)
	return group, nil
}

// newGroup points log's counter past its current largest group and applies
// the retention limit to log. Returns the new group and how many groups were
// trimmed; callers report the trim with recordTrimmed once q commits.
func (e *Engine) newGroup(ctx context.Context, q store.Querier, log Log) (int64, int64, error) {
	stats, err := loadStats(ctx, q)
	if err != nil {
		return 0, 0, err
	}

	top, ok, err := maxGroup(ctx, q, log)
	if err != nil {
		return 0, 0, err
	}
	next := int64(1)
	if ok {
		next = top + 1
	}
	if err := setActiveGroup(ctx, q, log, next); err != nil {
		return 0, 0, err
	}

	var trimmed int64
	if stats.GroupLimit > 0 {
		if trimmed, err = e.trim(ctx, q, log, stats.GroupLimit); err != nil {
			return 0, 0, err
		}
	}
	return next, trimmed, nil
}

// trim discards the oldest groups of log so that, together with the group
// just opened, no more than limit remain.
func (e *Engine) trim(ctx context.Context, q store.Querier, log Log, limit int64) (int64, error) {
	groups, err := distinctGroups(ctx, q, log)
	if err != nil {
		return 0, err
	}
	excess := int64(len(groups)) + 1 - limit
	if excess <= 0 {
		return 0, nil
	}
	for _, g := range groups[:excess] {
		if err := deleteGroup(ctx, q, log, g); err != nil {
			return 0, err
		}
	}
	e.logger.Debug("trimming history groups", "log", log.String(), "count", excess, "limit", limit)
	return excess, nil
}

// recordTrimmed counts groups discarded by a committed trim.
func recordTrimmed(log Log, n int64) {
	if n > 0 {
		metrics.TrimmedGroupsTotal.WithLabelValues(log.String()).Add(float64(n))
	}
}

// RefreshActiveGroups recomputes both counters from the logs.
func (e *Engine) RefreshActiveGroups(ctx context.Context) error {
	return e.store.InTx(ctx, func(tx *sql.Tx) error {
		return refreshActiveGroups(ctx, tx)
	})
}

// Flatten merges every undo group above group into group, so they undo as
// one step.
func (e *Engine) Flatten(ctx context.Context, group int64) error {
	_, err := e.store.Exec(ctx, `UPDATE history_undo SET "history_group" = ? WHERE "history_group" > ?`, group, group)
	if err != nil {
		return fmt.Errorf("flatten undo groups above %d: %w", group, err)
	}
	return nil
}

// DecrementLast merges the newest undo group into the one before it and makes
// that group active. Does nothing when fewer than two groups exist.
func (e *Engine) DecrementLast(ctx context.Context) error {
	return e.store.InTx(ctx, func(tx *sql.Tx) error {
		top, ok, err := maxGroup(ctx, tx, LogUndo)
		if err != nil || !ok {
			return err
		}
		prev, ok, err := groupBelow(ctx, tx, LogUndo, top)
		if err != nil || !ok {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE history_undo SET "history_group" = ? WHERE "history_group" = ?`, prev, top); err != nil {
			return fmt.Errorf("decrement undo group %d: %w", top, err)
		}
		return setActiveGroup(ctx, tx, LogUndo, prev)
	})
}

// DiscardMostRecentRedo drops the newest redo group without applying it.
// Only the redo counter is refreshed.
func (e *Engine) DiscardMostRecentRedo(ctx context.Context) error {
	return e.store.InTx(ctx, func(tx *sql.Tx) error {
		top, ok, err := maxGroup(ctx, tx, LogRedo)
		if err != nil || !ok {
			return err
		}
		if err := deleteGroup(ctx, tx, LogRedo, top); err != nil {
			return err
		}
		return refreshActiveGroup(ctx, tx, LogRedo)
	})
}

// EstimateStorageBytes approximates the space used by both logs as the
// UTF-16 size of the stored statement text: two bytes per code unit, with
// text counted exactly as stored.
func (e *Engine) EstimateStorageBytes(ctx context.Context) (int64, error) {
	rows, err := e.store.Query(ctx, `
		SELECT "sql" FROM history_undo
		UNION ALL
		SELECT "sql" FROM history_redo
	`)
	if err != nil {
		return 0, fmt.Errorf("estimate history size: %w", err)
	}
	defer rows.Close()

	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	var size int64
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return 0, fmt.Errorf("scan statement: %w", err)
		}
		encoded, err := enc.String(stmt)
		if err != nil {
			return 0, fmt.Errorf("measure statement: %w", err)
		}
		size += int64(len(encoded))
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate statements: %w", err)
	}
	return size, nil
}
