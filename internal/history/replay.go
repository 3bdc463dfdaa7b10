package history

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/roach88/sqlundo/internal/metrics"
)

// Undo reverts the newest undo group and records its inverse as a new redo
// group. An empty undo log is a successful no-op.
//
// On failure the transaction is rolled back, the undo group stays in place
// and the returned Result carries the error details alongside err.
func (e *Engine) Undo(ctx context.Context) (Result, error) {
	return e.replay(ctx, DirectionUndo)
}

// Redo reapplies the newest redo group and records its inverse as a new undo
// group without clearing the rest of the redo log. An empty redo log is a
// successful no-op.
func (e *Engine) Redo(ctx context.Context) (Result, error) {
	return e.replay(ctx, DirectionRedo)
}

func (e *Engine) replay(ctx context.Context, dir Direction) (Result, error) {
	start := time.Now()
	source := dir.source()
	result := Result{Direction: dir, Tables: []string{}, Statements: []string{}}

	db := e.store.DB()
	if _, err := loadStats(ctx, db); err != nil {
		e.logger.Error("history unavailable", "direction", string(dir), "error", err)
		return e.fail(result, err, start), err
	}

	group, ok, err := maxGroup(ctx, db, source)
	if err != nil {
		return e.fail(result, err, start), err
	}
	if !ok {
		e.logger.Info("nothing to "+string(dir), "direction", string(dir))
		metrics.ReplaysTotal.WithLabelValues(string(dir), metrics.ReplayOutcomeNoop).Inc()
		result.Success = true
		return result, nil
	}
	result.Group = group

	var tables, statements []string
	var trimmed int64
	err = e.store.WithForeignKeysDisabled(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback() // No-op if committed

		entries, err := groupEntries(ctx, tx, source, group)
		if err != nil {
			return err
		}
		tables = touchedTables(entries)

		// Redo opens a fresh undo group for the re-recorded changes; undo
		// opens a fresh redo group. Either way the target is the opposite log.
		if _, trimmed, err = e.newGroup(ctx, tx, source.opposite()); err != nil {
			return err
		}

		skipped, err := setMode(ctx, tx, tables, dir.recording())
		if err != nil {
			return err
		}
		for _, table := range skipped {
			e.logger.Warn("replaying into untracked table; its changes will not be recorded",
				"direction", string(dir), "table", table)
		}

		for _, entry := range entries {
			if _, err := tx.ExecContext(ctx, entry.SQL); err != nil {
				return &Error{
					Code:      ErrCodeReplayFailed,
					Message:   "compensating statement failed",
					Direction: dir,
					Group:     group,
					Statement: entry.SQL,
					Err:       err,
				}
			}
			statements = append(statements, entry.SQL)
		}

		if err := deleteGroup(ctx, tx, source, group); err != nil {
			return err
		}
		if err := refreshActiveGroups(ctx, tx); err != nil {
			return err
		}
		if _, err := setMode(ctx, tx, tables, ModeUndo); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		var he *Error
		if !errors.As(err, &he) {
			err = &Error{
				Code:      ErrCodeReplayFailed,
				Message:   "replay aborted",
				Direction: dir,
				Group:     group,
				Err:       err,
			}
		}
		e.logger.Error(string(dir)+" failed", "group", group, "error", err)
		return e.fail(result, err, start), err
	}

	result.Success = true
	result.Tables = tables
	result.Statements = statements

	recordTrimmed(source.opposite(), trimmed)
	metrics.ReplaysTotal.WithLabelValues(string(dir), metrics.ReplayOutcomeApplied).Inc()
	metrics.ReplayedStatementsTotal.WithLabelValues(string(dir)).Add(float64(len(statements)))
	metrics.ReplayDurationSeconds.WithLabelValues(string(dir)).Observe(time.Since(start).Seconds())
	e.logger.Info(string(dir)+" applied", "group", group, "tables", tables, "statements", len(statements))
	return result, nil
}

// fail fills in the error fields of result and records the failure.
func (e *Engine) fail(result Result, err error, start time.Time) Result {
	result.Success = false
	result.Error = &ErrorInfo{Message: err.Error()}
	var he *Error
	if errors.As(err, &he) {
		result.Error.Message = he.Message
		result.Error.Detail = he.Detail()
	}
	metrics.ReplaysTotal.WithLabelValues(string(result.Direction), metrics.ReplayOutcomeFailed).Inc()
	metrics.ReplayDurationSeconds.WithLabelValues(string(result.Direction)).Observe(time.Since(start).Seconds())
	return result
}
