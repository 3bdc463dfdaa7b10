package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/sqlundo/internal/store"
)

// Engine records and replays row-level history for the tracked tables of
// one store.
//
// Thread-safety model:
//   - The store holds a single connection, so operations never interleave
//     at the SQL level; concurrent callers queue on the connection pool.
//   - Undo and Redo are each one transaction. Callers that need a
//     read-modify-replay sequence to be atomic must serialize it themselves.
type Engine struct {
	store  *store.Store
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine over an open store.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Install begins tracking each table, or rebuilds its triggers from the
// current column list when it is already tracked. Call it again after any
// schema change to a tracked table.
func (e *Engine) Install(ctx context.Context, tables ...string) error {
	err := e.store.InTx(ctx, func(tx *sql.Tx) error {
		for _, table := range tables {
			if err := installTriggers(ctx, tx, table); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("install history: %w", err)
	}
	e.logger.Debug("history triggers installed", "tables", tables)
	return nil
}

// Uninstall stops tracking each table. Existing log entries are kept.
func (e *Engine) Uninstall(ctx context.Context, tables ...string) error {
	err := e.store.InTx(ctx, func(tx *sql.Tx) error {
		for _, table := range tables {
			if err := uninstallTriggers(ctx, tx, table); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("uninstall history: %w", err)
	}
	e.logger.Debug("history triggers removed", "tables", tables)
	return nil
}

// TrackedTables lists the registry, ordered by table name.
func (e *Engine) TrackedTables(ctx context.Context) ([]TrackedTable, error) {
	return trackedTables(ctx, e.store.DB())
}

// Stats returns the current counters and retention limit.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	return loadStats(ctx, e.store.DB())
}

// SetGroupLimit changes how many groups each log retains. A non-positive
// limit disables trimming. Existing groups are trimmed lazily, the next time
// a group is opened.
func (e *Engine) SetGroupLimit(ctx context.Context, limit int64) error {
	return e.store.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := loadStats(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE history_stats SET group_limit = ? WHERE id = 1", limit); err != nil {
			return fmt.Errorf("set group limit: %w", err)
		}
		return nil
	})
}

// Groups returns the group ids present in log, oldest first.
func (e *Engine) Groups(ctx context.Context, log Log) ([]int64, error) {
	return distinctGroups(ctx, e.store.DB(), log)
}

// Entries returns every entry of the given log in recording order.
func (e *Engine) Entries(ctx context.Context, log Log) ([]Entry, error) {
	return listEntries(ctx, e.store.DB(), log)
}

// Do opens a new undo group and runs fn inside a savepoint, so everything fn
// changes becomes one undo step or, if fn fails, nothing at all.
//
// fn must issue its statements through q. The store has a single
// connection, and q is that connection for the duration of the call.
func (e *Engine) Do(ctx context.Context, fn func(ctx context.Context, q store.Querier) error) (int64, error) {
	conn, err := e.store.DB().Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("pin connection: %w", err)
	}
	defer conn.Close()

	var group, trimmed int64
	err = store.WithSavepoint(ctx, conn, func() error {
		var err error
		if group, trimmed, err = e.newGroup(ctx, conn, LogUndo); err != nil {
			return err
		}
		return fn(ctx, conn)
	})
	if err != nil {
		return 0, err
	}
	recordTrimmed(LogUndo, trimmed)
	return group, nil
}

// ExecStatements runs statements atomically and returns the undo group that
// recorded them. With newGroup set they form a fresh undo step; otherwise
// they join the active group.
func (e *Engine) ExecStatements(ctx context.Context, newGroup bool, statements ...string) (int64, error) {
	run := func(ctx context.Context, q store.Querier) error {
		for i, stmt := range statements {
			if _, err := q.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statements[%d]: %w", i, err)
			}
		}
		return nil
	}
	if newGroup {
		return e.Do(ctx, run)
	}

	conn, err := e.store.DB().Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("pin connection: %w", err)
	}
	defer conn.Close()

	var group int64
	err = store.WithSavepoint(ctx, conn, func() error {
		if err := run(ctx, conn); err != nil {
			return err
		}
		stats, err := loadStats(ctx, conn)
		group = stats.CurrentUndoGroup
		return err
	})
	if err != nil {
		return 0, err
	}
	return group, nil
}
