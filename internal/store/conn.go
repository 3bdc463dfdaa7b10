package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// WithForeignKeysDisabled pins a connection, turns foreign key enforcement
// off for the duration of fn and restores the previous setting afterwards.
//
// SQLite ignores PRAGMA foreign_keys inside a transaction, so the pragma is
// toggled here on the pinned connection and fn opens its own transaction on
// that same connection.
func (s *Store) WithForeignKeysDisabled(ctx context.Context, fn func(conn *sql.Conn) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("pin connection: %w", err)
	}
	defer conn.Close()

	var enabled int
	if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("read foreign_keys: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign_keys: %w", err)
	}

	defer func() {
		if enabled == 0 {
			return
		}
		// Restore even when ctx is already cancelled; the pooled connection
		// outlives this call.
		if _, rerr := conn.ExecContext(context.WithoutCancel(ctx), "PRAGMA foreign_keys = ON"); rerr != nil && err == nil {
			err = fmt.Errorf("restore foreign_keys: %w", rerr)
		}
	}()

	return fn(conn)
}

// ForeignKeysEnabled reports whether foreign key enforcement is on.
func (s *Store) ForeignKeysEnabled(ctx context.Context) (bool, error) {
	var enabled int
	if err := s.db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return false, fmt.Errorf("read foreign_keys: %w", err)
	}
	return enabled == 1, nil
}

// WithSavepoint runs fn inside a uniquely named SAVEPOINT on q.
//
// q must be bound to a single connection (*sql.Conn or *sql.Tx). Outside a
// transaction the savepoint behaves like BEGIN DEFERRED; inside one it nests,
// so a failing fn only discards its own changes.
func WithSavepoint(ctx context.Context, q Querier, fn func() error) error {
	name := "sp_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	if _, err := q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	if err := fn(); err != nil {
		rollbackCtx := context.WithoutCancel(ctx)
		if _, rerr := q.ExecContext(rollbackCtx, "ROLLBACK TO "+name); rerr != nil {
			return fmt.Errorf("rollback savepoint: %v (after: %w)", rerr, err)
		}
		if _, rerr := q.ExecContext(rollbackCtx, "RELEASE "+name); rerr != nil {
			return fmt.Errorf("release savepoint: %v (after: %w)", rerr, err)
		}
		return err
	}

	if _, err := q.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
