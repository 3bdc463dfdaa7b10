// Package migrate applies numbered schema migrations and keeps history
// triggers in step with the tables they create.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/sqlundo/internal/history"
	"github.com/roach88/sqlundo/internal/schema"
	"github.com/roach88/sqlundo/internal/store"
)

// AppliedVersion is one row of schema_migrations.
type AppliedVersion struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
	AppliedAt   string `json:"applied_at"`
}

// Runner applies migrations to one store.
type Runner struct {
	store  *store.Store
	engine *history.Engine
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Runner that tracks history through engine.
func New(engine *history.Engine, opts ...Option) *Runner {
	r := &Runner{
		store:  engine.Store(),
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Applied returns the recorded versions in ascending order.
func (r *Runner) Applied(ctx context.Context) ([]AppliedVersion, error) {
	rows, err := r.store.Query(ctx, `
		SELECT version, description, applied_at FROM schema_migrations
		ORDER BY version
	`)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := []AppliedVersion{}
	for rows.Next() {
		var a AppliedVersion
		if err := rows.Scan(&a.Version, &a.Description, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied = append(applied, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// Pending returns the migrations not yet applied, in ascending version order.
func (r *Runner) Pending(ctx context.Context, migrations []schema.Migration) ([]schema.Migration, error) {
	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}

	pending := []schema.Migration{}
	for _, m := range migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Apply applies every pending migration in order and returns the versions
// it applied. It stops at the first failure; versions applied before the
// failure stay applied.
func (r *Runner) Apply(ctx context.Context, migrations []schema.Migration) ([]int, error) {
	pending, err := r.Pending(ctx, migrations)
	if err != nil {
		return nil, err
	}

	applied := []int{}
	for _, m := range pending {
		if err := r.applyOne(ctx, m); err != nil {
			return applied, fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		applied = append(applied, m.Version)
	}
	return applied, nil
}

// applyOne runs a single migration with history suspended:
//  1. uninstall history on every tracked table, so neither DDL nor seed
//     writes are recorded
//  2. create tables, run seed statements and record the version in one transaction
//  3. install history on history: true tables and on tables tracked before step 1
func (r *Runner) applyOne(ctx context.Context, m schema.Migration) error {
	r.logger.Info("applying migration", "version", m.Version, "description", m.Description)

	retrack, err := r.trackedNames(ctx)
	if err != nil {
		return err
	}
	if len(retrack) > 0 {
		if err := r.engine.Uninstall(ctx, retrack...); err != nil {
			return err
		}
	}

	err = r.store.InTx(ctx, func(tx *sql.Tx) error {
		for _, t := range m.Tables {
			if _, err := tx.ExecContext(ctx, schema.CreateTableSQL(t)); err != nil {
				return fmt.Errorf("create table %q: %w", t.Name, err)
			}
		}
		for _, stmt := range m.Seed {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schema_migrations (version, description) VALUES (?, ?)
		`, m.Version, m.Description); err != nil {
			return fmt.Errorf("record version: %w", err)
		}
		return nil
	})
	if err != nil {
		if len(retrack) > 0 {
			if rerr := r.engine.Install(ctx, retrack...); rerr != nil {
				r.logger.Error("could not restore history triggers", "tables", retrack, "error", rerr)
			}
		}
		return err
	}

	install := union(m.HistoryTables(), retrack)
	if len(install) > 0 {
		if err := r.engine.Install(ctx, install...); err != nil {
			return err
		}
	}

	r.logger.Info("migration applied", "version", m.Version, "tracked", install)
	return nil
}

// trackedNames returns the names of every tracked table.
func (r *Runner) trackedNames(ctx context.Context) ([]string, error) {
	tracked, err := r.engine.TrackedTables(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tracked))
	for _, t := range tracked {
		names = append(names, t.Name)
	}
	return names, nil
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
