package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlundo/internal/migrate"
	"github.com/roach88/sqlundo/internal/schema"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	SchemaDir string
	DryRun    bool
}

// MigrateResult is the output of migrate.
type MigrateResult struct {
	Pending []int `json:"pending"`
	Applied []int `json:"applied"`
	DryRun  bool  `json:"dry_run"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply CUE schema migrations",
		Long: `Apply pending migrations from a directory of numbered CUE packages
(0001/, 0002/, ...). Tables declared with history: true are tracked once
created, and tables a migration rebuilds have their triggers refreshed.

Exit codes:
  0 - All pending migrations applied (or listed with --dry-run)
  1 - A migration failed; earlier migrations stay applied
  2 - Command error (schema directory invalid, database not found, etc.)

Examples:
  sqlundo migrate --schema ./schema
  sqlundo migrate --schema ./schema --dry-run --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SchemaDir, "schema", "", "directory of numbered migration packages (required)")
	_ = cmd.MarkFlagRequired("schema")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list pending migrations without applying them")

	return cmd
}

func runMigrate(cmd *cobra.Command, opts *MigrateOptions) error {
	ctx := context.Background()
	f := newFormatter(cmd, opts.RootOptions)

	migrations, err := schema.LoadMigrations(opts.SchemaDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load migrations", err)
	}

	engine, closeFn, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	runner := migrate.New(engine, migrate.WithLogger(opts.logger))

	pending, err := runner.Pending(ctx, migrations)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read applied migrations", err)
	}
	result := MigrateResult{Pending: versions(pending), Applied: []int{}, DryRun: opts.DryRun}

	if !opts.DryRun {
		applied, err := runner.Apply(ctx, migrations)
		result.Applied = applied
		if err != nil {
			if ferr := f.Error(CodeMigrateFailed, "migration failed", err.Error(), result); ferr != nil {
				return ferr
			}
			return WrapExitError(ExitFailure, "migration failed", err)
		}
	}

	return f.Success(result, func(w io.Writer) {
		switch {
		case len(result.Pending) == 0:
			fmt.Fprintln(w, "Schema is up to date.")
		case opts.DryRun:
			fmt.Fprintf(w, "Pending migrations: %v\n", result.Pending)
		default:
			fmt.Fprintf(w, "Applied migrations: %v\n", result.Applied)
		}
	})
}

func versions(migrations []schema.Migration) []int {
	out := make([]int, len(migrations))
	for i, m := range migrations {
		out[i] = m.Version
	}
	return out
}
