package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlundo/internal/history"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	GroupLimit int64
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the history tables",
		Long: `Create the history tables in the database, or verify them if they exist.

The group limit caps how many undo groups (and redo groups) are retained.
A limit of 0 or less keeps every group.

Examples:
  sqlundo init --db ./app.db
  sqlundo init --db ./app.db --group-limit 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().Int64Var(&opts.GroupLimit, "group-limit", 0, "number of groups to retain (default from config, else 500)")

	return cmd
}

func runInit(cmd *cobra.Command, opts *InitOptions) error {
	ctx := context.Background()
	f := newFormatter(cmd, opts.RootOptions)

	engine, closeFn, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	var limit *int64
	switch {
	case cmd.Flags().Changed("group-limit"):
		limit = &opts.GroupLimit
	case opts.config.GroupLimit != nil:
		limit = opts.config.GroupLimit
	}
	if limit != nil {
		if err := engine.SetGroupLimit(ctx, *limit); err != nil {
			return reportHistoryError(f, "failed to set group limit", err, nil)
		}
	}

	stats, err := engine.Stats(ctx)
	if err != nil {
		return reportHistoryError(f, "failed to read history stats", err, nil)
	}

	path := opts.databasePath()
	return f.Success(stats, func(w io.Writer) {
		fmt.Fprintf(w, "Initialized history in %s (group limit %s)\n", path, formatLimit(stats.GroupLimit))
	})
}

func formatLimit(limit int64) string {
	if limit <= 0 {
		return "unbounded"
	}
	return fmt.Sprintf("%d", limit)
}

// reportHistoryError prints err in the configured format and converts it to
// an ExitError: replay failures exit 1, everything else exits 2.
func reportHistoryError(f *OutputFormatter, message string, err error, data any) error {
	code := CodeDatabaseFailed
	exit := ExitCommandError
	switch {
	case history.IsReplayError(err):
		code, exit = CodeReplayFailed, ExitFailure
	case history.IsConfigError(err):
		code = CodeStatsMissing
	case history.IsInvalidTable(err):
		code = CodeInvalidTable
	}

	if ferr := f.Error(code, message, err.Error(), data); ferr != nil {
		return ferr
	}
	return WrapExitError(exit, message, err)
}
