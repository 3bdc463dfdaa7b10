package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlundo/internal/history"
)

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Revert the newest undo group",
		Long: `Replay the newest undo group, newest statement first, and record the
inverse changes as a new redo group. An empty undo log is not an error.

Exit codes:
  0 - Undone, or nothing to undo
  1 - A compensating statement failed; nothing was changed
  2 - Command error (database not found, etc.)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, rootOpts, history.DirectionUndo)
		},
	}
}

// NewRedoCommand creates the redo command.
func NewRedoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Reapply the newest redo group",
		Long: `Replay the newest redo group and record the inverse changes as a new undo
group. Any new change to a tracked table discards the redo log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, rootOpts, history.DirectionRedo)
		},
	}
}

func runReplay(cmd *cobra.Command, opts *RootOptions, dir history.Direction) error {
	ctx := context.Background()
	f := newFormatter(cmd, opts)

	engine, closeFn, err := opts.openEngine()
	if err != nil {
		return err
	}
	defer closeFn()

	replay := engine.Undo
	if dir == history.DirectionRedo {
		replay = engine.Redo
	}

	result, err := replay(ctx)
	if err != nil {
		return reportHistoryError(f, string(dir)+" failed", err, result)
	}

	return f.Success(result, func(w io.Writer) {
		writeReplayText(w, result, opts.Verbose)
	})
}

func writeReplayText(w io.Writer, result history.Result, verbose bool) {
	if result.Noop() {
		fmt.Fprintf(w, "Nothing to %s.\n", result.Direction)
		return
	}

	verb := "Undid"
	if result.Direction == history.DirectionRedo {
		verb = "Redid"
	}
	fmt.Fprintf(w, "%s group %d: %d statement(s) on %s\n",
		verb, result.Group, len(result.Statements), strings.Join(result.Tables, ", "))
	if verbose {
		for _, stmt := range result.Statements {
			fmt.Fprintf(w, "  %s\n", stmt)
		}
	}
}

// NewDiscardRedoCommand creates the discard-redo command.
func NewDiscardRedoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discard-redo",
		Short: "Drop the newest redo group without applying it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := newFormatter(cmd, rootOpts)
			engine, closeFn, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := engine.DiscardMostRecentRedo(ctx); err != nil {
				return reportHistoryError(f, "failed to discard redo group", err, nil)
			}
			stats, err := engine.Stats(ctx)
			if err != nil {
				return reportHistoryError(f, "failed to read history stats", err, nil)
			}
			return f.Success(stats, func(w io.Writer) {
				fmt.Fprintf(w, "Discarded newest redo group; active redo group is %d\n", stats.CurrentRedoGroup)
			})
		},
	}
}
