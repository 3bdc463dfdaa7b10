package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlundo/internal/history"
)

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "log [undo|redo]",
		Short: "List the compensating statements in a log",
		Long: `List every entry of the undo log (default) or the redo log in recording
order. Undo replays a group from its last entry back to its first.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"undo", "redo"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "undo"
			if len(args) == 1 {
				name = args[0]
			}
			log, err := history.ParseLog(name)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid log", err)
			}

			f := newFormatter(cmd, rootOpts)
			engine, closeFn, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := engine.Entries(context.Background(), log)
			if err != nil {
				return reportHistoryError(f, "failed to list log entries", err, nil)
			}
			return f.Success(entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintf(w, "The %s log is empty.\n", log)
					return
				}
				writeEntriesTable(w, entries)
			})
		},
	}
}

func writeEntriesTable(w io.Writer, entries []history.Entry) {
	table := tablewriter.NewWriter(w)
	table.Header("Sequence", "Group", "Table", "SQL")
	for _, e := range entries {
		row := []string{
			strconv.FormatInt(e.Sequence, 10),
			strconv.FormatInt(e.Group, 10),
			e.Table,
			e.SQL,
		}
		if err := table.Append(row); err != nil {
			fmt.Fprintf(w, "failed to render entries: %v\n", err)
			return
		}
	}
	if err := table.Render(); err != nil {
		fmt.Fprintf(w, "failed to render entries: %v\n", err)
	}
}
