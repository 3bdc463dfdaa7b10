package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

// GroupResult reports the group an operation opened or left active.
type GroupResult struct {
	Group int64 `json:"group"`
}

// NewGroupCommand creates the group command and its subcommands.
func NewGroupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage undo groups",
		Long: `An undo group is the set of changes one undo reverts. Open a new group
before each user-visible action; merge groups to undo several actions at once.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Open a new undo group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			engine, closeFn, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			group, err := engine.NewUndoGroup(context.Background())
			if err != nil {
				return reportHistoryError(f, "failed to open undo group", err, nil)
			}
			return f.Success(GroupResult{Group: group}, func(w io.Writer) {
				fmt.Fprintf(w, "Opened undo group %d\n", group)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "flatten <group>",
		Short: "Merge every newer undo group into group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			group, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid group %q", args[0]), err)
			}

			f := newFormatter(cmd, rootOpts)
			engine, closeFn, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := engine.Flatten(context.Background(), group); err != nil {
				return reportHistoryError(f, "failed to flatten groups", err, nil)
			}
			return f.Success(GroupResult{Group: group}, func(w io.Writer) {
				fmt.Fprintf(w, "Flattened undo groups into %d\n", group)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "decrement",
		Short: "Merge the newest undo group into the one before it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			f := newFormatter(cmd, rootOpts)
			engine, closeFn, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := engine.DecrementLast(ctx); err != nil {
				return reportHistoryError(f, "failed to merge newest group", err, nil)
			}
			stats, err := engine.Stats(ctx)
			if err != nil {
				return reportHistoryError(f, "failed to read history stats", err, nil)
			}
			return f.Success(GroupResult{Group: stats.CurrentUndoGroup}, func(w io.Writer) {
				fmt.Fprintf(w, "Active undo group is %d\n", stats.CurrentUndoGroup)
			})
		},
	})

	return cmd
}
