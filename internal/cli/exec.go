package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	NewGroup bool
}

// ExecResult is the output of exec.
type ExecResult struct {
	Group      int64 `json:"group"`
	Statements int   `json:"statements"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <sql>...",
		Short: "Run statements and record them as history",
		Long: `Run each SQL argument in order, atomically. Changes to tracked tables are
recorded in the active undo group, or in a fresh one with --new-group.

Examples:
  sqlundo exec --new-group "UPDATE marchers SET name = 'Lee' WHERE id = 3"
  sqlundo exec "DELETE FROM drill_steps WHERE set_no > 12"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, opts.RootOptions)
			engine, closeFn, err := opts.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			group, err := engine.ExecStatements(context.Background(), opts.NewGroup, args...)
			if err != nil {
				if ferr := f.Error(CodeExecFailed, "statements failed", err.Error(), nil); ferr != nil {
					return ferr
				}
				return WrapExitError(ExitFailure, "statements failed", err)
			}

			result := ExecResult{Group: group, Statements: len(args)}
			return f.Success(result, func(w io.Writer) {
				fmt.Fprintf(w, "Executed %d statement(s) in undo group %d\n", result.Statements, result.Group)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.NewGroup, "new-group", false, "open a new undo group first")

	return cmd
}
