package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// TrackResult is the output of track and untrack.
type TrackResult struct {
	Tables []string `json:"tables"`
}

// NewTrackCommand creates the track command.
func NewTrackCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "track <table>...",
		Short: "Start recording changes to tables",
		Long: `Install history triggers on each table. Tracking a table that is already
tracked rebuilds its triggers from the current column list; run it again after
altering a tracked table.

Examples:
  sqlundo track marchers drill_steps`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			engine, closeFn, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := engine.Install(context.Background(), args...); err != nil {
				return reportHistoryError(f, "failed to track tables", err, nil)
			}
			return f.Success(TrackResult{Tables: args}, func(w io.Writer) {
				fmt.Fprintf(w, "Tracking %s\n", strings.Join(args, ", "))
			})
		},
	}
}

// NewUntrackCommand creates the untrack command.
func NewUntrackCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "untrack <table>...",
		Short: "Stop recording changes to tables",
		Long: `Remove history triggers from each table. Entries already in the logs are
kept and can still be undone.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			engine, closeFn, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			if err := engine.Uninstall(context.Background(), args...); err != nil {
				return reportHistoryError(f, "failed to untrack tables", err, nil)
			}
			return f.Success(TrackResult{Tables: args}, func(w io.Writer) {
				fmt.Fprintf(w, "No longer tracking %s\n", strings.Join(args, ", "))
			})
		},
	}
}
