package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlundo/internal/history"
)

// StatsResult is the output of the stats command.
type StatsResult struct {
	history.Stats
	UndoGroups     int                    `json:"undo_groups"`
	RedoGroups     int                    `json:"redo_groups"`
	EstimatedBytes int64                  `json:"estimated_bytes"`
	SchemaVersion  int                    `json:"schema_version"`
	Tracked        []history.TrackedTable `json:"tracked"`
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show history counters, retention and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(cmd, rootOpts)
			engine, closeFn, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := collectStats(context.Background(), engine)
			if err != nil {
				return reportHistoryError(f, "failed to read history stats", err, nil)
			}
			return f.Success(result, func(w io.Writer) {
				writeStatsText(w, result)
			})
		},
	}
}

func collectStats(ctx context.Context, engine *history.Engine) (StatsResult, error) {
	var result StatsResult
	var err error

	if result.Stats, err = engine.Stats(ctx); err != nil {
		return result, err
	}
	undo, err := engine.Groups(ctx, history.LogUndo)
	if err != nil {
		return result, err
	}
	redo, err := engine.Groups(ctx, history.LogRedo)
	if err != nil {
		return result, err
	}
	result.UndoGroups, result.RedoGroups = len(undo), len(redo)

	if result.EstimatedBytes, err = engine.EstimateStorageBytes(ctx); err != nil {
		return result, err
	}
	if result.SchemaVersion, err = engine.Store().SchemaVersion(ctx); err != nil {
		return result, err
	}
	if result.Tracked, err = engine.TrackedTables(ctx); err != nil {
		return result, err
	}
	if result.Tracked == nil {
		result.Tracked = []history.TrackedTable{}
	}
	return result, nil
}

func writeStatsText(w io.Writer, s StatsResult) {
	table := tablewriter.NewWriter(w)
	table.Header("Log", "Groups", "Active")
	rows := [][]string{
		{"undo", strconv.Itoa(s.UndoGroups), strconv.FormatInt(s.CurrentUndoGroup, 10)},
		{"redo", strconv.Itoa(s.RedoGroups), strconv.FormatInt(s.CurrentRedoGroup, 10)},
	}
	if err := table.Bulk(rows); err != nil {
		fmt.Fprintf(w, "failed to render stats: %v\n", err)
		return
	}
	if err := table.Render(); err != nil {
		fmt.Fprintf(w, "failed to render stats: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Group limit: %s\n", formatLimit(s.GroupLimit))
	fmt.Fprintf(w, "History size: %s\n", humanize.Bytes(uint64(s.EstimatedBytes)))
	fmt.Fprintf(w, "Schema version: %d\n", s.SchemaVersion)

	if len(s.Tracked) == 0 {
		fmt.Fprintln(w, "No tracked tables.")
		return
	}
	tracked := tablewriter.NewWriter(w)
	tracked.Header("Table", "Mode", "Triggers")
	for _, t := range s.Tracked {
		triggers := "installed"
		if !t.Installed {
			triggers = "missing: run track again"
		}
		if err := tracked.Append([]string{t.Name, string(t.Mode), triggers}); err != nil {
			fmt.Fprintf(w, "failed to render tracked tables: %v\n", err)
			return
		}
	}
	if err := tracked.Render(); err != nil {
		fmt.Fprintf(w, "failed to render tracked tables: %v\n", err)
	}
}
