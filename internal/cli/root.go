package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlundo/internal/history"
	"github.com/roach88/sqlundo/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string
	Config  string

	// Set by PersistentPreRunE.
	config *Config
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the sqlundo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlundo",
		Short: "sqlundo - undo and redo for SQLite tables",
		Long: `Record row-level changes to SQLite tables as compensating statements and
replay them as grouped undo and redo steps.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			opts.config = &Config{}
			if opts.Config != "" {
				cfg, err := LoadConfig(opts.Config)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load config", err)
				}
				opts.config = cfg
			}
			opts.logger = newLogger(opts.config.Log, opts.Verbose, cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to SQLite database (default "+DefaultDatabase+")")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML config file")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewTrackCommand(opts))
	cmd.AddCommand(NewUntrackCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewGroupCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewRedoCommand(opts))
	cmd.AddCommand(NewDiscardRedoCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// databasePath resolves --db, then the config file, then the default.
func (o *RootOptions) databasePath() string {
	if o.DB != "" {
		return o.DB
	}
	if o.config != nil && o.config.Database != "" {
		return o.config.Database
	}
	return DefaultDatabase
}

// openEngine opens the database and wraps it in a history engine.
// The returned close function must be called when the command is done.
func (o *RootOptions) openEngine() (*history.Engine, func(), error) {
	path := o.databasePath()
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open database %s", path), err)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	return history.New(st, history.WithLogger(logger)), func() { st.Close() }, nil
}
