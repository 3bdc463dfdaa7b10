// Command sqlundo records and replays undo history for SQLite tables.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sqlundo/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
