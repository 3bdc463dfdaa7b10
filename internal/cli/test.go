package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlundo/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	GoldenDir string // compare traces against <golden-dir>/<name>.golden
	Update    bool   // regenerate golden files
	Filter    string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml|dir>...",
		Short: "Run history scenarios",
		Long: `Run YAML history scenarios, each against a fresh in-memory database,
checking step expectations and final state assertions. With --golden-dir the
step trace is also compared against a golden file.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  sqlundo test ./scenarios
  sqlundo test ./scenarios --filter "redo_*"
  sqlundo test ./scenarios --golden-dir ./golden --update`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden-dir)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(cmd *cobra.Command, opts *TestOptions, paths []string) error {
	if opts.Update && opts.GoldenDir == "" {
		return NewExitError(ExitCommandError, "--update requires --golden-dir")
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to find scenarios in %s", p), err)
		}
		files = append(files, found...)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		sr := runScenario(file, opts)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	f := newFormatter(cmd, opts.RootOptions)
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		if opts.Format == "json" {
			if err := f.Error(CodeTestFailed, msg, nil, result); err != nil {
				return err
			}
		} else {
			writeTestText(f.Writer, result)
		}
		return NewExitError(ExitFailure, msg)
	}

	return f.Success(result, func(w io.Writer) {
		writeTestText(w, result)
	})
}

// findScenarioFiles returns path itself when it is a file, or every YAML
// file below it when it is a directory.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			if matched, _ := filepath.Match(filter, name); !matched {
				return nil
			}
		}

		files = append(files, p)
		return nil
	})
	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(file string, opts *TestOptions) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	errs := result.Errors
	if opts.GoldenDir != "" {
		if err := checkGolden(scenario.Name, result, opts); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return ScenarioResult{
		Name:   scenario.Name,
		Pass:   len(errs) == 0,
		Errors: errs,
	}
}

// checkGolden compares the trace with its golden file, or rewrites the file
// when opts.Update is set. A missing golden file is not an error.
func checkGolden(name string, result *harness.Result, opts *TestOptions) error {
	current, err := harness.SnapshotJSON(name, result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	path := filepath.Join(opts.GoldenDir, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.GoldenDir, 0755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, current, 0644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	golden, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(golden, current) {
		return fmt.Errorf("trace does not match golden file %s (run with --update to regenerate)", path)
	}
	return nil
}

func writeTestText(w io.Writer, result TestResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
