package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted history session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup prepares the store before any step runs. Setup changes are
	// made before tracking is installed, so they are not undoable.
	Setup Setup `yaml:"setup"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup is the initial schema and tracking configuration.
type Setup struct {
	SQL        []string `yaml:"sql"`
	Track      []string `yaml:"track,omitempty"`
	GroupLimit *int64   `yaml:"group_limit,omitempty"`
}

// Step is a single history operation. Exactly one action field is set.
type Step struct {
	Exec        string `yaml:"exec,omitempty"`
	NewGroup    bool   `yaml:"new_group,omitempty"`
	Undo        bool   `yaml:"undo,omitempty"`
	Redo        bool   `yaml:"redo,omitempty"`
	Flatten     *int64 `yaml:"flatten,omitempty"`
	Decrement   bool   `yaml:"decrement,omitempty"`
	DiscardRedo bool   `yaml:"discard_redo,omitempty"`
	SetLimit    *int64 `yaml:"set_limit,omitempty"`

	// Expect is the required outcome: success, noop or failure.
	// Empty means the step must not fail.
	Expect string `yaml:"expect,omitempty"`
}

// Step action names, as they appear in traces.
const (
	StepExec        = "exec"
	StepNewGroup    = "new_group"
	StepUndo        = "undo"
	StepRedo        = "redo"
	StepFlatten     = "flatten"
	StepDecrement   = "decrement"
	StepDiscardRedo = "discard_redo"
	StepSetLimit    = "set_limit"
)

// Step outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeNoop    = "noop"
	OutcomeFailure = "failure"
)

// Action returns the name of the step's action, or "" when none or more
// than one is set.
func (s Step) Action() string {
	var actions []string
	if s.Exec != "" {
		actions = append(actions, StepExec)
	}
	if s.NewGroup {
		actions = append(actions, StepNewGroup)
	}
	if s.Undo {
		actions = append(actions, StepUndo)
	}
	if s.Redo {
		actions = append(actions, StepRedo)
	}
	if s.Flatten != nil {
		actions = append(actions, StepFlatten)
	}
	if s.Decrement {
		actions = append(actions, StepDecrement)
	}
	if s.DiscardRedo {
		actions = append(actions, StepDiscardRedo)
	}
	if s.SetLimit != nil {
		actions = append(actions, StepSetLimit)
	}
	if len(actions) != 1 {
		return ""
	}
	return actions[0]
}

// Assertion validates final state.
type Assertion struct {
	// Type is table_rows, log_groups, log_entries or tracked_mode.
	Type string `yaml:"type"`

	// Table is used by table_rows and tracked_mode.
	Table string `yaml:"table,omitempty"`

	// Columns selects the columns compared by table_rows. Default: all.
	Columns []string `yaml:"columns,omitempty"`

	// Rows is the exact expected row set for table_rows, in rowid order.
	Rows [][]any `yaml:"rows,omitempty"`

	// Log is undo or redo (log_groups, log_entries).
	Log string `yaml:"log,omitempty"`

	// Count is the expected number of distinct groups (log_groups).
	Count *int `yaml:"count,omitempty"`

	// Entries are the expected statements in recording order (log_entries).
	Entries []string `yaml:"entries,omitempty"`

	// Mode is the expected recording mode (tracked_mode).
	Mode string `yaml:"mode,omitempty"`
}

// Assertion type constants.
const (
	AssertTableRows   = "table_rows"
	AssertLogGroups   = "log_groups"
	AssertLogEntries  = "log_entries"
	AssertTrackedMode = "tracked_mode"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !validIdentifier.MatchString(s.Name) {
		return fmt.Errorf("name %q must match %s", s.Name, validIdentifier.String())
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		action := step.Action()
		if action == "" {
			return fmt.Errorf("steps[%d]: exactly one action is required", i)
		}
		switch step.Expect {
		case "", OutcomeSuccess, OutcomeFailure:
		case OutcomeNoop:
			if action != StepUndo && action != StepRedo {
				return fmt.Errorf("steps[%d]: expect noop is only valid for undo and redo", i)
			}
		default:
			return fmt.Errorf("steps[%d]: unknown expect %q", i, step.Expect)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTableRows:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for table_rows", index)
		}
	case AssertLogGroups:
		if a.Log != "undo" && a.Log != "redo" {
			return fmt.Errorf("assertions[%d]: log must be undo or redo", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for log_groups", index)
		}
	case AssertLogEntries:
		if a.Log != "undo" && a.Log != "redo" {
			return fmt.Errorf("assertions[%d]: log must be undo or redo", index)
		}
	case AssertTrackedMode:
		if a.Table == "" || a.Mode == "" {
			return fmt.Errorf("assertions[%d]: table and mode are required for tracked_mode", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
