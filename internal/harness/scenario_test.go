package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
setup:
  sql:
    - CREATE TABLE t (id INTEGER PRIMARY KEY)
  track: [t]
  group_limit: 10
steps:
  - new_group: true
  - exec: INSERT INTO t VALUES (1)
  - flatten: 0
  - undo: true
    expect: noop
assertions:
  - type: log_groups
    log: undo
    count: 0
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, []string{"t"}, scenario.Setup.Track)
	require.NotNil(t, scenario.Setup.GroupLimit)
	assert.Equal(t, int64(10), *scenario.Setup.GroupLimit)
	require.Len(t, scenario.Steps, 4)
	assert.Equal(t, StepNewGroup, scenario.Steps[0].Action())
	assert.Equal(t, StepExec, scenario.Steps[1].Action())
	assert.Equal(t, StepFlatten, scenario.Steps[2].Action())
	assert.Equal(t, int64(0), *scenario.Steps[2].Flatten)
	assert.Equal(t, OutcomeNoop, scenario.Steps[3].Expect)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "typo in assertions key"
steps:
  - undo: true
assertion:
  - type: log_groups
    log: undo
    count: 0
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `
description: d
steps: [{undo: true}]
assertions: [{type: log_groups, log: undo, count: 0}]
`,
			wantErr: "name is required",
		},
		{
			name: "name with spaces",
			yaml: `
name: has spaces
description: d
steps: [{undo: true}]
assertions: [{type: log_groups, log: undo, count: 0}]
`,
			wantErr: "must match",
		},
		{
			name: "missing description",
			yaml: `
name: n
steps: [{undo: true}]
assertions: [{type: log_groups, log: undo, count: 0}]
`,
			wantErr: "description is required",
		},
		{
			name: "no steps",
			yaml: `
name: n
description: d
assertions: [{type: log_groups, log: undo, count: 0}]
`,
			wantErr: "steps list is required",
		},
		{
			name: "no assertions",
			yaml: `
name: n
description: d
steps: [{undo: true}]
`,
			wantErr: "assertions list is required",
		},
		{
			name: "two actions in one step",
			yaml: `
name: n
description: d
steps: [{undo: true, redo: true}]
assertions: [{type: log_groups, log: undo, count: 0}]
`,
			wantErr: "exactly one action",
		},
		{
			name: "empty step",
			yaml: `
name: n
description: d
steps: [{expect: success}]
assertions: [{type: log_groups, log: undo, count: 0}]
`,
			wantErr: "exactly one action",
		},
		{
			name: "noop on exec",
			yaml: `
name: n
description: d
steps: [{exec: "SELECT 1", expect: noop}]
assertions: [{type: log_groups, log: undo, count: 0}]
`,
			wantErr: "only valid for undo and redo",
		},
		{
			name: "unknown expect",
			yaml: `
name: n
description: d
steps: [{undo: true, expect: maybe}]
assertions: [{type: log_groups, log: undo, count: 0}]
`,
			wantErr: `unknown expect "maybe"`,
		},
		{
			name: "unknown assertion type",
			yaml: `
name: n
description: d
steps: [{undo: true}]
assertions: [{type: trace_contains}]
`,
			wantErr: `unknown assertion type "trace_contains"`,
		},
		{
			name: "log_groups without count",
			yaml: `
name: n
description: d
steps: [{undo: true}]
assertions: [{type: log_groups, log: redo}]
`,
			wantErr: "non-negative count is required",
		},
		{
			name: "log_entries with bad log",
			yaml: `
name: n
description: d
steps: [{undo: true}]
assertions: [{type: log_entries, log: both}]
`,
			wantErr: "log must be undo or redo",
		},
		{
			name: "tracked_mode without mode",
			yaml: `
name: n
description: d
steps: [{undo: true}]
assertions: [{type: tracked_mode, table: t}]
`,
			wantErr: "table and mode are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScenarioFiles_Parse(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}
