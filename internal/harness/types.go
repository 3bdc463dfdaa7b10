package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Step string `json:"step"`

	// Arg is the step's argument rendered as text: the SQL for exec, the
	// group for flatten, the limit for set_limit.
	Arg string `json:"arg,omitempty"`

	Outcome string `json:"outcome"`

	// Group is the group opened by new_group or consumed by undo and redo.
	Group int64 `json:"group,omitempty"`

	// Tables and Statements are reported for applied replays.
	Tables     []string `json:"tables,omitempty"`
	Statements []string `json:"statements,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step met its expect and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
