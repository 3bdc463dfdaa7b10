package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/sqlundo/internal/history"
	"github.com/roach88/sqlundo/internal/store"
	"github.com/roach88/sqlundo/internal/testutil"
)

// Harness executes one scenario against a private store.
type Harness struct {
	store   *store.Store
	history *history.Engine
	seq     *testutil.Sequence
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Apply setup SQL, group limit and tracking
// 3. Execute steps, checking each expect
// 4. Evaluate assertions against the final state
//
// A returned error means the scenario could not be run at all; failed
// expectations are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := testutil.DiscardLogger() // Suppress logs in tests
	h := &Harness{
		store:   st,
		history: history.New(st, history.WithLogger(logger)),
		seq:     &testutil.Sequence{},
		logger:  logger,
	}

	ctx := context.Background()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	h.executeSteps(ctx, scenario.Steps, result)

	actx := &AssertionContext{
		History: h.history,
		Ctx:     ctx,
	}
	for _, errMsg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSetup creates the schema before tracking starts, so setup rows are
// never part of the history.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	for i, stmt := range setup.SQL {
		if _, err := h.store.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("setup.sql[%d]: %w", i, err)
		}
	}

	if setup.GroupLimit != nil {
		if err := h.history.SetGroupLimit(ctx, *setup.GroupLimit); err != nil {
			return fmt.Errorf("setup.group_limit: %w", err)
		}
	}

	if len(setup.Track) > 0 {
		if err := h.history.Install(ctx, setup.Track...); err != nil {
			return fmt.Errorf("setup.track: %w", err)
		}
	}

	return nil
}

// executeSteps runs every step, even after one misses its expect, so the
// trace always covers the whole scenario.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		event := h.executeStep(ctx, step)
		result.Trace = append(result.Trace, event)

		want := step.Expect
		if want == "" {
			if event.Outcome == OutcomeFailure {
				result.AddError(fmt.Sprintf("steps[%d] (%s): unexpected failure: %s", i, event.Step, event.Error))
			}
			continue
		}
		if event.Outcome != want {
			result.AddError(fmt.Sprintf("steps[%d] (%s): expected %s, got %s", i, event.Step, want, event.Outcome))
		}
	}
}

func (h *Harness) executeStep(ctx context.Context, step Step) TraceEvent {
	event := TraceEvent{
		Seq:  h.seq.Next(),
		Step: step.Action(),
	}

	var err error
	switch event.Step {
	case StepExec:
		event.Arg = step.Exec
		_, err = h.store.Exec(ctx, step.Exec)

	case StepNewGroup:
		event.Group, err = h.history.NewUndoGroup(ctx)

	case StepUndo, StepRedo:
		var res history.Result
		if event.Step == StepUndo {
			res, err = h.history.Undo(ctx)
		} else {
			res, err = h.history.Redo(ctx)
		}
		event.Group = res.Group
		if err == nil && res.Noop() {
			event.Outcome = OutcomeNoop
			return event
		}
		if err == nil {
			event.Tables = res.Tables
			event.Statements = res.Statements
		}

	case StepFlatten:
		event.Arg = strconv.FormatInt(*step.Flatten, 10)
		err = h.history.Flatten(ctx, *step.Flatten)

	case StepDecrement:
		err = h.history.DecrementLast(ctx)

	case StepDiscardRedo:
		err = h.history.DiscardMostRecentRedo(ctx)

	case StepSetLimit:
		event.Arg = strconv.FormatInt(*step.SetLimit, 10)
		err = h.history.SetGroupLimit(ctx, *step.SetLimit)

	default:
		err = fmt.Errorf("unknown step")
	}

	if err != nil {
		h.logger.Debug("step failed", "seq", event.Seq, "step", event.Step, "error", err)
		event.Outcome = OutcomeFailure
		event.Error = err.Error()
		return event
	}
	event.Outcome = OutcomeSuccess
	return event
}
