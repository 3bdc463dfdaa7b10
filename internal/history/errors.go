package history

import (
	"errors"
	"fmt"
)

// Error is returned by history operations that fail for a reason the caller
// may want to branch on.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Direction is set for replay failures.
	Direction Direction

	// Group is the undo or redo group being replayed, if any.
	Group int64

	// Table is the table involved (invalid table errors).
	Table string

	// Statement is the compensating statement that failed to execute.
	Statement string

	// Err is the underlying store error.
	Err error
}

// ErrorCode categorizes history errors.
type ErrorCode string

const (
	// ErrCodeStatsUnavailable indicates the history_stats row is missing or unreadable.
	ErrCodeStatsUnavailable ErrorCode = "STATS_UNAVAILABLE"

	// ErrCodeReplayFailed indicates a compensating statement could not be applied.
	// The group being replayed is left intact.
	ErrCodeReplayFailed ErrorCode = "REPLAY_FAILED"

	// ErrCodeInvalidTable indicates a table cannot be tracked.
	ErrCodeInvalidTable ErrorCode = "INVALID_TABLE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Direction != "":
		msg = fmt.Sprintf("%s (%s group=%d)", msg, e.Direction, e.Group)
	case e.Table != "":
		msg = fmt.Sprintf("%s (table=%s)", msg, e.Table)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying store error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Detail returns diagnostic context for reports: the failing statement when
// there is one, otherwise the underlying error text.
func (e *Error) Detail() string {
	if e.Statement != "" {
		return "statement: " + e.Statement
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// IsReplayError returns true if err is a replay failure.
// Uses errors.As to handle wrapped errors.
func IsReplayError(err error) bool {
	return hasCode(err, ErrCodeReplayFailed)
}

// IsConfigError returns true if err reports missing or unreadable history stats.
func IsConfigError(err error) bool {
	return hasCode(err, ErrCodeStatsUnavailable)
}

// IsInvalidTable returns true if err reports a table that cannot be tracked.
func IsInvalidTable(err error) bool {
	return hasCode(err, ErrCodeInvalidTable)
}

func hasCode(err error, code ErrorCode) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Code == code
	}
	return false
}

func newInvalidTableError(table, message string, err error) *Error {
	return &Error{
		Code:    ErrCodeInvalidTable,
		Message: message,
		Table:   table,
		Err:     err,
	}
}
