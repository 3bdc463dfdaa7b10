package api

import "github.com/roach88/sqlundo/internal/history"

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// GroupResponse reports the group an operation opened or used.
type GroupResponse struct {
	Group int64 `json:"group"`
}

// FlattenRequest is the body of POST /api/history/groups/flatten.
type FlattenRequest struct {
	Group *int64 `json:"group"`
}

// LimitRequest is the body of PUT /api/history/limit.
type LimitRequest struct {
	GroupLimit *int64 `json:"group_limit"`
}

// ExecRequest is the body of POST /api/exec.
type ExecRequest struct {
	Statements []string `json:"statements"`

	// NewGroup opens a fresh undo group first, so the statements undo as
	// one step. Otherwise they join the active group.
	NewGroup bool `json:"new_group"`
}

// ExecResponse reports where an exec was recorded.
type ExecResponse struct {
	Group      int64 `json:"group"`
	Statements int   `json:"statements"`
}

// StatsResponse is the body of GET /api/history/stats.
type StatsResponse struct {
	history.Stats
	UndoGroups     int   `json:"undo_groups"`
	RedoGroups     int   `json:"redo_groups"`
	EstimatedBytes int64 `json:"estimated_bytes"`
}

// TablesResponse is the body of GET /api/tables.
type TablesResponse struct {
	Tables []history.TrackedTable `json:"tables"`
}
