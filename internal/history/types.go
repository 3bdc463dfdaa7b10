package history

import "fmt"

// Log selects one of the two compensating-action logs.
type Log int

const (
	LogUndo Log = iota
	LogRedo
)

// String returns the log name as used in metrics and CLI output.
func (l Log) String() string {
	switch l {
	case LogUndo:
		return "undo"
	case LogRedo:
		return "redo"
	default:
		return "unknown"
	}
}

// ParseLog converts "undo" or "redo" into a Log.
func ParseLog(s string) (Log, error) {
	switch s {
	case "undo":
		return LogUndo, nil
	case "redo":
		return LogRedo, nil
	default:
		return 0, fmt.Errorf("unknown history log %q: must be undo or redo", s)
	}
}

func (l Log) table() string {
	if l == LogRedo {
		return "history_redo"
	}
	return "history_undo"
}

func (l Log) groupColumn() string {
	if l == LogRedo {
		return "cur_redo_group"
	}
	return "cur_undo_group"
}

func (l Log) opposite() Log {
	if l == LogRedo {
		return LogUndo
	}
	return LogRedo
}

// Mode is the recording target of a tracked table's installed triggers.
type Mode string

const (
	// ModeUndo records into the undo log and clears the redo log on every
	// entry. This is the resting state of every tracked table.
	ModeUndo Mode = "undo"

	// ModeUndoSuppressed records into the undo log without touching the
	// redo log. Used while a redo group is replayed.
	ModeUndoSuppressed Mode = "undo_suppressed"

	// ModeRedo records into the redo log. Used while an undo group is replayed.
	ModeRedo Mode = "redo"
)

// Log returns the log the mode writes to.
func (m Mode) Log() Log {
	if m == ModeRedo {
		return LogRedo
	}
	return LogUndo
}

func (m Mode) clearsRedo() bool {
	return m == ModeUndo
}

func (m Mode) valid() bool {
	switch m {
	case ModeUndo, ModeUndoSuppressed, ModeRedo:
		return true
	}
	return false
}

// Direction is the kind of replay.
type Direction string

const (
	DirectionUndo Direction = "undo"
	DirectionRedo Direction = "redo"
)

// source is the log a replay consumes.
func (d Direction) source() Log {
	if d == DirectionRedo {
		return LogRedo
	}
	return LogUndo
}

// recording is the mode touched tables are switched to during replay.
func (d Direction) recording() Mode {
	if d == DirectionRedo {
		return ModeUndoSuppressed
	}
	return ModeRedo
}

// Entry is one compensating statement stored in a log.
type Entry struct {
	Sequence int64  `json:"sequence"`
	Group    int64  `json:"group"`
	Table    string `json:"table"`
	SQL      string `json:"sql"`
}

// Stats mirrors the history_stats singleton.
type Stats struct {
	CurrentUndoGroup int64 `json:"current_undo_group"`
	CurrentRedoGroup int64 `json:"current_redo_group"`

	// GroupLimit caps the number of retained groups per log.
	// Non-positive means unbounded.
	GroupLimit int64 `json:"group_limit"`
}

// TrackedTable reports the recording state of one tracked table.
type TrackedTable struct {
	Name string `json:"name"`
	Mode Mode   `json:"mode"`

	// Installed is false when the registry lists the table but one or more
	// of its triggers is missing, e.g. after the table was rebuilt.
	Installed bool `json:"installed"`
}

// Result is the outcome of an undo or redo.
type Result struct {
	Direction  Direction  `json:"direction"`
	Success    bool       `json:"success"`
	Group      int64      `json:"group,omitempty"`
	Tables     []string   `json:"tables"`
	Statements []string   `json:"statements"`
	Error      *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is the serializable form of a replay failure.
type ErrorInfo struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Noop reports whether the replay found nothing to apply.
func (r Result) Noop() bool {
	return r.Success && len(r.Statements) == 0
}
