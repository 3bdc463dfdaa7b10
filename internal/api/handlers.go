/*
handlers.go - HTTP handlers for the history engine

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, invalid or untrackable table
  - 409: A compensating statement failed; the group is left in place
  - 500: History storage unavailable, internal errors

CONCURRENCY:
  Every mutating handler holds Handler.mu, so two requests never interleave
  a group allocation with a replay.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/sqlundo/internal/history"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	History *history.Engine
	Logger  *slog.Logger

	mu sync.Mutex
}

// NewHandler creates a handler over engine.
func NewHandler(engine *history.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{History: engine, Logger: logger}
}

// =============================================================================
// REPLAY
// =============================================================================

// Undo handles POST /api/history/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.History.Undo(r.Context())
	h.writeReplay(w, result, err)
}

// Redo handles POST /api/history/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	result, err := h.History.Redo(r.Context())
	h.writeReplay(w, result, err)
}

// writeReplay returns the Result in every case; only the status differs.
func (h *Handler) writeReplay(w http.ResponseWriter, result history.Result, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case history.IsConfigError(err):
		writeJSON(w, http.StatusInternalServerError, result)
	default:
		writeJSON(w, http.StatusConflict, result)
	}
}

// =============================================================================
// GROUPS
// =============================================================================

// NewGroup handles POST /api/history/groups.
func (h *Handler) NewGroup(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, err := h.History.NewUndoGroup(r.Context())
	if err != nil {
		h.writeHistoryError(w, "Failed to open undo group", err)
		return
	}
	writeJSON(w, http.StatusCreated, GroupResponse{Group: group})
}

// Flatten handles POST /api/history/groups/flatten.
func (h *Handler) Flatten(w http.ResponseWriter, r *http.Request) {
	var req FlattenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Group == nil {
		writeError(w, http.StatusBadRequest, "group is required", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.History.Flatten(r.Context(), *req.Group); err != nil {
		h.writeHistoryError(w, "Failed to flatten groups", err)
		return
	}
	writeJSON(w, http.StatusOK, GroupResponse{Group: *req.Group})
}

// Decrement handles POST /api/history/groups/decrement.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.History.DecrementLast(r.Context()); err != nil {
		h.writeHistoryError(w, "Failed to merge newest group", err)
		return
	}
	h.writeActiveGroup(r.Context(), w)
}

// DiscardRedo handles DELETE /api/history/redo/latest.
func (h *Handler) DiscardRedo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.History.DiscardMostRecentRedo(r.Context()); err != nil {
		h.writeHistoryError(w, "Failed to discard redo group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetLimit handles PUT /api/history/limit.
func (h *Handler) SetLimit(w http.ResponseWriter, r *http.Request) {
	var req LimitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.GroupLimit == nil {
		writeError(w, http.StatusBadRequest, "group_limit is required", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.History.SetGroupLimit(r.Context(), *req.GroupLimit); err != nil {
		h.writeHistoryError(w, "Failed to set group limit", err)
		return
	}
	h.writeStats(r.Context(), w)
}

// =============================================================================
// READS
// =============================================================================

// GetStats handles GET /api/history/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.writeStats(r.Context(), w)
}

func (h *Handler) writeStats(ctx context.Context, w http.ResponseWriter) {
	stats, err := h.History.Stats(ctx)
	if err != nil {
		h.writeHistoryError(w, "Failed to read history stats", err)
		return
	}
	undo, err := h.History.Groups(ctx, history.LogUndo)
	if err != nil {
		h.writeHistoryError(w, "Failed to list undo groups", err)
		return
	}
	redo, err := h.History.Groups(ctx, history.LogRedo)
	if err != nil {
		h.writeHistoryError(w, "Failed to list redo groups", err)
		return
	}
	size, err := h.History.EstimateStorageBytes(ctx)
	if err != nil {
		h.writeHistoryError(w, "Failed to estimate history size", err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Stats:          stats,
		UndoGroups:     len(undo),
		RedoGroups:     len(redo),
		EstimatedBytes: size,
	})
}

func (h *Handler) writeActiveGroup(ctx context.Context, w http.ResponseWriter) {
	stats, err := h.History.Stats(ctx)
	if err != nil {
		h.writeHistoryError(w, "Failed to read history stats", err)
		return
	}
	writeJSON(w, http.StatusOK, GroupResponse{Group: stats.CurrentUndoGroup})
}

// ListEntries handles GET /api/history/log/{log}.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	log, err := history.ParseLog(chi.URLParam(r, "log"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown log", err)
		return
	}
	entries, err := h.History.Entries(r.Context(), log)
	if err != nil {
		h.writeHistoryError(w, "Failed to list log entries", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// =============================================================================
// TABLES
// =============================================================================

// ListTables handles GET /api/tables.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.History.TrackedTables(r.Context())
	if err != nil {
		h.writeHistoryError(w, "Failed to list tracked tables", err)
		return
	}
	if tables == nil {
		tables = []history.TrackedTable{}
	}
	writeJSON(w, http.StatusOK, TablesResponse{Tables: tables})
}

// TrackTable handles PUT /api/tables/{name}. Tracking an already tracked
// table rebuilds its triggers from the current columns.
func (h *Handler) TrackTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.History.Install(r.Context(), name); err != nil {
		h.writeHistoryError(w, "Failed to track table", err)
		return
	}
	h.Logger.Info("table tracked", "table", name)
	w.WriteHeader(http.StatusNoContent)
}

// UntrackTable handles DELETE /api/tables/{name}.
func (h *Handler) UntrackTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.History.Uninstall(r.Context(), name); err != nil {
		h.writeHistoryError(w, "Failed to untrack table", err)
		return
	}
	h.Logger.Info("table untracked", "table", name)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EXEC
// =============================================================================

// Exec handles POST /api/exec. The statements run atomically: either all
// are applied and recorded, or none.
func (h *Handler) Exec(w http.ResponseWriter, r *http.Request) {
	var req ExecRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Statements) == 0 {
		writeError(w, http.StatusBadRequest, "statements must be non-empty", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	group, err := h.History.ExecStatements(r.Context(), req.NewGroup, req.Statements...)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Statements failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ExecResponse{Group: group, Statements: len(req.Statements)})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeHistoryError(w http.ResponseWriter, message string, err error) {
	var he *history.Error
	if errors.As(err, &he) {
		status := http.StatusInternalServerError
		if he.Code == history.ErrCodeInvalidTable {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, ErrorResponse{Error: message, Code: string(he.Code), Details: he.Error()})
		return
	}
	h.Logger.Error(message, "error", err)
	writeError(w, http.StatusInternalServerError, message, err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
