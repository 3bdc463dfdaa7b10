package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// slogFormatter adapts chi's request logging to slog, so HTTP logs follow
// the configured level and handler format.
type slogFormatter struct {
	logger *slog.Logger
}

func (f *slogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &slogEntry{ctx: r.Context(), logger: f.logger.With(
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"remote", r.RemoteAddr,
	)}
}

type slogEntry struct {
	ctx    context.Context
	logger *slog.Logger
}

func (e *slogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra any) {
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	e.logger.Log(e.ctx, level, "request", "status", status, "bytes", bytes, "elapsed", elapsed)
}

func (e *slogEntry) Panic(v any, stack []byte) {
	e.logger.Error("request panicked", "panic", v, "stack", string(stack))
}
