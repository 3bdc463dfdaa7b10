/*
server.go - HTTP router and middleware configuration

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging through the handler's slog logger
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for editor front ends

ROUTE GROUPS:
  /api/history/*   Undo, redo, groups and retention
  /api/tables/*    Tracking registry
  /api/exec        Run statements as one undo step
  /metrics         Prometheus exposition

SECURITY NOTE:
  No authentication middleware. /api/exec runs arbitrary SQL, so bind the
  server to a loopback address unless something in front of it authenticates.
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/sqlundo/internal/metrics"
)

// DefaultAllowedOrigins are used when Options.AllowedOrigins is empty.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// Options configures the router.
type Options struct {
	AllowedOrigins []string

	// Registry serves /metrics. A fresh registry holding the sqlundo
	// collectors is created when nil.
	Registry *prometheus.Registry
}

// NewRegistry returns a registry holding every sqlundo collector.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.Collectors()...)
	return reg
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&slogFormatter{logger: h.Logger}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/history", func(r chi.Router) {
			r.Post("/undo", h.Undo)
			r.Post("/redo", h.Redo)
			r.Get("/stats", h.GetStats)
			r.Put("/limit", h.SetLimit)
			r.Get("/log/{log}", h.ListEntries)
			r.Delete("/redo/latest", h.DiscardRedo)

			r.Route("/groups", func(r chi.Router) {
				r.Post("/", h.NewGroup)
				r.Post("/flatten", h.Flatten)
				r.Post("/decrement", h.Decrement)
			})
		})

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", h.ListTables)
			r.Put("/{name}", h.TrackTable)
			r.Delete("/{name}", h.UntrackTable)
		})

		r.Post("/exec", h.Exec)
	})

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}
