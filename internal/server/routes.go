package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteOptions configures SetupRoutes.
type RouteOptions struct {
	// JWTSecret enables bearer authentication on /api when set.
	JWTSecret string
	JWTIssuer string

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

// SetupRoutes registers the sandbox API on router.
func SetupRoutes(router chi.Router, h *Handlers, opts RouteOptions) {
	router.Get("/healthz", h.Health)
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api", func(r chi.Router) {
		if opts.JWTSecret != "" {
			r.Use(RequireBearer(opts.JWTSecret, opts.JWTIssuer))
		}
		r.Use(limitBody(maxBody))

		r.Post("/session", h.CreateSession)
		r.Delete("/session", h.DeleteSession)

		r.Post("/query", h.Query)
		r.Put("/datasets/{table}", h.PutDataset)
		r.Post("/datasets/sql", h.LoadSQL)
		r.Post("/reset", h.Reset)

		r.Get("/tables", h.Tables)
		r.Get("/tables/{table}", h.Describe)

		r.Get("/fixtures", h.Fixtures)
		r.Get("/fixtures/{name}", h.FixtureSQL)
		r.Post("/fixtures/{name}", h.SeedFixture)

		r.Get("/events", h.Events)
	})
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
