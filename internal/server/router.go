// Package server wires the admin API routes.
package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/droprelay/droprelay/internal/handlers"
	"github.com/droprelay/droprelay/internal/middleware"
)

// NewRouter constructs a ServeMux with the admin API routes registered.
// Everything under /api/v1 requires a bearer token when auth is configured.
func NewRouter(h *handlers.Handler, auth *middleware.AuthMiddleware) http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics are unauthenticated
	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/v1/rules", auth.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.CreateRule(w, r)
		} else if r.Method == http.MethodGet {
			h.ListRules(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.HandleFunc("/api/v1/rules/", auth.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// POST /api/v1/rules/reload
		if strings.HasSuffix(path, "/reload") {
			h.ReloadRules(w, r)
			// DELETE /api/v1/rules/:name
		} else if r.Method == http.MethodDelete {
			h.DeleteRule(w, r)
		} else {
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}))

	mux.HandleFunc("/api/v1/watermark", auth.RequireAuth(h.GetWatermark))
	mux.HandleFunc("/api/v1/lookup", auth.RequireAuth(h.Lookup))

	return middleware.RequestID(mux)
}
