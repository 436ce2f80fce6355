package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP router for all API endpoints
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware(h.config.Server.CORSAllowedOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/lookup", h.Lookup)
		r.Get("/forecast/{flightNumber}", h.GetForecast)
		r.Get("/forecast/{flightNumber}/advisory", h.GetAdvisory)
		r.Get("/cache/metrics", h.GetCacheStats)
		r.Get("/cache/clear", h.ClearCache)
		r.Get("/health", h.Health)
		r.Get("/ws", h.WebSocket)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// corsMiddleware sets CORS headers for the configured origins. An empty
// list disables cross-origin access; ["*"] allows everyone.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
