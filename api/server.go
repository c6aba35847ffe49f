/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a reverse proxy
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the upload frontend

ROUTE GROUPS:
  /api/reports/*        Report generation, stored runs, adjustments
  /api/admin/*          Default budget source
  /healthz              Liveness and storage check
  /                     Plain index page listing the endpoints

SECURITY NOTE:
  No authentication middleware. The service is meant to run behind the
  company reverse proxy which handles login.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins is used when no origins are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Content-Disposition", "Location"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.ListReports)
			r.Post("/", h.GenerateReport)
			r.Get("/types", h.ReportTypes)
			r.Get("/{id}", h.GetReport)
			r.Get("/{id}/adjusted", h.GetAdjustedReport)
			r.Post("/{id}/adjustments", h.CreateAdjustment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/budget", h.GetDefaultBudget)
			r.Post("/budget", h.UploadDefaultBudget)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(indexPage))
	})

	return r
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>Quartalsreport</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Quartalsreport API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/reports/types">/api/reports/types</a> - Report types and groupings</li>
<li><a href="/api/reports">/api/reports</a> - Stored report runs</li>
<li><a href="/api/admin/budget">/api/admin/budget</a> - Default budget source</li>
<li><a href="/healthz">/healthz</a> - Health check</li>
</ul>
</body>
</html>`
